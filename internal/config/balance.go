package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Balance holds the game constants. Every field can be overridden from BALANCE_FILE;
// fields missing from the file keep their defaults.
type Balance struct {
	AttackCooldown time.Duration `yaml:"attack_cooldown"`
	BattleShield   time.Duration `yaml:"battle_shield"`
	StealFraction  float64       `yaml:"steal_fraction"`
	RollMin        float64       `yaml:"roll_min"`
	RollSpread     float64       `yaml:"roll_spread"`

	RatingK       int `yaml:"rating_k"`
	RatingFloor   int `yaml:"rating_floor"`
	DefaultRating int `yaml:"default_rating"`

	TargetPoolDefault int `yaml:"target_pool_default"`
	TargetPoolMax     int `yaml:"target_pool_max"`

	ShieldPrices map[int]int64 `yaml:"shield_prices"`

	AllianceCreateCost int64         `yaml:"alliance_create_cost"`
	AllianceMaxMembers int           `yaml:"alliance_max_members"`
	GiftTTL            time.Duration `yaml:"gift_ttl"`
}

func DefaultBalance() Balance {
	return Balance{
		AttackCooldown:     time.Hour,
		BattleShield:       4 * time.Hour,
		StealFraction:      0.10,
		RollMin:            0.8,
		RollSpread:         0.4,
		RatingK:            32,
		RatingFloor:        100,
		DefaultRating:      1000,
		TargetPoolDefault:  10,
		TargetPoolMax:      50,
		ShieldPrices:       map[int]int64{4: 50, 24: 200},
		AllianceCreateCost: 100,
		AllianceMaxMembers: 50,
		GiftTTL:            7 * 24 * time.Hour,
	}
}

// LoadBalance overlays the YAML file at path onto DefaultBalance. An empty path
// returns the defaults.
func LoadBalance(path string) (Balance, error) {
	b := DefaultBalance()
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("read balance file: %w", err)
	}
	return ParseBalance(data)
}

func ParseBalance(data []byte) (Balance, error) {
	b := DefaultBalance()
	if err := yaml.Unmarshal(data, &b); err != nil {
		return DefaultBalance(), fmt.Errorf("parse balance file: %w", err)
	}
	if err := b.validate(); err != nil {
		return DefaultBalance(), err
	}
	return b, nil
}

func (b Balance) validate() error {
	switch {
	case b.AttackCooldown <= 0:
		return fmt.Errorf("balance: attack_cooldown must be positive")
	case b.StealFraction < 0 || b.StealFraction > 1:
		return fmt.Errorf("balance: steal_fraction must be within [0,1]")
	case b.RollMin < 0 || b.RollSpread < 0:
		return fmt.Errorf("balance: roll range must be non-negative")
	case b.RatingK <= 0:
		return fmt.Errorf("balance: rating_k must be positive")
	case b.TargetPoolDefault <= 0 || b.TargetPoolMax < b.TargetPoolDefault:
		return fmt.Errorf("balance: target pool bounds are inconsistent")
	case b.AllianceMaxMembers <= 0:
		return fmt.Errorf("balance: alliance_max_members must be positive")
	case b.GiftTTL <= 0:
		return fmt.Errorf("balance: gift_ttl must be positive")
	}
	return nil
}

// ShieldPrice returns the gem cost of a purchasable shield.
func (b Balance) ShieldPrice(hours int) (int64, bool) {
	p, ok := b.ShieldPrices[hours]
	return p, ok
}
