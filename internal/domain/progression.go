package domain

import "time"

// Progression defaults, mirrored from the game client's starting save.
const (
	DefaultLevel           = 1
	DefaultMaxHealth       = 100.0
	DefaultAxeDamage       = 10.0
	DefaultAttackSpeed     = 1.0
	DefaultCritChance      = 0.05
	DefaultCritDamage      = 1.5
	DefaultHighestWave     = 1
	DefaultDefenseLevel    = 1
	DefaultMaxWood         = 1000
	DefaultMaxMeat         = 500
	MaxLevel               = 1000
	HardCapWood      int64 = 100_000_000
	HardCapMeat      int64 = 50_000_000
	HardCapGems      int64 = 10_000_000
)

type ProgressionStats struct {
	PvpAttacks    int `json:"pvp_attacks"`
	PvpDefends    int `json:"pvp_defends"`
	GiftsSent     int `json:"gifts_sent"`
	GiftsReceived int `json:"gifts_received"`
}

// Progression is the per-account snapshot the save pipeline owns; this service only
// moves its resources and bumps its counters.
type Progression struct {
	AccountID       string           `json:"account_id"`
	Level           int              `json:"level"`
	MaxHealth       float64          `json:"max_health"`
	AxeDamage       float64          `json:"axe_damage"`
	AttackSpeed     float64          `json:"attack_speed"`
	CritChance      float64          `json:"crit_chance"`
	CritDamage      float64          `json:"crit_damage"`
	DamageReduction float64          `json:"damage_reduction"`
	HighestWave     int              `json:"highest_wave"`
	DefenseLevel    int              `json:"defense_level"`
	WallLevel       int              `json:"wall_level"`
	Resources       Resources        `json:"resources"`
	MaxWood         int64            `json:"max_wood"`
	MaxMeat         int64            `json:"max_meat"`
	Stats           ProgressionStats `json:"stats"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// WithDefaults returns a copy where unset (zero) stats take their starting values.
// DamageReduction and WallLevel start at zero, so they are left alone.
func (p Progression) WithDefaults() Progression {
	if p.Level <= 0 {
		p.Level = DefaultLevel
	}
	if p.MaxHealth <= 0 {
		p.MaxHealth = DefaultMaxHealth
	}
	if p.AxeDamage <= 0 {
		p.AxeDamage = DefaultAxeDamage
	}
	if p.AttackSpeed <= 0 {
		p.AttackSpeed = DefaultAttackSpeed
	}
	if p.CritChance <= 0 {
		p.CritChance = DefaultCritChance
	}
	if p.CritDamage <= 0 {
		p.CritDamage = DefaultCritDamage
	}
	if p.HighestWave <= 0 {
		p.HighestWave = DefaultHighestWave
	}
	if p.DefenseLevel <= 0 {
		p.DefenseLevel = DefaultDefenseLevel
	}
	if p.MaxWood <= 0 {
		p.MaxWood = DefaultMaxWood
	}
	if p.MaxMeat <= 0 {
		p.MaxMeat = DefaultMaxMeat
	}
	return p
}

// Sanitize applies the basic clamping the server enforces on pushed snapshots.
func (p Progression) Sanitize() Progression {
	p = p.WithDefaults()
	p.Level = min(max(p.Level, 1), MaxLevel)
	p.DamageReduction = max(p.DamageReduction, 0)
	p.WallLevel = max(p.WallLevel, 0)
	p.Resources = Resources{
		Wood: min(max(p.Resources.Wood, 0), HardCapWood),
		Meat: min(max(p.Resources.Meat, 0), HardCapMeat),
		Gems: min(max(p.Resources.Gems, 0), HardCapGems),
	}
	return p
}

// Credit adds r to the balances. Wood and meat stop at the storage caps (an
// over-cap balance is never reduced); gems are uncapped. Returns what was credited.
func (p *Progression) Credit(r Resources) Resources {
	r = r.NonNegative()
	capped := func(cur, add, limit int64) int64 {
		if cur >= limit {
			return 0
		}
		return min(cur+add, limit) - cur
	}
	got := Resources{
		Wood: capped(p.Resources.Wood, r.Wood, p.WithDefaults().MaxWood),
		Meat: capped(p.Resources.Meat, r.Meat, p.WithDefaults().MaxMeat),
		Gems: r.Gems,
	}
	p.Resources = p.Resources.Add(got)
	return got
}

// Debit removes exactly r, which the caller has already clamped to the balance.
func (p *Progression) Debit(r Resources) {
	p.Resources = p.Resources.Sub(r)
}
