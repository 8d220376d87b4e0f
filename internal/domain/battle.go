package domain

import "time"

type Side string

const (
	SideAttacker Side = "attacker"
	SideDefender Side = "defender"
)

// BattleRecord is written once per resolved attack and never modified.
type BattleRecord struct {
	ID                   string    `json:"id"`
	AttackerID           string    `json:"attacker_id"`
	DefenderID           string    `json:"defender_id"`
	Winner               Side      `json:"winner"`
	StolenWood           int64     `json:"stolen_wood"`
	StolenMeat           int64     `json:"stolen_meat"`
	AttackerPower        int64     `json:"attacker_power"`
	DefenderPower        int64     `json:"defender_power"`
	AttackerRatingChange int       `json:"attacker_rating_change"`
	DefenderRatingChange int       `json:"defender_rating_change"`
	CreatedAt            time.Time `json:"created_at"`
}

func (b *BattleRecord) AttackerWon() bool { return b.Winner == SideAttacker }

// Involves reports whether accountID fought in this battle.
func (b *BattleRecord) Involves(accountID string) bool {
	return b.AttackerID == accountID || b.DefenderID == accountID
}
