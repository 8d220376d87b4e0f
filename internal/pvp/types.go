package pvp

import (
	"time"

	"github.com/park285/frostfury-server/internal/domain"
)

// Candidate is one attackable account in a target list.
type Candidate struct {
	ID            string           `json:"id"`
	Name          string           `json:"username"`
	Level         int              `json:"level"`
	Power         int64            `json:"power"`
	Rating        int              `json:"rating"`
	CanAttack     bool             `json:"canAttack"`
	CooldownMs    int64            `json:"cooldownMs,omitempty"`
	PotentialLoot domain.Resources `json:"potentialLoot"`
}

type TargetList struct {
	Targets  []Candidate `json:"targets"`
	MyPower  int64       `json:"myPower"`
	MyRating int         `json:"myRating"`
}

// Outcome is the attacker's view of a resolved battle.
type Outcome struct {
	BattleID          string           `json:"battleId"`
	Victory           bool             `json:"victory"`
	AttackerPower     int64            `json:"yourPower"`
	DefenderPower     int64            `json:"enemyPower"`
	ResourcesStolen   domain.Resources `json:"resourcesStolen"`
	ResourcesCredited domain.Resources `json:"resourcesCredited"`
	RatingChange      int              `json:"ratingChange"`
	NewRating         int              `json:"newRating"`
	DefenderShieldEnd time.Time        `json:"defenderShieldUntil"`
}

// HistoryEntry is a battle seen from one participant's side.
type HistoryEntry struct {
	ID              string           `json:"id"`
	IsAttacker      bool             `json:"isAttacker"`
	OpponentID      string           `json:"opponentId"`
	Opponent        string           `json:"opponent"`
	Victory         bool             `json:"victory"`
	ResourcesStolen domain.Resources `json:"resourcesStolen"`
	RatingChange    int              `json:"ratingChange"`
	Time            time.Time        `json:"time"`
}

type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	ID      string `json:"id"`
	Name    string `json:"username"`
	Rating  int    `json:"rating"`
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
	WinRate int    `json:"winRate"`
}

type Leaderboard struct {
	Total   int64              `json:"total"`
	Leaders []LeaderboardEntry `json:"leaders"`
}

// Roller yields uniform draws in [0,1). Each side of a battle gets its own draw.
type Roller interface {
	Float64() float64
}

type RollerFunc func() float64

func (f RollerFunc) Float64() float64 { return f() }
