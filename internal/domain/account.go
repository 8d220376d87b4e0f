package domain

import "time"

// Role is an account's rank inside its alliance.
type Role string

const (
	RoleLeader  Role = "leader"
	RoleOfficer Role = "officer"
	RoleMember  Role = "member"
)

const (
	DefaultRating = 1000
	RatingFloor   = 100
)

// Account holds identity plus the competitive state this service owns. Cooldowns and
// shields live here rather than in process memory so they persist with the record.
type Account struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Guest          bool                 `json:"guest"`
	AllianceID     string               `json:"alliance_id,omitempty"`
	AllianceRole   Role                 `json:"alliance_role,omitempty"`
	Rating         int                  `json:"rating"`
	Wins           int                  `json:"wins"`
	Losses         int                  `json:"losses"`
	ShieldUntil    *time.Time           `json:"shield_until,omitempty"`
	LastAttackedAt *time.Time           `json:"last_attacked_at,omitempty"`
	LastAttacks    map[string]time.Time `json:"last_attacks,omitempty"`
	Version        int64                `json:"version"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func NewAccount(id, name string, guest bool, now time.Time) *Account {
	return &Account{
		ID:        id,
		Name:      name,
		Guest:     guest,
		Rating:    DefaultRating,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *Account) Affiliated() bool { return a.AllianceID != "" }

// EffectiveRole is empty when the account has no alliance.
func (a *Account) EffectiveRole() Role {
	if !a.Affiliated() {
		return ""
	}
	if a.AllianceRole == "" {
		return RoleMember
	}
	return a.AllianceRole
}

func (a *Account) SetAffiliation(allianceID string, role Role) {
	a.AllianceID = allianceID
	a.AllianceRole = role
}

func (a *Account) ClearAffiliation() {
	a.AllianceID = ""
	a.AllianceRole = ""
}

// AdjustRating applies delta and holds the result at or above floor.
// It returns the change actually applied.
func (a *Account) AdjustRating(delta, floor int) int {
	before := a.Rating
	a.Rating = max(a.Rating+delta, floor)
	return a.Rating - before
}
