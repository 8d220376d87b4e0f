package domain

import (
	"fmt"
	"slices"
	"time"
)

const DefaultAllianceCapacity = 50

type Member struct {
	AccountID    string    `json:"account_id"`
	JoinedAt     time.Time `json:"joined_at"`
	Contribution int64     `json:"contribution"`
	LastActive   time.Time `json:"last_active"`
}

type Alliance struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	LeaderID    string    `json:"leader_id"`
	Officers    []string  `json:"officers"`
	Members     []Member  `json:"members"`
	MemberCount int       `json:"member_count"`
	MaxMembers  int       `json:"max_members"`
	TotalPower  int64     `json:"total_power"`
	Public      bool      `json:"public"`
	MinLevel    int       `json:"min_level"`
	Treasury    Resources `json:"treasury"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (al *Alliance) memberIndex(accountID string) int {
	return slices.IndexFunc(al.Members, func(m Member) bool { return m.AccountID == accountID })
}

func (al *Alliance) IsMember(accountID string) bool { return al.memberIndex(accountID) >= 0 }

func (al *Alliance) IsOfficer(accountID string) bool { return slices.Contains(al.Officers, accountID) }

func (al *Alliance) Full() bool { return len(al.Members) >= al.MaxMembers }

func (al *Alliance) AddMember(accountID string, now time.Time) {
	if al.IsMember(accountID) {
		return
	}
	al.Members = append(al.Members, Member{AccountID: accountID, JoinedAt: now, LastActive: now})
	al.MemberCount = len(al.Members)
}

// RemoveMember drops the account from members and officers.
func (al *Alliance) RemoveMember(accountID string) {
	al.Members = slices.DeleteFunc(al.Members, func(m Member) bool { return m.AccountID == accountID })
	al.Officers = slices.DeleteFunc(al.Officers, func(id string) bool { return id == accountID })
	al.MemberCount = len(al.Members)
}

func (al *Alliance) Promote(accountID string) {
	if !al.IsOfficer(accountID) {
		al.Officers = append(al.Officers, accountID)
	}
}

func (al *Alliance) Demote(accountID string) {
	al.Officers = slices.DeleteFunc(al.Officers, func(id string) bool { return id == accountID })
}

// AddContribution credits a member's contribution score; it never decreases.
func (al *Alliance) AddContribution(accountID string, value int64, now time.Time) {
	i := al.memberIndex(accountID)
	if i < 0 {
		return
	}
	if value > 0 {
		al.Members[i].Contribution += value
	}
	al.Members[i].LastActive = now
}

func (al *Alliance) Contribution(accountID string) int64 {
	if i := al.memberIndex(accountID); i >= 0 {
		return al.Members[i].Contribution
	}
	return 0
}

// AddPower adjusts the incrementally maintained aggregate, floored at zero.
func (al *Alliance) AddPower(delta int64) {
	al.TotalPower = max(al.TotalPower+delta, 0)
}

func (al *Alliance) MemberIDs() []string {
	ids := make([]string, 0, len(al.Members))
	for _, m := range al.Members {
		ids = append(ids, m.AccountID)
	}
	return ids
}

// Validate checks the structural invariants every committed alliance must satisfy.
func (al *Alliance) Validate() error {
	if al.MemberCount != len(al.Members) {
		return fmt.Errorf("alliance %s: member count %d != %d members", al.ID, al.MemberCount, len(al.Members))
	}
	if len(al.Members) > al.MaxMembers {
		return fmt.Errorf("alliance %s: %d members over capacity %d", al.ID, len(al.Members), al.MaxMembers)
	}
	if !al.IsMember(al.LeaderID) {
		return fmt.Errorf("alliance %s: leader %s is not a member", al.ID, al.LeaderID)
	}
	for _, o := range al.Officers {
		if o == al.LeaderID || !al.IsMember(o) {
			return fmt.Errorf("alliance %s: officer %s is not a non-leader member", al.ID, o)
		}
	}
	return nil
}
