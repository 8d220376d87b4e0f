package domain

import "time"

const DefaultGiftTTL = 7 * 24 * time.Hour

type Gift struct {
	ID         string     `json:"id"`
	FromID     string     `json:"from_id"`
	ToID       string     `json:"to_id"`
	AllianceID string     `json:"alliance_id"`
	Resources  Resources  `json:"resources"`
	Message    string     `json:"message,omitempty"`
	Claimed    bool       `json:"claimed"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

func (g *Gift) Expired(now time.Time) bool { return !now.Before(g.ExpiresAt) }

// ClaimableBy reports whether recipient may claim the gift at now.
func (g *Gift) ClaimableBy(recipient string, now time.Time) bool {
	return !g.Claimed && g.ToID == recipient && !g.Expired(now)
}

type GiftEventKind string

const (
	GiftEventSent     GiftEventKind = "sent"
	GiftEventClaimed  GiftEventKind = "claimed"
	GiftEventDonation GiftEventKind = "donation"
)

// GiftEvent is one append-only audit row for a resource transfer inside an alliance.
type GiftEvent struct {
	ID         string        `json:"id"`
	Kind       GiftEventKind `json:"kind"`
	GiftID     string        `json:"gift_id,omitempty"`
	FromID     string        `json:"from_id"`
	ToID       string        `json:"to_id,omitempty"`
	AllianceID string        `json:"alliance_id"`
	Resources  Resources     `json:"resources"`
	CreatedAt  time.Time     `json:"created_at"`
}
