// Package notify fans committed game events out to push delivery and live feeds.
package notify

import (
	"context"
	"time"

	"github.com/park285/frostfury-server/internal/domain"
)

type EventType string

const (
	EventBattle   EventType = "battle"
	EventGift     EventType = "gift"
	EventAlliance EventType = "alliance"
)

// AllianceChange describes a membership event.
type AllianceChange struct {
	AllianceID string `json:"allianceId"`
	Action     string `json:"action"`
	AccountID  string `json:"accountId"`
	Name       string `json:"name"`
}

// Event is emitted after the state change it describes has committed. Recipients
// lists the accounts that should hear about it.
type Event struct {
	Type         EventType            `json:"type"`
	Recipients   []string             `json:"-"`
	Battle       *domain.BattleRecord `json:"battle,omitempty"`
	AttackerName string               `json:"attackerName,omitempty"`
	Shield       time.Duration        `json:"-"`
	Gift         *domain.Gift         `json:"gift,omitempty"`
	SenderName   string               `json:"senderName,omitempty"`
	Alliance     *AllianceChange      `json:"alliance,omitempty"`
	At           time.Time            `json:"at"`
}

// Notifier must not block the caller on slow delivery and never fails the operation
// that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Fanout delivers each event to every non-nil notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
