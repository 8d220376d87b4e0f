// Package treasury moves resources between alliance members: gifts that the
// recipient claims later, and donations straight into the alliance treasury.
package treasury

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/config"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/history"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

const (
	maxMessageLen = 100
	// a gift document outlives its expiry by this much so late claims read as expired
	giftRetention = 24 * time.Hour
	purgeBatch    = 100
)

type Service struct {
	st    *store.Store
	repo  history.Repository
	bal   config.Balance
	now   func() time.Time
	notif notify.Notifier
	// histTimeout bounds each gift event append.
	histTimeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithBalance(b config.Balance) Option { return func(s *Service) { s.bal = b } }

func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notif = n } }

func WithHistoryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.histTimeout = d
		}
	}
}

func NewService(st *store.Store, repo history.Repository, opts ...Option) *Service {
	s := &Service{
		st:          st,
		repo:        repo,
		bal:         config.DefaultBalance(),
		now:         time.Now,
		notif:       notify.Nop{},
		histTimeout: history.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repo == nil {
		s.repo = history.NewMemoryRepository()
	}
	return s
}

// affiliatedTx loads an account and watches then loads its alliance.
func affiliatedTx(tx *store.Tx, accountID string) (*domain.Account, *domain.Alliance, error) {
	acct, err := tx.Account(accountID)
	if err != nil {
		return nil, nil, err
	}
	if acct == nil {
		return nil, nil, furydto.ErrAccountNotFound
	}
	if !acct.Affiliated() {
		return nil, nil, furydto.ErrNotAffiliated
	}
	if err := tx.Watch(store.AllianceKey(acct.AllianceID)); err != nil {
		return nil, nil, err
	}
	al, err := tx.Alliance(acct.AllianceID)
	if err != nil {
		return nil, nil, err
	}
	if al == nil {
		return nil, nil, furydto.ErrNotAffiliated
	}
	return acct, al, nil
}

// clampBundle limits a requested bundle to what the progression holds.
func clampBundle(want domain.Resources, prog *domain.Progression) (domain.Resources, error) {
	if prog == nil {
		return domain.Resources{}, furydto.ErrEmptyGift
	}
	got := want.NonNegative().Clamp(prog.Resources)
	if got.IsZero() {
		return got, furydto.ErrEmptyGift
	}
	return got, nil
}

func (s *Service) appendEvent(ctx context.Context, ev *domain.GiftEvent) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.histTimeout)
	defer cancel()
	if err := s.repo.AppendGiftEvent(hctx, ev); err != nil {
		obslog.L().Error("gift_history_append_failed",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("gift_id", ev.GiftID),
			zap.String("from_id", ev.FromID),
			zap.String("to_id", ev.ToID),
			zap.String("alliance_id", ev.AllianceID),
			zap.Int64("wood", ev.Resources.Wood),
			zap.Int64("meat", ev.Resources.Meat),
			zap.Int64("gems", ev.Resources.Gems),
			zap.Error(err),
		)
	}
}

func newEvent(kind domain.GiftEventKind, g *domain.Gift) *domain.GiftEvent {
	return &domain.GiftEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		GiftID:     g.ID,
		FromID:     g.FromID,
		ToID:       g.ToID,
		AllianceID: g.AllianceID,
		Resources:  g.Resources,
	}
}
