// Package pvp implements asynchronous raids: target sampling, combat resolution,
// shields and the rating ladder.
package pvp

import (
	"math/rand/v2"
	"time"

	"github.com/park285/frostfury-server/internal/config"
	"github.com/park285/frostfury-server/internal/history"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/store"
)

type Manager struct {
	st     *store.Store
	repo   history.Repository
	bal    config.Balance
	roller Roller
	now    func() time.Time
	notif  notify.Notifier
	// histTimeout bounds each history call; appends run after the commit.
	histTimeout time.Duration
}

type Option func(*Manager)

func WithRoller(r Roller) Option { return func(m *Manager) { m.roller = r } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithBalance(b config.Balance) Option { return func(m *Manager) { m.bal = b } }

func WithNotifier(n notify.Notifier) Option { return func(m *Manager) { m.notif = n } }

func WithHistoryTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.histTimeout = d
		}
	}
}

func NewManager(st *store.Store, repo history.Repository, opts ...Option) *Manager {
	m := &Manager{
		st:     st,
		repo:   repo,
		bal:    config.DefaultBalance(),
		roller: RollerFunc(rand.Float64),
		now:    time.Now,
		notif:  notify.Nop{},

		histTimeout: history.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.repo == nil {
		m.repo = history.NewMemoryRepository()
	}
	return m
}

// multiplier maps one draw onto the combat roll range.
func (m *Manager) multiplier() float64 {
	return m.bal.RollMin + m.roller.Float64()*m.bal.RollSpread
}

func (m *Manager) poolSize(n int) int {
	if n <= 0 {
		return m.bal.TargetPoolDefault
	}
	return min(n, m.bal.TargetPoolMax)
}
