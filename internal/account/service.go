// Package account ingests profile and progression snapshots pushed by the save
// pipeline and keeps the competitive indexes in step with them.
package account

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/config"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

type Service struct {
	st  *store.Store
	bal config.Balance
	now func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithBalance(b config.Balance) Option { return func(s *Service) { s.bal = b } }

func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{st: st, bal: config.DefaultBalance(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert is one snapshot from the save pipeline. A nil Progression leaves the stored
// snapshot untouched.
type Upsert struct {
	ID          string
	Name        string
	Guest       bool
	Progression *domain.Progression
}

// Profile is an account with its progression snapshot and derived power.
type Profile struct {
	Account     *domain.Account
	Progression *domain.Progression
	Power       int64
}

// Upsert creates or refreshes an account. Rating, win/loss, cooldowns, shield and
// alliance membership are owned here and never taken from the snapshot; the
// progression's pvp and gift counters are kept as well.
func (s *Service) Upsert(ctx context.Context, in Upsert) (*domain.Account, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" || in.Name == "" {
		return nil, furydto.ErrInvalidArgs
	}

	var out *domain.Account
	keys := []string{store.AccountKey(in.ID), store.ProgressionKey(in.ID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		acct, err := tx.Account(in.ID)
		if err != nil {
			return err
		}
		created := acct == nil
		if created {
			acct = domain.NewAccount(in.ID, in.Name, in.Guest, now)
			acct.Rating = s.bal.DefaultRating
		}
		acct.Name = in.Name
		acct.Guest = in.Guest
		acct.UpdatedAt = now

		if in.Progression != nil {
			prev, err := tx.Progression(in.ID)
			if err != nil {
				return err
			}
			next := in.Progression.Sanitize()
			next.AccountID = in.ID
			next.UpdatedAt = now
			if prev != nil {
				next.Stats = prev.Stats
			}
			if acct.Affiliated() {
				if err := s.shiftAlliancePower(tx, acct.AllianceID, power.Of(next)-power.OfSnapshot(prev)); err != nil {
					return err
				}
			}
			if err := tx.PutProgression(&next); err != nil {
				return err
			}
		}

		if acct.Guest {
			tx.SRem(store.CompetitiveKey(), acct.ID)
			tx.ZRem(store.RatingKey(), acct.ID)
		} else {
			tx.SAdd(store.CompetitiveKey(), acct.ID)
			tx.ZAdd(store.RatingKey(), float64(acct.Rating), acct.ID)
		}
		if err := tx.PutAccount(acct); err != nil {
			return err
		}
		out = acct
		if created {
			obslog.L().Info("account_create", zap.String("account_id", acct.ID), zap.Bool("guest", acct.Guest))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// shiftAlliancePower applies a member's power change to the alliance aggregate.
func (s *Service) shiftAlliancePower(tx *store.Tx, allianceID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	if err := tx.Watch(store.AllianceKey(allianceID)); err != nil {
		return err
	}
	al, err := tx.Alliance(allianceID)
	if err != nil || al == nil {
		return err
	}
	al.AddPower(delta)
	return tx.PutAlliance(al)
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	acct, err := s.st.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, furydto.ErrAccountNotFound
	}
	prog, err := s.st.Progression(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{Account: acct, Progression: prog, Power: power.OfSnapshot(prog)}, nil
}

// FromPayload converts the wire snapshot into a progression.
func FromPayload(p *furydto.ProgressionPayload) *domain.Progression {
	if p == nil {
		return nil
	}
	return &domain.Progression{
		Level:           p.Level,
		MaxHealth:       p.MaxHealth,
		AxeDamage:       p.AxeDamage,
		AttackSpeed:     p.AttackSpeed,
		CritChance:      p.CritChance,
		CritDamage:      p.CritDamage,
		DamageReduction: p.DamageReduction,
		HighestWave:     p.HighestWave,
		DefenseLevel:    p.DefenseLevel,
		WallLevel:       p.WallLevel,
		Resources:       domain.Resources{Wood: p.Resources.Wood, Meat: p.Resources.Meat, Gems: p.Resources.Gems},
		MaxWood:         p.MaxWood,
		MaxMeat:         p.MaxMeat,
	}
}
