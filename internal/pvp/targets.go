package pvp

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/pkg/furydto"
)

// oversample compensates for shielded, guest and powerless draws being dropped.
const oversample = 3

// SampleTargets draws a random pool of attackable accounts. The result has no order
// and may hold fewer than poolSize entries.
func (m *Manager) SampleTargets(ctx context.Context, attackerID string, poolSize int) (*TargetList, error) {
	poolSize = m.poolSize(poolSize)

	atk, err := m.st.Account(ctx, attackerID)
	if err != nil {
		return nil, err
	}
	if atk == nil {
		return nil, furydto.ErrAccountNotFound
	}
	atkProg, err := m.st.Progression(ctx, attackerID)
	if err != nil {
		return nil, err
	}

	drawn, err := m.st.RandomCompetitive(ctx, poolSize*oversample+1)
	if err != nil {
		return nil, err
	}
	ids := drawn[:0]
	for _, id := range drawn {
		if id != attackerID {
			ids = append(ids, id)
		}
	}

	var (
		accts []*domain.Account
		progs []*domain.Progression
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accts, err = m.st.Accounts(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		progs, err = m.st.Progressions(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := m.now()
	out := &TargetList{
		Targets:  make([]Candidate, 0, poolSize),
		MyPower:  power.OfSnapshot(atkProg),
		MyRating: atk.Rating,
	}
	for i, a := range accts {
		if len(out.Targets) >= poolSize {
			break
		}
		if a == nil || a.Guest || a.IsShielded(now) {
			continue
		}
		pw := power.OfSnapshot(progs[i])
		if pw <= 0 {
			continue
		}
		c := Candidate{
			ID:         a.ID,
			Name:       a.Name,
			Level:      domain.DefaultLevel,
			Power:      pw,
			Rating:     a.Rating,
			CanAttack:  atk.CanAttack(a.ID, now, m.bal.AttackCooldown),
			CooldownMs: atk.CooldownRemaining(a.ID, now, m.bal.AttackCooldown).Milliseconds(),
		}
		if p := progs[i]; p != nil {
			c.Level = p.WithDefaults().Level
			c.PotentialLoot = m.loot(p.Resources)
		}
		out.Targets = append(out.Targets, c)
	}
	return out, nil
}
