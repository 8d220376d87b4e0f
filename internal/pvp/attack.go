package pvp

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

// Attack resolves one raid. Both accounts and both progression snapshots are watched,
// so balances, ratings, counters, cooldown and shield of the two sides commit together
// or not at all. The battle record is appended after the commit.
func (m *Manager) Attack(ctx context.Context, attackerID, targetID string) (*Outcome, error) {
	attackerID, targetID = strings.TrimSpace(attackerID), strings.TrimSpace(targetID)
	if attackerID == "" || targetID == "" {
		return nil, furydto.ErrInvalidArgs
	}
	if attackerID == targetID {
		return nil, furydto.ErrSelfAttack
	}

	var (
		out          Outcome
		rec          domain.BattleRecord
		attackerName string
	)
	keys := []string{
		store.AccountKey(attackerID), store.AccountKey(targetID),
		store.ProgressionKey(attackerID), store.ProgressionKey(targetID),
	}
	err := m.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := m.now()
		atk, err := tx.Account(attackerID)
		if err != nil {
			return err
		}
		if atk == nil {
			return furydto.ErrAccountNotFound
		}
		def, err := tx.Account(targetID)
		if err != nil {
			return err
		}
		if def == nil {
			return furydto.ErrTargetNotFound
		}
		if def.IsShielded(now) {
			return furydto.ErrTargetShielded
		}
		if left := atk.CooldownRemaining(def.ID, now, m.bal.AttackCooldown); left > 0 {
			return furydto.CooldownActive(left)
		}

		atkProg, err := tx.Progression(atk.ID)
		if err != nil {
			return err
		}
		defProg, err := tx.Progression(def.ID)
		if err != nil {
			return err
		}

		atkPower, defPower := power.OfSnapshot(atkProg), power.OfSnapshot(defProg)
		atkRoll := float64(atkPower) * m.multiplier()
		defRoll := float64(defPower) * m.multiplier()
		victory := atkRoll > defRoll

		var stolen, credited domain.Resources
		var atkDelta, defDelta int
		if victory {
			if defProg != nil {
				stolen = m.loot(defProg.Resources)
				defProg.Debit(stolen)
			}
			if atkProg != nil {
				credited = atkProg.Credit(stolen)
			}
			d := EloDelta(m.bal.RatingK, atk.Rating, def.Rating)
			atkDelta = atk.AdjustRating(d, m.bal.RatingFloor)
			defDelta = def.AdjustRating(-d, m.bal.RatingFloor)
			atk.Wins++
			def.Losses++
		} else {
			d := EloDelta(m.bal.RatingK, def.Rating, atk.Rating)
			defDelta = def.AdjustRating(d, m.bal.RatingFloor)
			atkDelta = atk.AdjustRating(-d, m.bal.RatingFloor)
			def.Wins++
			atk.Losses++
		}

		def.ApplyShield(now, m.bal.BattleShield)
		def.LastAttackedAt = &now
		def.UpdatedAt = now
		atk.RecordAttack(def.ID, now)
		atk.PruneAttacks(now, m.bal.AttackCooldown)
		atk.UpdatedAt = now

		if atkProg != nil {
			atkProg.Stats.PvpAttacks++
			if err := tx.PutProgression(atkProg); err != nil {
				return err
			}
		}
		if defProg != nil {
			defProg.Stats.PvpDefends++
			if err := tx.PutProgression(defProg); err != nil {
				return err
			}
		}
		for _, a := range []*domain.Account{atk, def} {
			if err := tx.PutAccount(a); err != nil {
				return err
			}
			if !a.Guest {
				tx.ZAdd(store.RatingKey(), float64(a.Rating), a.ID)
			}
		}

		winner := domain.SideDefender
		if victory {
			winner = domain.SideAttacker
		}
		rec = domain.BattleRecord{
			ID:                   uuid.NewString(),
			AttackerID:           atk.ID,
			DefenderID:           def.ID,
			Winner:               winner,
			StolenWood:           stolen.Wood,
			StolenMeat:           stolen.Meat,
			AttackerPower:        atkPower,
			DefenderPower:        defPower,
			AttackerRatingChange: atkDelta,
			DefenderRatingChange: defDelta,
			CreatedAt:            now,
		}
		out = Outcome{
			BattleID:          rec.ID,
			Victory:           victory,
			AttackerPower:     atkPower,
			DefenderPower:     defPower,
			ResourcesStolen:   stolen,
			ResourcesCredited: credited,
			RatingChange:      atkDelta,
			NewRating:         atk.Rating,
			DefenderShieldEnd: *def.ShieldUntil,
		}
		attackerName = atk.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("pvp_attack_resolved",
		zap.String("battle_id", rec.ID),
		zap.String("attacker_id", rec.AttackerID),
		zap.String("defender_id", rec.DefenderID),
		zap.String("winner", string(rec.Winner)),
		zap.Int64("stolen_wood", rec.StolenWood),
		zap.Int64("stolen_meat", rec.StolenMeat),
		zap.Int("attacker_rating_change", rec.AttackerRatingChange),
	)
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.histTimeout)
	err = m.repo.AppendBattle(hctx, &rec)
	cancel()
	if err != nil {
		// State is committed; the record can be rebuilt from this line.
		obslog.L().Error("battle_history_append_failed",
			zap.String("battle_id", rec.ID),
			zap.String("attacker_id", rec.AttackerID),
			zap.String("defender_id", rec.DefenderID),
			zap.String("winner", string(rec.Winner)),
			zap.Int64("stolen_wood", rec.StolenWood),
			zap.Int64("stolen_meat", rec.StolenMeat),
			zap.Time("created_at", rec.CreatedAt),
			zap.Error(err),
		)
	}
	m.notif.Notify(ctx, notify.Event{
		Type:         notify.EventBattle,
		Recipients:   []string{rec.AttackerID, rec.DefenderID},
		Battle:       &rec,
		AttackerName: attackerName,
		Shield:       m.bal.BattleShield,
		At:           rec.CreatedAt,
	})
	return &out, nil
}

// loot is the steal fraction of wood and meat, floored and within the balance.
func (m *Manager) loot(balance domain.Resources) domain.Resources {
	take := domain.Resources{
		Wood: int64(math.Floor(float64(balance.Wood) * m.bal.StealFraction)),
		Meat: int64(math.Floor(float64(balance.Meat) * m.bal.StealFraction)),
	}
	return take.Clamp(balance)
}

// BuyShield spends gems on a shield of the given length. The new expiry replaces any
// current one.
func (m *Manager) BuyShield(ctx context.Context, accountID string, hours int) (time.Time, error) {
	cost, ok := m.bal.ShieldPrice(hours)
	if !ok {
		return time.Time{}, furydto.ErrInvalidShieldDuration
	}
	var until time.Time
	keys := []string{store.AccountKey(accountID), store.ProgressionKey(accountID)}
	err := m.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := m.now()
		acct, err := tx.Account(accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return furydto.ErrAccountNotFound
		}
		prog, err := tx.Progression(accountID)
		if err != nil {
			return err
		}
		if prog == nil || prog.Resources.Gems < cost {
			return furydto.InsufficientGems(cost)
		}
		prog.Debit(domain.Resources{Gems: cost})
		acct.ApplyShield(now, time.Duration(hours)*time.Hour)
		acct.UpdatedAt = now
		if err := tx.PutProgression(prog); err != nil {
			return err
		}
		if err := tx.PutAccount(acct); err != nil {
			return err
		}
		until = *acct.ShieldUntil
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	obslog.L().Info("pvp_shield_bought", zap.String("account_id", accountID), zap.Int("hours", hours), zap.Int64("gems", cost))
	return until, nil
}
