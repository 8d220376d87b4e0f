package alliance

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

// ReconcilePower recomputes the alliance's total power from its members' current
// snapshots and returns the new total together with the drift it corrected.
func (s *Service) ReconcilePower(ctx context.Context, allianceID string) (total, drift int64, err error) {
	err = s.st.Update(ctx, []string{store.AllianceKey(allianceID)}, func(tx *store.Tx) error {
		al, err := tx.Alliance(allianceID)
		if err != nil {
			return err
		}
		if al == nil {
			return furydto.ErrAllianceNotFound
		}
		ids := al.MemberIDs()
		progKeys := make([]string, len(ids))
		for i, id := range ids {
			progKeys[i] = store.ProgressionKey(id)
		}
		if len(progKeys) > 0 {
			if err := tx.Watch(progKeys...); err != nil {
				return err
			}
		}
		var sum int64
		for _, id := range ids {
			p, err := tx.Progression(id)
			if err != nil {
				return err
			}
			sum += power.OfSnapshot(p)
		}
		total, drift = sum, sum-al.TotalPower
		if drift == 0 {
			return nil
		}
		al.TotalPower = sum
		al.UpdatedAt = s.now()
		return tx.PutAlliance(al)
	})
	if err != nil {
		return 0, 0, err
	}
	if drift != 0 {
		obslog.L().Info("alliance_power_reconciled",
			zap.String("alliance_id", allianceID),
			zap.Int64("total_power", total),
			zap.Int64("drift", drift),
		)
	}
	return total, drift, nil
}

// ReconcileAll reconciles every alliance and returns how many had drifted. A failure
// on one alliance is logged and does not stop the pass.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	var ids []string
	if err := s.scan(ctx, func(al *domain.Alliance) { ids = append(ids, al.ID) }); err != nil {
		return 0, err
	}
	fixed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		_, drift, err := s.ReconcilePower(ctx, id)
		if err != nil {
			obslog.L().Warn("alliance_reconcile_failed", zap.String("alliance_id", id), zap.Error(err))
			continue
		}
		if drift != 0 {
			fixed++
		}
	}
	return fixed, nil
}
