package treasury

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/store"
)

// Donate moves the bundle, clamped to the account's balance, into its alliance
// treasury and credits the same contribution a gift would.
func (s *Service) Donate(ctx context.Context, accountID string, want domain.Resources) (domain.Resources, error) {
	var (
		donated    domain.Resources
		allianceID string
	)
	keys := []string{store.AccountKey(accountID), store.ProgressionKey(accountID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		acct, al, err := affiliatedTx(tx, accountID)
		if err != nil {
			return err
		}
		prog, err := tx.Progression(accountID)
		if err != nil {
			return err
		}
		amount, err := clampBundle(want, prog)
		if err != nil {
			return err
		}
		prog.Debit(amount)
		al.Treasury = al.Treasury.Add(amount)
		al.AddContribution(acct.ID, amount.ContributionValue(), now)
		al.UpdatedAt = now
		if err := tx.PutProgression(prog); err != nil {
			return err
		}
		if err := tx.PutAlliance(al); err != nil {
			return err
		}
		donated, allianceID = amount, al.ID
		return nil
	})
	if err != nil {
		return domain.Resources{}, err
	}

	obslog.L().Info("alliance_donate",
		zap.String("account_id", accountID),
		zap.String("alliance_id", allianceID),
		zap.Int64("wood", donated.Wood),
		zap.Int64("meat", donated.Meat),
		zap.Int64("gems", donated.Gems),
	)
	s.appendEvent(ctx, &domain.GiftEvent{
		ID:         uuid.NewString(),
		Kind:       domain.GiftEventDonation,
		FromID:     accountID,
		AllianceID: allianceID,
		Resources:  donated,
		CreatedAt:  s.now(),
	})
	return donated, nil
}
