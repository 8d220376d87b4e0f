package treasury

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

type GiftInput struct {
	ToID      string
	Resources domain.Resources
	Message   string
}

// GiftView is an inbox entry.
type GiftView struct {
	ID        string           `json:"id"`
	FromID    string           `json:"fromId"`
	From      string           `json:"from"`
	Resources domain.Resources `json:"resources"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Claim is the result of claiming a gift. Credited can be below Resources when the
// recipient's storage is full.
type Claim struct {
	GiftID    string           `json:"giftId"`
	Resources domain.Resources `json:"resources"`
	Credited  domain.Resources `json:"credited"`
}

// SendGift debits the sender by the requested bundle clamped to its balance and
// leaves an unclaimed gift in the recipient's inbox. The sender's alliance
// contribution grows by the bundle's value.
func (s *Service) SendGift(ctx context.Context, senderID string, in GiftInput) (*domain.Gift, error) {
	in.ToID = strings.TrimSpace(in.ToID)
	in.Message = strings.TrimSpace(in.Message)
	if in.ToID == "" || in.ToID == senderID {
		return nil, furydto.ErrInvalidRecipient
	}
	if utf8.RuneCountInString(in.Message) > maxMessageLen {
		return nil, furydto.ErrMessageTooLong
	}

	var (
		gift       *domain.Gift
		senderName string
	)
	keys := []string{store.AccountKey(senderID), store.ProgressionKey(senderID), store.AccountKey(in.ToID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		sender, al, err := affiliatedTx(tx, senderID)
		if err != nil {
			return err
		}
		recipient, err := tx.Account(in.ToID)
		if err != nil {
			return err
		}
		if recipient == nil || recipient.AllianceID != sender.AllianceID {
			return furydto.ErrNotSameAlliance
		}
		prog, err := tx.Progression(senderID)
		if err != nil {
			return err
		}
		amount, err := clampBundle(in.Resources, prog)
		if err != nil {
			return err
		}

		prog.Debit(amount)
		prog.Stats.GiftsSent++
		al.AddContribution(sender.ID, amount.ContributionValue(), now)
		al.UpdatedAt = now

		g := &domain.Gift{
			ID:         uuid.NewString(),
			FromID:     sender.ID,
			ToID:       recipient.ID,
			AllianceID: al.ID,
			Resources:  amount,
			Message:    in.Message,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.bal.GiftTTL),
		}
		if err := tx.PutProgression(prog); err != nil {
			return err
		}
		if err := tx.PutAlliance(al); err != nil {
			return err
		}
		if err := tx.PutGift(g, s.bal.GiftTTL+giftRetention); err != nil {
			return err
		}
		expiry := float64(g.ExpiresAt.UnixMilli())
		tx.ZAdd(store.InboxKey(g.ToID), expiry, g.ID)
		tx.ZAdd(store.GiftExpiryKey(), expiry, g.ID)
		gift, senderName = g, sender.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("gift_send",
		zap.String("gift_id", gift.ID),
		zap.String("from_id", gift.FromID),
		zap.String("to_id", gift.ToID),
		zap.Int64("wood", gift.Resources.Wood),
		zap.Int64("meat", gift.Resources.Meat),
		zap.Int64("gems", gift.Resources.Gems),
	)
	ev := newEvent(domain.GiftEventSent, gift)
	ev.CreatedAt = gift.CreatedAt
	s.appendEvent(ctx, ev)
	s.notif.Notify(ctx, notify.Event{
		Type:       notify.EventGift,
		Recipients: []string{gift.ToID},
		Gift:       gift,
		SenderName: senderName,
		At:         gift.CreatedAt,
	})
	return gift, nil
}

// ClaimGift credits an unclaimed, unexpired gift to its recipient and marks it
// claimed in the same commit, so a gift pays out at most once. Unknown, foreign,
// expired and already claimed gifts all report ErrGiftNotFound.
func (s *Service) ClaimGift(ctx context.Context, recipientID, giftID string) (*Claim, error) {
	giftID = strings.TrimSpace(giftID)
	if giftID == "" {
		return nil, furydto.ErrGiftNotFound
	}
	var (
		out  Claim
		gift *domain.Gift
	)
	keys := []string{store.GiftKey(giftID), store.AccountKey(recipientID), store.ProgressionKey(recipientID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		g, err := tx.Gift(giftID)
		if err != nil {
			return err
		}
		if g == nil || !g.ClaimableBy(recipientID, now) {
			return furydto.ErrGiftNotFound
		}
		acct, err := tx.Account(recipientID)
		if err != nil {
			return err
		}
		if acct == nil {
			return furydto.ErrAccountNotFound
		}
		prog, err := tx.Progression(recipientID)
		if err != nil {
			return err
		}
		if prog == nil {
			prog = &domain.Progression{AccountID: recipientID}
		}

		credited := prog.Credit(g.Resources)
		prog.Stats.GiftsReceived++
		prog.UpdatedAt = now
		g.Claimed = true
		g.ClaimedAt = &now

		if err := tx.PutProgression(prog); err != nil {
			return err
		}
		if err := tx.PutGift(g, g.ExpiresAt.Add(giftRetention).Sub(now)); err != nil {
			return err
		}
		tx.ZRem(store.InboxKey(recipientID), g.ID)
		out = Claim{GiftID: g.ID, Resources: g.Resources, Credited: credited}
		gift = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("gift_claim",
		zap.String("gift_id", gift.ID),
		zap.String("to_id", recipientID),
		zap.Int64("credited_wood", out.Credited.Wood),
		zap.Int64("credited_meat", out.Credited.Meat),
		zap.Int64("credited_gems", out.Credited.Gems),
	)
	ev := newEvent(domain.GiftEventClaimed, gift)
	ev.Resources = out.Credited
	ev.CreatedAt = *gift.ClaimedAt
	s.appendEvent(ctx, ev)
	return &out, nil
}

// Gifts lists the account's claimable gifts, newest first.
func (s *Service) Gifts(ctx context.Context, accountID string) ([]GiftView, error) {
	now := s.now()
	ids, err := s.st.InboxIDs(ctx, accountID, now)
	if err != nil {
		return nil, err
	}
	gifts, err := s.st.Gifts(ctx, ids)
	if err != nil {
		return nil, err
	}
	live := make([]*domain.Gift, 0, len(gifts))
	senders := make([]string, 0, len(gifts))
	for _, g := range gifts {
		if g != nil && g.ClaimableBy(accountID, now) {
			live = append(live, g)
			senders = append(senders, g.FromID)
		}
	}
	accts, err := s.st.Accounts(ctx, senders)
	if err != nil {
		return nil, err
	}

	out := make([]GiftView, 0, len(live))
	for i, g := range live {
		v := GiftView{
			ID:        g.ID,
			FromID:    g.FromID,
			From:      "Unknown",
			Resources: g.Resources,
			Message:   g.Message,
			CreatedAt: g.CreatedAt,
			ExpiresAt: g.ExpiresAt,
		}
		if a := accts[i]; a != nil {
			v.From = a.Name
		}
		out = append(out, v)
	}
	slices.SortStableFunc(out, func(a, b GiftView) int { return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano()) })
	return out, nil
}

// PurgeExpired deletes gifts that expired at or before now and drops them from
// their inboxes. It returns how many were removed.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		ids, err := s.st.ExpiredGiftIDs(ctx, now, purgeBatch)
		if err != nil {
			return removed, err
		}
		for _, id := range ids {
			err := s.st.Update(ctx, []string{store.GiftKey(id)}, func(tx *store.Tx) error {
				g, err := tx.Gift(id)
				if err != nil {
					return err
				}
				if g != nil {
					tx.ZRem(store.InboxKey(g.ToID), id)
					tx.Del(store.GiftKey(id))
				}
				tx.ZRem(store.GiftExpiryKey(), id)
				return nil
			})
			if err != nil {
				return removed, err
			}
			removed++
		}
		if len(ids) < purgeBatch {
			break
		}
	}
	if removed > 0 {
		obslog.L().Info("gift_purge", zap.Int("removed", removed))
	}
	return removed, nil
}
