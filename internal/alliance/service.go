// Package alliance manages alliance membership: creation, joining, leaving,
// leadership and officer changes, and the power aggregate kept on each alliance.
package alliance

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/config"
	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/power"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

const (
	minNameLen        = 3
	maxNameLen        = 20
	minTagLen         = 2
	maxTagLen         = 5
	maxDescriptionLen = 500
)

// Membership actions carried on alliance events.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
	ActionLeader = "leader"
)

type Service struct {
	st    *store.Store
	bal   config.Balance
	now   func() time.Time
	notif notify.Notifier
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithBalance(b config.Balance) Option { return func(s *Service) { s.bal = b } }

func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notif = n } }

func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{st: st, bal: config.DefaultBalance(), now: time.Now, notif: notify.Nop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new alliance. A nil Public means public.
type CreateInput struct {
	Name        string
	Tag         string
	Description string
	Public      *bool
}

func (in *CreateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Tag = strings.ToUpper(strings.TrimSpace(in.Tag))
	in.Description = strings.TrimSpace(in.Description)
	if n := utf8.RuneCountInString(in.Name); n < minNameLen || n > maxNameLen {
		return furydto.ErrInvalidName
	}
	if n := utf8.RuneCountInString(in.Tag); n < minTagLen || n > maxTagLen {
		return furydto.ErrInvalidTag
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return furydto.ErrDescriptionTooLong
	}
	return nil
}

// Create founds an alliance with the account as its only member and leader. The
// creation cost is paid in gems and the name and tag are reserved in the same commit.
func (s *Service) Create(ctx context.Context, accountID string, in CreateInput) (*domain.Alliance, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	public := in.Public == nil || *in.Public
	cost := s.bal.AllianceCreateCost

	var out *domain.Alliance
	keys := []string{
		store.AccountKey(accountID), store.ProgressionKey(accountID),
		store.AllianceNameKey(in.Name), store.AllianceTagKey(in.Tag),
	}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		acct, err := tx.Account(accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return furydto.ErrAccountNotFound
		}
		if acct.Affiliated() {
			return furydto.ErrAlreadyAffiliated
		}
		for _, k := range []string{store.AllianceNameKey(in.Name), store.AllianceTagKey(in.Tag)} {
			taken, err := tx.Exists(k)
			if err != nil {
				return err
			}
			if taken {
				return furydto.ErrNameTaken
			}
		}
		prog, err := tx.Progression(accountID)
		if err != nil {
			return err
		}
		if prog == nil || prog.Resources.Gems < cost {
			return furydto.InsufficientGems(cost)
		}
		prog.Debit(domain.Resources{Gems: cost})

		al := &domain.Alliance{
			ID:          uuid.NewString(),
			Name:        in.Name,
			Tag:         in.Tag,
			Description: in.Description,
			LeaderID:    acct.ID,
			Officers:    []string{},
			MaxMembers:  s.bal.AllianceMaxMembers,
			TotalPower:  power.OfSnapshot(prog),
			Public:      public,
			MinLevel:    domain.DefaultLevel,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		al.AddMember(acct.ID, now)
		acct.SetAffiliation(al.ID, domain.RoleLeader)
		acct.UpdatedAt = now

		if err := tx.PutProgression(prog); err != nil {
			return err
		}
		if err := tx.PutAlliance(al); err != nil {
			return err
		}
		if err := tx.PutAccount(acct); err != nil {
			return err
		}
		tx.Set(store.AllianceNameKey(al.Name), al.ID)
		tx.Set(store.AllianceTagKey(al.Tag), al.ID)
		out = al
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("alliance_create",
		zap.String("alliance_id", out.ID),
		zap.String("leader_id", accountID),
		zap.String("tag", out.Tag),
		zap.Int64("cost_gems", cost),
	)
	return out, nil
}

// Join adds the account to a public alliance with room and a level gate it meets.
func (s *Service) Join(ctx context.Context, accountID, allianceID string) (*domain.Alliance, error) {
	allianceID = strings.TrimSpace(allianceID)
	if allianceID == "" {
		return nil, furydto.ErrInvalidArgs
	}
	var (
		out  *domain.Alliance
		name string
	)
	keys := []string{store.AccountKey(accountID), store.ProgressionKey(accountID), store.AllianceKey(allianceID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		acct, err := tx.Account(accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return furydto.ErrAccountNotFound
		}
		if acct.Affiliated() {
			return furydto.ErrAlreadyAffiliated
		}
		al, err := tx.Alliance(allianceID)
		if err != nil {
			return err
		}
		if al == nil {
			return furydto.ErrAllianceNotFound
		}
		if !al.Public {
			return furydto.ErrAlliancePrivate
		}
		if al.Full() {
			return furydto.ErrAllianceFull
		}
		prog, err := tx.Progression(accountID)
		if err != nil {
			return err
		}
		// a missing snapshot counts as a starting account
		snap := domain.Progression{}
		if prog != nil {
			snap = *prog
		}
		if snap.WithDefaults().Level < al.MinLevel {
			return furydto.LevelTooLow(al.MinLevel)
		}

		al.AddMember(acct.ID, now)
		al.AddPower(power.OfSnapshot(prog))
		al.UpdatedAt = now
		acct.SetAffiliation(al.ID, domain.RoleMember)
		acct.UpdatedAt = now

		if err := tx.PutAlliance(al); err != nil {
			return err
		}
		if err := tx.PutAccount(acct); err != nil {
			return err
		}
		out, name = al, acct.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("alliance_join", zap.String("alliance_id", out.ID), zap.String("account_id", accountID), zap.Int("members", out.MemberCount))
	s.announce(ctx, out, ActionJoined, accountID, name)
	return out, nil
}

// Leave removes the account from its alliance. A leader may only leave when alone,
// in which case the alliance is deleted. It reports whether that happened.
func (s *Service) Leave(ctx context.Context, accountID string) (deleted bool, err error) {
	var (
		remaining *domain.Alliance
		name      string
	)
	keys := []string{store.AccountKey(accountID), store.ProgressionKey(accountID)}
	err = s.st.Update(ctx, keys, func(tx *store.Tx) error {
		deleted, remaining = false, nil
		now := s.now()
		acct, err := tx.Account(accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return furydto.ErrAccountNotFound
		}
		if !acct.Affiliated() {
			return furydto.ErrNotAffiliated
		}
		if err := tx.Watch(store.AllianceKey(acct.AllianceID)); err != nil {
			return err
		}
		al, err := tx.Alliance(acct.AllianceID)
		if err != nil {
			return err
		}

		switch {
		case al == nil:
			// dangling affiliation; just clear it
		case al.LeaderID == acct.ID:
			if len(al.Members) > 1 {
				return furydto.ErrLeadershipTransferRequired
			}
			tx.Del(store.AllianceKey(al.ID), store.AllianceNameKey(al.Name), store.AllianceTagKey(al.Tag))
			tx.ZRem(store.AlliancePowerKey(), al.ID)
			deleted = true
		default:
			prog, err := tx.Progression(accountID)
			if err != nil {
				return err
			}
			al.RemoveMember(acct.ID)
			al.AddPower(-power.OfSnapshot(prog))
			al.UpdatedAt = now
			if err := tx.PutAlliance(al); err != nil {
				return err
			}
			remaining = al
		}

		acct.ClearAffiliation()
		acct.UpdatedAt = now
		name = acct.Name
		return tx.PutAccount(acct)
	})
	if err != nil {
		return false, err
	}
	obslog.L().Info("alliance_leave", zap.String("account_id", accountID), zap.Bool("deleted", deleted))
	if remaining != nil {
		s.announce(ctx, remaining, ActionLeft, accountID, name)
	}
	return deleted, nil
}

func (s *Service) announce(ctx context.Context, al *domain.Alliance, action, accountID, name string) {
	s.notif.Notify(ctx, notify.Event{
		Type:       notify.EventAlliance,
		Recipients: al.MemberIDs(),
		Alliance:   &notify.AllianceChange{AllianceID: al.ID, Action: action, AccountID: accountID, Name: name},
		At:         s.now(),
	})
}
