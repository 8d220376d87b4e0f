package alliance

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/pkg/furydto"
)

// leaderTx loads the actor and target accounts plus the actor's alliance, checking
// that the actor leads it and the target is one of its members.
func leaderTx(tx *store.Tx, actorID, targetID string) (actor, target *domain.Account, al *domain.Alliance, err error) {
	actor, err = tx.Account(actorID)
	if err != nil {
		return nil, nil, nil, err
	}
	if actor == nil {
		return nil, nil, nil, furydto.ErrAccountNotFound
	}
	if !actor.Affiliated() {
		return nil, nil, nil, furydto.ErrNotAffiliated
	}
	if err := tx.Watch(store.AllianceKey(actor.AllianceID)); err != nil {
		return nil, nil, nil, err
	}
	al, err = tx.Alliance(actor.AllianceID)
	if err != nil {
		return nil, nil, nil, err
	}
	if al == nil {
		return nil, nil, nil, furydto.ErrAllianceNotFound
	}
	if al.LeaderID != actor.ID {
		return nil, nil, nil, furydto.ErrNotLeader
	}
	target, err = tx.Account(targetID)
	if err != nil {
		return nil, nil, nil, err
	}
	if target == nil || target.AllianceID != al.ID || !al.IsMember(target.ID) {
		return nil, nil, nil, furydto.ErrNotMember
	}
	return actor, target, al, nil
}

// TransferLeadership hands the alliance to another member. The previous leader stays
// on as an officer.
func (s *Service) TransferLeadership(ctx context.Context, leaderID, newLeaderID string) (*domain.Alliance, error) {
	newLeaderID = strings.TrimSpace(newLeaderID)
	if newLeaderID == "" || newLeaderID == leaderID {
		return nil, furydto.ErrInvalidArgs
	}
	var (
		out  *domain.Alliance
		name string
	)
	keys := []string{store.AccountKey(leaderID), store.AccountKey(newLeaderID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		old, next, al, err := leaderTx(tx, leaderID, newLeaderID)
		if err != nil {
			return err
		}
		al.LeaderID = next.ID
		al.Demote(next.ID)
		al.Promote(old.ID)
		al.UpdatedAt = now
		old.SetAffiliation(al.ID, domain.RoleOfficer)
		old.UpdatedAt = now
		next.SetAffiliation(al.ID, domain.RoleLeader)
		next.UpdatedAt = now

		if err := tx.PutAlliance(al); err != nil {
			return err
		}
		if err := tx.PutAccount(old); err != nil {
			return err
		}
		if err := tx.PutAccount(next); err != nil {
			return err
		}
		out, name = al, next.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("alliance_leader_transfer",
		zap.String("alliance_id", out.ID),
		zap.String("from", leaderID),
		zap.String("to", newLeaderID),
	)
	s.announce(ctx, out, ActionLeader, newLeaderID, name)
	return out, nil
}

// SetOfficer promotes a member to officer or demotes an officer back to member.
func (s *Service) SetOfficer(ctx context.Context, actorID, targetID string, promote bool) (*domain.Alliance, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" || targetID == actorID {
		return nil, furydto.ErrInvalidArgs
	}
	var out *domain.Alliance
	keys := []string{store.AccountKey(actorID), store.AccountKey(targetID)}
	err := s.st.Update(ctx, keys, func(tx *store.Tx) error {
		now := s.now()
		_, target, al, err := leaderTx(tx, actorID, targetID)
		if err != nil {
			return err
		}
		role := domain.RoleMember
		if promote {
			al.Promote(target.ID)
			role = domain.RoleOfficer
		} else {
			al.Demote(target.ID)
		}
		al.UpdatedAt = now
		target.SetAffiliation(al.ID, role)
		target.UpdatedAt = now
		if err := tx.PutAlliance(al); err != nil {
			return err
		}
		if err := tx.PutAccount(target); err != nil {
			return err
		}
		out = al
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("alliance_officer_set", zap.String("alliance_id", out.ID), zap.String("account_id", targetID), zap.Bool("promote", promote))
	return out, nil
}
