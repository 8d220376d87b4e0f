package pvp

import (
	"context"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/history"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
)

// History lists the account's recent battles, newest first, from its own side.
func (m *Manager) History(ctx context.Context, accountID string, limit int) ([]HistoryEntry, error) {
	hctx, cancel := context.WithTimeout(ctx, m.histTimeout)
	battles, err := m.repo.RecentBattles(hctx, accountID, history.ClampLimit(limit))
	cancel()
	if err != nil {
		return nil, err
	}

	opponents := make([]string, len(battles))
	for i, b := range battles {
		opponents[i] = b.DefenderID
		if b.DefenderID == accountID {
			opponents[i] = b.AttackerID
		}
	}
	accts, err := m.st.Accounts(ctx, opponents)
	if err != nil {
		return nil, err
	}

	out := make([]HistoryEntry, 0, len(battles))
	for i, b := range battles {
		isAttacker := b.AttackerID == accountID
		e := HistoryEntry{
			ID:              b.ID,
			IsAttacker:      isAttacker,
			OpponentID:      opponents[i],
			Victory:         isAttacker == b.AttackerWon(),
			ResourcesStolen: domain.Resources{Wood: b.StolenWood, Meat: b.StolenMeat},
			RatingChange:    b.DefenderRatingChange,
			Time:            b.CreatedAt,
		}
		if isAttacker {
			e.RatingChange = b.AttackerRatingChange
		}
		if a := accts[i]; a != nil {
			e.Opponent = a.Name
		}
		out = append(out, e)
	}
	return out, nil
}

// Leaderboard pages accounts by rating, highest first.
func (m *Manager) Leaderboard(ctx context.Context, limit, offset int) (*Leaderboard, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, maxLeaderboardLimit)
	offset = max(offset, 0)

	page, total, err := m.st.RatingRange(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(page))
	for i, r := range page {
		ids[i] = r.ID
	}
	accts, err := m.st.Accounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &Leaderboard{Total: total, Leaders: make([]LeaderboardEntry, 0, len(page))}
	for i, r := range page {
		e := LeaderboardEntry{Rank: offset + i + 1, ID: r.ID, Rating: int(r.Score)}
		if a := accts[i]; a != nil {
			e.Name = a.Name
			e.Rating = a.Rating
			e.Wins = a.Wins
			e.Losses = a.Losses
			e.WinRate = WinRate(a.Wins, a.Losses)
		}
		out.Leaders = append(out.Leaders, e)
	}
	return out, nil
}
