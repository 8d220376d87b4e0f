package history

import (
	"context"
	"slices"
	"sync"

	"github.com/park285/frostfury-server/internal/domain"
)

// MemoryRepository keeps history in process memory. It is used when no DATABASE_URL is
// configured and in tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	battles   []domain.BattleRecord
	battleIDs map[string]struct{}
	events    []domain.GiftEvent
	eventIDs  map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		battleIDs: make(map[string]struct{}),
		eventIDs:  make(map[string]struct{}),
	}
}

func (m *MemoryRepository) AppendBattle(_ context.Context, b *domain.BattleRecord) error {
	if b == nil {
		return ErrNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.battleIDs[b.ID]; dup {
		return nil
	}
	m.battleIDs[b.ID] = struct{}{}
	m.battles = append(m.battles, *b)
	return nil
}

func (m *MemoryRepository) RecentBattles(_ context.Context, accountID string, limit int) ([]domain.BattleRecord, error) {
	limit = ClampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.BattleRecord, 0, limit)
	// newest were appended last
	for i := len(m.battles) - 1; i >= 0 && len(out) < limit; i-- {
		if m.battles[i].Involves(accountID) {
			out = append(out, m.battles[i])
		}
	}
	slices.SortStableFunc(out, func(a, b domain.BattleRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) AppendGiftEvent(_ context.Context, e *domain.GiftEvent) error {
	if e == nil {
		return ErrNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.eventIDs[e.ID]; dup {
		return nil
	}
	m.eventIDs[e.ID] = struct{}{}
	m.events = append(m.events, *e)
	return nil
}

// GiftEvents returns the audit rows of one alliance in append order.
func (m *MemoryRepository) GiftEvents(allianceID string) []domain.GiftEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.GiftEvent
	for _, e := range m.events {
		if e.AllianceID == allianceID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryRepository) Close() error { return nil }
