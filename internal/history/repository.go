// Package history is the append-only log of battles and alliance resource transfers.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/park285/frostfury-server/internal/domain"
)

const (
	DefaultBattleLimit = 50
	MaxBattleLimit     = 100
	// DefaultTimeout bounds one append or read when the caller sets nothing else.
	DefaultTimeout = 3 * time.Second
)

var ErrNilRecord = errors.New("history: nil record")

// Repository appends records and serves recent battles. Appends are idempotent on the
// record id.
type Repository interface {
	AppendBattle(ctx context.Context, b *domain.BattleRecord) error
	RecentBattles(ctx context.Context, accountID string, limit int) ([]domain.BattleRecord, error)
	AppendGiftEvent(ctx context.Context, e *domain.GiftEvent) error
	Close() error
}

// ClampLimit maps a requested page size onto [1, MaxBattleLimit]; non-positive means default.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultBattleLimit
	}
	return min(limit, MaxBattleLimit)
}
