package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/frostfury-server/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS pvp_battles (
    battle_id              TEXT PRIMARY KEY,
    attacker_id            TEXT NOT NULL,
    defender_id            TEXT NOT NULL,
    winner                 TEXT NOT NULL,
    stolen_wood            BIGINT NOT NULL DEFAULT 0,
    stolen_meat            BIGINT NOT NULL DEFAULT 0,
    attacker_power         BIGINT NOT NULL DEFAULT 0,
    defender_power         BIGINT NOT NULL DEFAULT 0,
    attacker_rating_change INTEGER NOT NULL DEFAULT 0,
    defender_rating_change INTEGER NOT NULL DEFAULT 0,
    created_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pvp_battles_attacker_idx ON pvp_battles (attacker_id, created_at DESC);
CREATE INDEX IF NOT EXISTS pvp_battles_defender_idx ON pvp_battles (defender_id, created_at DESC);

CREATE TABLE IF NOT EXISTS alliance_gift_events (
    event_id    TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    gift_id     TEXT NOT NULL DEFAULT '',
    from_id     TEXT NOT NULL,
    to_id       TEXT NOT NULL DEFAULT '',
    alliance_id TEXT NOT NULL,
    wood        BIGINT NOT NULL DEFAULT 0,
    meat        BIGINT NOT NULL DEFAULT 0,
    gems        BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alliance_gift_events_alliance_idx ON alliance_gift_events (alliance_id, created_at DESC);
`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

// EnsureSchema creates the history tables when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) AppendBattle(ctx context.Context, b *domain.BattleRecord) error {
	if b == nil {
		return ErrNilRecord
	}
	const q = `INSERT INTO pvp_battles (
        battle_id, attacker_id, defender_id, winner,
        stolen_wood, stolen_meat, attacker_power, defender_power,
        attacker_rating_change, defender_rating_change, created_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      ON CONFLICT (battle_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.AttackerID, b.DefenderID, string(b.Winner),
		b.StolenWood, b.StolenMeat, b.AttackerPower, b.DefenderPower,
		b.AttackerRatingChange, b.DefenderRatingChange, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert battle %s: %w", b.ID, err)
	}
	return nil
}

func (r *PostgresRepository) RecentBattles(ctx context.Context, accountID string, limit int) ([]domain.BattleRecord, error) {
	const q = `SELECT battle_id, attacker_id, defender_id, winner,
        stolen_wood, stolen_meat, attacker_power, defender_power,
        attacker_rating_change, defender_rating_change, created_at
      FROM pvp_battles
      WHERE attacker_id = $1 OR defender_id = $1
      ORDER BY created_at DESC, battle_id DESC
      LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, accountID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query battles: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BattleRecord, 0, ClampLimit(limit))
	for rows.Next() {
		var (
			b      domain.BattleRecord
			winner string
		)
		if err := rows.Scan(
			&b.ID, &b.AttackerID, &b.DefenderID, &winner,
			&b.StolenWood, &b.StolenMeat, &b.AttackerPower, &b.DefenderPower,
			&b.AttackerRatingChange, &b.DefenderRatingChange, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		b.Winner = domain.Side(winner)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battles: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) AppendGiftEvent(ctx context.Context, e *domain.GiftEvent) error {
	if e == nil {
		return ErrNilRecord
	}
	const q = `INSERT INTO alliance_gift_events (
        event_id, kind, gift_id, from_id, to_id, alliance_id, wood, meat, gems, created_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
      ON CONFLICT (event_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Kind), e.GiftID, e.FromID, e.ToID, e.AllianceID,
		e.Resources.Wood, e.Resources.Meat, e.Resources.Gems, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gift event %s: %w", e.ID, err)
	}
	return nil
}
