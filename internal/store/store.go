// Package store keeps the live game state in Redis and runs every mutation as an
// optimistic WATCH/MULTI/EXEC transaction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/domain"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/pkg/furydto"
)

const (
	defaultTimeout    = 3 * time.Second
	defaultMaxRetries = 8
	baseBackoff       = 2 * time.Millisecond
	maxBackoff        = 50 * time.Millisecond
)

type Store struct {
	rdb        *redis.Client
	timeout    time.Duration
	maxRetries int
}

// Open connects to REDIS_URL and verifies the connection.
func Open(redisURL string, timeout time.Duration, maxRetries int) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, timeout, maxRetries), nil
}

func New(rdb *redis.Client, timeout time.Duration, maxRetries int) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Store{rdb: rdb, timeout: timeout, maxRetries: maxRetries}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.classify(s.rdb.Ping(ctx).Err())
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Update runs fn inside an optimistic transaction over keys. fn reads through the Tx,
// validates, and stages writes; staged writes are applied atomically with MULTI/EXEC.
// When a watched key changes before EXEC the whole fn is run again, up to the retry
// limit. Errors returned by fn are passed through unchanged.
func (s *Store) Update(ctx context.Context, keys []string, fn func(*Tx) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			t := &Tx{ctx: ctx, rtx: rtx}
			if err := fn(t); err != nil {
				return err
			}
			if len(t.ops) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				for _, op := range t.ops {
					op(p)
				}
				return nil
			})
			return err
		}, keys...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return s.classify(err)
		}
		obslog.L().Debug("store_tx_conflict", zap.Strings("keys", keys), zap.Int("attempt", attempt+1))
		if werr := sleepBackoff(ctx, attempt); werr != nil {
			return s.classify(werr)
		}
	}
	obslog.L().Warn("store_tx_contention", zap.Strings("keys", keys), zap.Int("attempts", s.maxRetries))
	return furydto.ErrStoreContention
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := min(baseBackoff<<min(attempt, 5), maxBackoff)
	d += time.Duration(rand.Int64N(int64(d)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// classify maps infrastructure failures onto the error taxonomy.
func (s *Store) classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := furydto.AsDomain(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return furydto.Transient(furydto.ErrStoreTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return furydto.Transient(furydto.ErrStoreTimeout, err)
	}
	return fmt.Errorf("store: %w", err)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON[T any](ctx context.Context, g getter, key string) (*T, error) {
	raw, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// mgetJSON returns one entry per key, nil where the key is missing.
func mgetJSON[T any](ctx context.Context, rdb *redis.Client, keys []string) ([]*T, error) {
	out := make([]*T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out[i] = &doc
	}
	return out, nil
}

func mapKeys(ids []string, key func(string) string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return keys
}

func (s *Store) Account(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	a, err := getJSON[domain.Account](ctx, s.rdb, AccountKey(id))
	return a, s.classify(err)
}

func (s *Store) Progression(ctx context.Context, id string) (*domain.Progression, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p, err := getJSON[domain.Progression](ctx, s.rdb, ProgressionKey(id))
	return p, s.classify(err)
}

func (s *Store) Alliance(ctx context.Context, id string) (*domain.Alliance, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	al, err := getJSON[domain.Alliance](ctx, s.rdb, AllianceKey(id))
	return al, s.classify(err)
}

func (s *Store) Gift(ctx context.Context, id string) (*domain.Gift, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	g, err := getJSON[domain.Gift](ctx, s.rdb, GiftKey(id))
	return g, s.classify(err)
}

func (s *Store) Accounts(ctx context.Context, ids []string) ([]*domain.Account, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	out, err := mgetJSON[domain.Account](ctx, s.rdb, mapKeys(ids, AccountKey))
	return out, s.classify(err)
}

func (s *Store) Progressions(ctx context.Context, ids []string) ([]*domain.Progression, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	out, err := mgetJSON[domain.Progression](ctx, s.rdb, mapKeys(ids, ProgressionKey))
	return out, s.classify(err)
}

func (s *Store) Alliances(ctx context.Context, ids []string) ([]*domain.Alliance, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	out, err := mgetJSON[domain.Alliance](ctx, s.rdb, mapKeys(ids, AllianceKey))
	return out, s.classify(err)
}

func (s *Store) Gifts(ctx context.Context, ids []string) ([]*domain.Gift, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	out, err := mgetJSON[domain.Gift](ctx, s.rdb, mapKeys(ids, GiftKey))
	return out, s.classify(err)
}

// RandomCompetitive draws up to n distinct ids from the competitive index.
func (s *Store) RandomCompetitive(ctx context.Context, n int) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ids, err := s.rdb.SRandMemberN(ctx, competitiveKey, int64(n)).Result()
	return ids, s.classify(err)
}

// Ranked is one member of a score-ordered index.
type Ranked struct {
	ID    string
	Score float64
}

// RatingRange pages the rating leaderboard, highest first, and returns the total size.
func (s *Store) RatingRange(ctx context.Context, offset, limit int) ([]Ranked, int64, error) {
	return s.rangeDesc(ctx, ratingKey, offset, limit)
}

// AlliancePowerRange pages alliances by total power, highest first.
func (s *Store) AlliancePowerRange(ctx context.Context, offset, limit int) ([]Ranked, int64, error) {
	return s.rangeDesc(ctx, alliancePowerKey, offset, limit)
}

func (s *Store) rangeDesc(ctx context.Context, key string, offset, limit int) ([]Ranked, int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	total, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, s.classify(err)
	}
	if limit <= 0 || int64(offset) >= total {
		return []Ranked{}, total, nil
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, s.classify(err)
	}
	out := make([]Ranked, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Ranked{ID: id, Score: z.Score})
	}
	return out, total, nil
}

// InboxIDs lists gift ids in the account's inbox that have not expired at now.
func (s *Store) InboxIDs(ctx context.Context, accountID string, now time.Time) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ids, err := s.rdb.ZRangeByScore(ctx, InboxKey(accountID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	return ids, s.classify(err)
}

// ExpiredGiftIDs returns up to limit gift ids whose expiry is at or before now.
func (s *Store) ExpiredGiftIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ids, err := s.rdb.ZRangeByScore(ctx, giftExpiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	return ids, s.classify(err)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
