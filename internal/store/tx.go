package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/frostfury-server/internal/domain"
)

// Tx is the view of one Update attempt: reads see the watched state, writes are staged
// and only reach Redis if the whole transaction commits.
type Tx struct {
	ctx context.Context
	rtx *redis.Tx
	ops []func(redis.Pipeliner)
}

func (t *Tx) Context() context.Context { return t.ctx }

// Watch adds keys discovered while reading. It must be called before the watched
// key is read.
func (t *Tx) Watch(keys ...string) error {
	return t.rtx.Watch(t.ctx, keys...).Err()
}

func (t *Tx) Account(id string) (*domain.Account, error) {
	return getJSON[domain.Account](t.ctx, t.rtx, AccountKey(id))
}

func (t *Tx) Progression(id string) (*domain.Progression, error) {
	return getJSON[domain.Progression](t.ctx, t.rtx, ProgressionKey(id))
}

func (t *Tx) Alliance(id string) (*domain.Alliance, error) {
	return getJSON[domain.Alliance](t.ctx, t.rtx, AllianceKey(id))
}

func (t *Tx) Gift(id string) (*domain.Gift, error) {
	return getJSON[domain.Gift](t.ctx, t.rtx, GiftKey(id))
}

func (t *Tx) Exists(key string) (bool, error) {
	n, err := t.rtx.Exists(t.ctx, key).Result()
	return n > 0, err
}

func (t *Tx) stage(op func(redis.Pipeliner)) { t.ops = append(t.ops, op) }

func (t *Tx) putJSON(key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.stage(func(p redis.Pipeliner) { p.Set(t.ctx, key, raw, ttl) })
	return nil
}

// PutAccount stages the account and bumps its version.
func (t *Tx) PutAccount(a *domain.Account) error {
	a.Version++
	return t.putJSON(AccountKey(a.ID), a, 0)
}

func (t *Tx) PutProgression(p *domain.Progression) error {
	return t.putJSON(ProgressionKey(p.AccountID), p, 0)
}

// PutAlliance stages the alliance document and its power ranking together.
func (t *Tx) PutAlliance(al *domain.Alliance) error {
	al.MemberCount = len(al.Members)
	if err := t.putJSON(AllianceKey(al.ID), al, 0); err != nil {
		return err
	}
	t.ZAdd(alliancePowerKey, float64(al.TotalPower), al.ID)
	return nil
}

// PutGift stages the gift document. ttl bounds how long the document outlives expiry.
func (t *Tx) PutGift(g *domain.Gift, ttl time.Duration) error {
	return t.putJSON(GiftKey(g.ID), g, ttl)
}

func (t *Tx) Set(key string, value any) {
	t.stage(func(p redis.Pipeliner) { p.Set(t.ctx, key, value, 0) })
}

func (t *Tx) Del(keys ...string) {
	t.stage(func(p redis.Pipeliner) { p.Del(t.ctx, keys...) })
}

func (t *Tx) ZAdd(key string, score float64, member string) {
	t.stage(func(p redis.Pipeliner) { p.ZAdd(t.ctx, key, redis.Z{Score: score, Member: member}) })
}

func (t *Tx) ZRem(key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.stage(func(p redis.Pipeliner) { p.ZRem(t.ctx, key, args...) })
}

func (t *Tx) SAdd(key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.stage(func(p redis.Pipeliner) { p.SAdd(t.ctx, key, args...) })
}

func (t *Tx) SRem(key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.stage(func(p redis.Pipeliner) { p.SRem(t.ctx, key, args...) })
}
