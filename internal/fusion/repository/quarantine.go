package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
)

// HoldRepository manages the two terminal holding sets: conflicted ids (the
// two parts disagree on partition) and quarantined ids (the downstream sink
// permanently rejected them). Held ids keep their stored parts for manual
// inspection and are excluded from forwarding.
type HoldRepository interface {
	MarkConflicted(ctx context.Context, ids ...string) error
	Conflicted(ctx context.Context) ([]string, error)
	Quarantine(ctx context.Context, ids ...string) error
	Quarantined(ctx context.Context) ([]string, error)
	Held(ctx context.Context) (map[string]bool, error)
}

type RedisHoldRepository struct {
	db redis.UniversalClient
}

func NewRedisHoldRepository(db redis.UniversalClient) *RedisHoldRepository {
	return &RedisHoldRepository{db: db}
}

func (r *RedisHoldRepository) MarkConflicted(ctx context.Context, ids ...string) error {
	return r.add(ctx, conflictKey, ids)
}

func (r *RedisHoldRepository) Conflicted(ctx context.Context) ([]string, error) {
	return r.members(ctx, conflictKey)
}

func (r *RedisHoldRepository) Quarantine(ctx context.Context, ids ...string) error {
	return r.add(ctx, quarantineKey, ids)
}

func (r *RedisHoldRepository) Quarantined(ctx context.Context) ([]string, error) {
	return r.members(ctx, quarantineKey)
}

// Held returns the union of both holding sets as a membership map.
func (r *RedisHoldRepository) Held(ctx context.Context) (map[string]bool, error) {
	ids, err := r.db.SUnion(ctx, conflictKey, quarantineKey).Result()
	if err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}
	held := make(map[string]bool, len(ids))
	for _, id := range ids {
		held[id] = true
	}
	return held, nil
}

func (r *RedisHoldRepository) add(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return fusionerrors.StoreUnavailable(r.db.SAdd(ctx, key, members...).Err())
}

func (r *RedisHoldRepository) members(ctx context.Context, key string) ([]string, error) {
	ids, err := r.db.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}
	return ids, nil
}
