package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
)

// CleanupRepository removes every trace of forwarded ids. Field maps and both
// set memberships go in one transactional round trip so a crash can never
// leave a set referencing an id whose fields are already gone.
type CleanupRepository interface {
	Purge(ctx context.Context, ids []string) error
}

type RedisCleanupRepository struct {
	db redis.UniversalClient
}

func NewRedisCleanupRepository(db redis.UniversalClient) *RedisCleanupRepository {
	return &RedisCleanupRepository{db: db}
}

func (r *RedisCleanupRepository) Purge(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = partialKey(id)
		members[i] = id
	}

	pipe := r.db.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, haveTextKey, members...)
	pipe.SRem(ctx, haveImageKey, members...)
	_, err := pipe.Exec(ctx)
	return fusionerrors.StoreUnavailable(err)
}
