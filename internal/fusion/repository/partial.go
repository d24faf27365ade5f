package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
	"github.com/openmosaic/fusion/internal/fusion/model"
)

// PartialRecordRepository is the per-id field map holding the parts received
// so far for each record.
type PartialRecordRepository interface {
	PutPart(ctx context.Context, id string, part model.Part) (model.PartialRecord, error)
	Get(ctx context.Context, id string) (model.PartialRecord, error)
	GetMany(ctx context.Context, ids []string) (map[string]model.PartialRecord, error)
	DeleteMany(ctx context.Context, ids []string) error
}

type RedisPartialRecordRepository struct {
	db redis.UniversalClient
}

func NewRedisPartialRecordRepository(db redis.UniversalClient) *RedisPartialRecordRepository {
	return &RedisPartialRecordRepository{db: db}
}

// PutPart merges part into the id's field map and returns the resulting
// fields. The write touches only the field for part's kind, so concurrent
// writers submitting different kinds for the same id never lose either value.
func (r *RedisPartialRecordRepository) PutPart(ctx context.Context, id string, part model.Part) (model.PartialRecord, error) {
	data, err := encodePart(part)
	if err != nil {
		return nil, err
	}

	pipe := r.db.TxPipeline()
	pipe.HSet(ctx, partialKey(id), string(part.Kind), data)
	current := pipe.HGetAll(ctx, partialKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}
	return decodePartial(current.Val())
}

func (r *RedisPartialRecordRepository) Get(ctx context.Context, id string) (model.PartialRecord, error) {
	fields, err := r.db.HGetAll(ctx, partialKey(id)).Result()
	if err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}
	return decodePartial(fields)
}

// GetMany fetches the field maps for ids in a single pipelined round trip.
// Ids with no stored parts map to an empty record.
func (r *RedisPartialRecordRepository) GetMany(ctx context.Context, ids []string) (map[string]model.PartialRecord, error) {
	pipe := r.db.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, partialKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}

	partials := make(map[string]model.PartialRecord, len(ids))
	for id, cmd := range cmds {
		partial, err := decodePartial(cmd.Val())
		if err != nil {
			return nil, err
		}
		partials[id] = partial
	}
	return partials, nil
}

func (r *RedisPartialRecordRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = partialKey(id)
	}
	return fusionerrors.StoreUnavailable(r.db.Del(ctx, keys...).Err())
}
