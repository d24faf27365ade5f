package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
	"github.com/openmosaic/fusion/internal/fusion/model"
)

// ReadinessRepository tracks which ids have which part kind. Membership is
// maintained best-effort alongside the field maps; consumers must treat a
// ready id as a candidate and re-check the authoritative fields before
// assembling.
type ReadinessRepository interface {
	Mark(ctx context.Context, id string, kind model.Kind) error
	Unmark(ctx context.Context, id string) error
	ReadyIds(ctx context.Context) ([]string, error)
	ReadyAmong(ctx context.Context, candidates []string) ([]string, error)
}

type RedisReadinessRepository struct {
	db redis.UniversalClient
}

func NewRedisReadinessRepository(db redis.UniversalClient) *RedisReadinessRepository {
	return &RedisReadinessRepository{db: db}
}

func (r *RedisReadinessRepository) Mark(ctx context.Context, id string, kind model.Kind) error {
	return fusionerrors.StoreUnavailable(r.db.SAdd(ctx, kindSetKey(kind), id).Err())
}

func (r *RedisReadinessRepository) Unmark(ctx context.Context, id string) error {
	pipe := r.db.TxPipeline()
	pipe.SRem(ctx, haveTextKey, id)
	pipe.SRem(ctx, haveImageKey, id)
	_, err := pipe.Exec(ctx)
	return fusionerrors.StoreUnavailable(err)
}

// ReadyIds returns every id present in both kind sets.
func (r *RedisReadinessRepository) ReadyIds(ctx context.Context) ([]string, error) {
	ids, err := r.db.SInter(ctx, haveTextKey, haveImageKey).Result()
	if err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}
	return ids, nil
}

// ReadyAmong restricts the readiness check to candidates, bounding cost when
// only a known subset can have changed (e.g. right after a batch submit).
func (r *RedisReadinessRepository) ReadyAmong(ctx context.Context, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	type membership struct {
		text  *redis.BoolCmd
		image *redis.BoolCmd
	}
	pipe := r.db.Pipeline()
	cmds := make(map[string]membership, len(candidates))
	for _, id := range candidates {
		cmds[id] = membership{
			text:  pipe.SIsMember(ctx, haveTextKey, id),
			image: pipe.SIsMember(ctx, haveImageKey, id),
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}

	ready := make([]string, 0, len(candidates))
	for _, id := range candidates {
		m := cmds[id]
		if m.text.Val() && m.image.Val() {
			ready = append(ready, id)
		}
	}
	return ready, nil
}
