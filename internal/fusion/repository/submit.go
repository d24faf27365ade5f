package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
	"github.com/openmosaic/fusion/internal/fusion/model"
)

// PartWrite is one part destined for a record's field map.
type PartWrite struct {
	Id   string
	Part model.Part
}

// SubmitState captures a record's field map immediately before and after a
// submit pipeline applied its writes, letting callers decide what the batch
// changed without a second round trip.
type SubmitState struct {
	Id     string
	Before model.PartialRecord
	After  model.PartialRecord
}

// JoinRepository applies part writes and their readiness set updates as one
// transactional pipeline. Every sub-operation is idempotent: replaying a
// write converges on the same field map and set memberships.
type JoinRepository interface {
	SubmitParts(ctx context.Context, writes []PartWrite) ([]SubmitState, error)
}

type RedisJoinRepository struct {
	db redis.UniversalClient
}

func NewRedisJoinRepository(db redis.UniversalClient) *RedisJoinRepository {
	return &RedisJoinRepository{db: db}
}

// SubmitParts merges each write into its record's field map and marks the
// corresponding kind set, all in a single MULTI/EXEC round trip. Writes for
// the same id are grouped so the returned state reflects the whole batch.
func (r *RedisJoinRepository) SubmitParts(ctx context.Context, writes []PartWrite) ([]SubmitState, error) {
	if len(writes) == 0 {
		return nil, nil
	}

	order := make([]string, 0, len(writes))
	byId := make(map[string][]model.Part, len(writes))
	for _, w := range writes {
		if _, seen := byId[w.Id]; !seen {
			order = append(order, w.Id)
		}
		byId[w.Id] = append(byId[w.Id], w.Part)
	}

	type stateCmds struct {
		before *redis.MapStringStringCmd
		after  *redis.MapStringStringCmd
	}
	pipe := r.db.TxPipeline()
	cmds := make(map[string]stateCmds, len(order))
	for _, id := range order {
		key := partialKey(id)
		before := pipe.HGetAll(ctx, key)
		for _, part := range byId[id] {
			data, err := encodePart(part)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, string(part.Kind), data)
			pipe.SAdd(ctx, kindSetKey(part.Kind), id)
		}
		after := pipe.HGetAll(ctx, key)
		cmds[id] = stateCmds{before: before, after: after}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fusionerrors.StoreUnavailable(err)
	}

	states := make([]SubmitState, 0, len(order))
	for _, id := range order {
		before, err := decodePartial(cmds[id].before.Val())
		if err != nil {
			return nil, err
		}
		after, err := decodePartial(cmds[id].after.Val())
		if err != nil {
			return nil, err
		}
		states = append(states, SubmitState{Id: id, Before: before, After: after})
	}
	return states, nil
}
