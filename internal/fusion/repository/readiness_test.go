package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmosaic/fusion/internal/fusion/model"
)

func TestReadyIds_IsIntersection(t *testing.T) {
	withReadinessRepository(func(r *RedisReadinessRepository) {
		ctx := context.Background()

		require.NoError(t, r.Mark(ctx, "both", model.KindText))
		require.NoError(t, r.Mark(ctx, "both", model.KindImage))
		require.NoError(t, r.Mark(ctx, "textOnly", model.KindText))
		require.NoError(t, r.Mark(ctx, "imageOnly", model.KindImage))

		ready, err := r.ReadyIds(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"both"}, ready)
	})
}

func TestReadyAmong_RestrictsToCandidates(t *testing.T) {
	withReadinessRepository(func(r *RedisReadinessRepository) {
		ctx := context.Background()

		for _, id := range []string{"a", "b"} {
			require.NoError(t, r.Mark(ctx, id, model.KindText))
			require.NoError(t, r.Mark(ctx, id, model.KindImage))
		}
		require.NoError(t, r.Mark(ctx, "c", model.KindText))

		ready, err := r.ReadyAmong(ctx, []string{"a", "c", "unknown"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ready)

		ready, err = r.ReadyAmong(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ready)
	})
}

func TestUnmark_RemovesBothMemberships(t *testing.T) {
	withReadinessRepository(func(r *RedisReadinessRepository) {
		ctx := context.Background()

		require.NoError(t, r.Mark(ctx, "a", model.KindText))
		require.NoError(t, r.Mark(ctx, "a", model.KindImage))
		require.NoError(t, r.Unmark(ctx, "a"))

		ready, err := r.ReadyIds(ctx)
		require.NoError(t, err)
		assert.Empty(t, ready)

		ready, err = r.ReadyAmong(ctx, []string{"a"})
		require.NoError(t, err)
		assert.Empty(t, ready)
	})
}

func withReadinessRepository(action func(r *RedisReadinessRepository)) {
	db, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()
	action(NewRedisReadinessRepository(client))
}
