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

func TestPutPart_MergeIsAdditiveAcrossKinds(t *testing.T) {
	withPartialRepository(func(r *RedisPartialRecordRepository) {
		ctx := context.Background()

		fields, err := r.PutPart(ctx, "a", textPart([]float64{0.1, 0.2}, "p1"))
		require.NoError(t, err)
		assert.Len(t, fields, 1)
		assert.False(t, fields.Complete())

		fields, err = r.PutPart(ctx, "a", imagePart([]float64{0.9, 0.8}, "p1"))
		require.NoError(t, err)
		assert.Len(t, fields, 2)
		assert.True(t, fields.Complete())
		assert.Equal(t, []float64{0.1, 0.2}, fields[model.KindText].Vector)
		assert.Equal(t, []float64{0.9, 0.8}, fields[model.KindImage].Vector)
	})
}

func TestPutPart_SameKindLastWriteWins(t *testing.T) {
	withPartialRepository(func(r *RedisPartialRecordRepository) {
		ctx := context.Background()

		_, err := r.PutPart(ctx, "a", textPart([]float64{0.1}, "p1"))
		require.NoError(t, err)
		fields, err := r.PutPart(ctx, "a", textPart([]float64{0.5}, "p1"))
		require.NoError(t, err)

		assert.Len(t, fields, 1)
		assert.Equal(t, []float64{0.5}, fields[model.KindText].Vector)
	})
}

func TestGet_MissingIdIsEmpty(t *testing.T) {
	withPartialRepository(func(r *RedisPartialRecordRepository) {
		fields, err := r.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}

func TestGetMany(t *testing.T) {
	withPartialRepository(func(r *RedisPartialRecordRepository) {
		ctx := context.Background()

		_, err := r.PutPart(ctx, "a", textPart([]float64{0.1}, "p1"))
		require.NoError(t, err)
		_, err = r.PutPart(ctx, "a", imagePart([]float64{0.2}, "p1"))
		require.NoError(t, err)
		_, err = r.PutPart(ctx, "b", textPart([]float64{0.3}, "p2"))
		require.NoError(t, err)

		partials, err := r.GetMany(ctx, []string{"a", "b", "missing"})
		require.NoError(t, err)
		assert.Len(t, partials, 3)
		assert.True(t, partials["a"].Complete())
		assert.False(t, partials["b"].Complete())
		assert.Empty(t, partials["missing"])
	})
}

func TestDeleteMany(t *testing.T) {
	withPartialRepository(func(r *RedisPartialRecordRepository) {
		ctx := context.Background()

		_, err := r.PutPart(ctx, "a", textPart([]float64{0.1}, "p1"))
		require.NoError(t, err)
		_, err = r.PutPart(ctx, "b", textPart([]float64{0.2}, "p1"))
		require.NoError(t, err)

		require.NoError(t, r.DeleteMany(ctx, []string{"a", "b"}))

		fields, err := r.Get(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, fields)
		fields, err = r.Get(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}

func textPart(vector []float64, partition string) model.Part {
	return model.Part{Kind: model.KindText, Vector: vector, Partition: partition}
}

func imagePart(vector []float64, partition string) model.Part {
	return model.Part{Kind: model.KindImage, Vector: vector, Partition: partition}
}

func withPartialRepository(action func(r *RedisPartialRecordRepository)) {
	db, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()
	action(NewRedisPartialRecordRepository(client))
}
