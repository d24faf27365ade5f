package assembly

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmosaic/fusion/internal/fusion/model"
	"github.com/openmosaic/fusion/internal/fusion/repository"
)

func TestCollect_AssemblesCompleteRecords(t *testing.T) {
	withAggregator(func(a *BatchAggregator, partials repository.PartialRecordRepository) {
		ctx := context.Background()

		putBoth(t, partials, "a", "p1")
		putBoth(t, partials, "b", "p2")

		records, err := a.Collect(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a", records[0].Id)
		assert.Equal(t, "p1", records[0].Partition)
		assert.Equal(t, "b", records[1].Id)
	})
}

// A ready signal can be stale relative to the field map; assembly must verify
// presence against the store and skip rather than build a malformed record.
func TestCollect_SkipsStaleAndConflictedIds(t *testing.T) {
	withAggregator(func(a *BatchAggregator, partials repository.PartialRecordRepository) {
		ctx := context.Background()

		putBoth(t, partials, "complete", "p1")
		_, err := partials.PutPart(ctx, "halfDone", model.Part{Kind: model.KindText, Vector: []float64{0.1}, Partition: "p1"})
		require.NoError(t, err)
		_, err = partials.PutPart(ctx, "conflicted", model.Part{Kind: model.KindText, Vector: []float64{0.1}, Partition: "p1"})
		require.NoError(t, err)
		_, err = partials.PutPart(ctx, "conflicted", model.Part{Kind: model.KindImage, Vector: []float64{0.2}, Partition: "p2"})
		require.NoError(t, err)

		records, err := a.Collect(ctx, []string{"complete", "halfDone", "conflicted", "purgedAlready"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "complete", records[0].Id)
	})
}

func TestGroupByPartition(t *testing.T) {
	records := []model.CompletedRecord{
		{Id: "a", Partition: "p1"},
		{Id: "b", Partition: "p2"},
		{Id: "c", Partition: "p1"},
	}
	groups := GroupByPartition(records)
	require.Len(t, groups, 2)
	assert.Len(t, groups["p1"], 2)
	assert.Len(t, groups["p2"], 1)
}

func TestChunk_SplitsAtMaxSize(t *testing.T) {
	records := make([]model.CompletedRecord, 2500)
	for i := range records {
		records[i] = model.CompletedRecord{Id: fmt.Sprintf("id-%d", i), Partition: "p1"}
	}

	chunks := Chunk(records, 1000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
}

func TestChunk_EmptyInput(t *testing.T) {
	assert.Empty(t, Chunk(nil, 1000))
}

func putBoth(t *testing.T, partials repository.PartialRecordRepository, id string, partition string) {
	t.Helper()
	ctx := context.Background()
	_, err := partials.PutPart(ctx, id, model.Part{Kind: model.KindText, Vector: []float64{0.1, 0.2}, Partition: partition})
	require.NoError(t, err)
	_, err = partials.PutPart(ctx, id, model.Part{Kind: model.KindImage, Vector: []float64{0.9, 0.8}, Partition: partition})
	require.NoError(t, err)
}

func withAggregator(action func(a *BatchAggregator, partials repository.PartialRecordRepository)) {
	db, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()

	partials := repository.NewRedisPartialRecordRepository(client)
	action(NewBatchAggregator(partials), partials)
}
