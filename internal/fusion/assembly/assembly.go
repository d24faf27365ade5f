package assembly

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/openmosaic/fusion/internal/fusion/model"
	"github.com/openmosaic/fusion/internal/fusion/repository"
)

// BatchAggregator turns ready ids into partition-homogeneous chunks of
// completed records.
type BatchAggregator struct {
	partials repository.PartialRecordRepository
}

func NewBatchAggregator(partials repository.PartialRecordRepository) *BatchAggregator {
	return &BatchAggregator{partials: partials}
}

// Collect fetches the field maps for ids and assembles completed records.
// Readiness signals can be stale, so presence of both parts and partition
// equality are re-checked against the fetched fields; ids failing the check
// are skipped this pass and remain candidates for a later one.
func (a *BatchAggregator) Collect(ctx context.Context, ids []string) ([]model.CompletedRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	partials, err := a.partials.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]model.CompletedRecord, 0, len(ids))
	for _, id := range ids {
		record, ok := partials[id].Assemble(id)
		if !ok {
			log.WithField("recordId", id).Debug("ready signal was stale, skipping this pass")
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// GroupByPartition splits records by the downstream partition they belong to.
func GroupByPartition(records []model.CompletedRecord) map[string][]model.CompletedRecord {
	groups := make(map[string][]model.CompletedRecord)
	for _, record := range records {
		groups[record.Partition] = append(groups[record.Partition], record)
	}
	return groups
}

// Chunk splits one partition's records into slices of at most maxChunkSize.
// Larger chunks amortize per-request overhead downstream; the cap keeps a
// single request from growing unbounded.
func Chunk(records []model.CompletedRecord, maxChunkSize int) [][]model.CompletedRecord {
	if len(records) == 0 {
		return nil
	}
	if maxChunkSize <= 0 {
		return [][]model.CompletedRecord{records}
	}
	chunks := make([][]model.CompletedRecord, 0, (len(records)+maxChunkSize-1)/maxChunkSize)
	for start := 0; start < len(records); start += maxChunkSize {
		end := start + maxChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
