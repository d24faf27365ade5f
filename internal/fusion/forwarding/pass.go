package forwarding

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
	"github.com/openmosaic/fusion/internal/fusion/assembly"
	"github.com/openmosaic/fusion/internal/fusion/forwarder"
	"github.com/openmosaic/fusion/internal/fusion/metrics"
	"github.com/openmosaic/fusion/internal/fusion/model"
	"github.com/openmosaic/fusion/internal/fusion/repository"
)

// Pass runs one readiness sweep: ready ids are assembled, grouped by
// partition, chunked, forwarded, and purged once the sink accepts them.
// Chunks fail independently; a failed chunk's ids stay ready and are picked
// up by the next pass.
type Pass struct {
	readiness    repository.ReadinessRepository
	holds        repository.HoldRepository
	aggregator   *assembly.BatchAggregator
	forwarder    forwarder.Forwarder
	cleanup      repository.CleanupRepository
	maxChunkSize int
	maxInFlight  int
}

func NewPass(
	readiness repository.ReadinessRepository,
	holds repository.HoldRepository,
	aggregator *assembly.BatchAggregator,
	fwd forwarder.Forwarder,
	cleanup repository.CleanupRepository,
	maxChunkSize int,
	maxInFlight int,
) *Pass {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Pass{
		readiness:    readiness,
		holds:        holds,
		aggregator:   aggregator,
		forwarder:    fwd,
		cleanup:      cleanup,
		maxChunkSize: maxChunkSize,
		maxInFlight:  maxInFlight,
	}
}

// Run executes one pass. It returns an error only when the readiness sweep
// itself could not run; per-chunk forwarding failures are logged, counted and
// left for the next pass.
func (p *Pass) Run(ctx context.Context) error {
	ready, err := p.readiness.ReadyIds(ctx)
	if err != nil {
		return errors.WithMessage(err, "computing ready ids")
	}
	if len(ready) == 0 {
		return nil
	}

	held, err := p.holds.Held(ctx)
	if err != nil {
		return errors.WithMessage(err, "fetching held ids")
	}
	candidates := make([]string, 0, len(ready))
	for _, id := range ready {
		if !held[id] {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	records, err := p.aggregator.Collect(ctx, candidates)
	if err != nil {
		return errors.WithMessage(err, "assembling completed records")
	}

	// Forward chunks concurrently but let each one succeed or fail on its
	// own; one failed chunk must not cancel or block the others.
	var group errgroup.Group
	group.SetLimit(p.maxInFlight)
	for partition, partitionRecords := range assembly.GroupByPartition(records) {
		for _, chunk := range assembly.Chunk(partitionRecords, p.maxChunkSize) {
			partition, chunk := partition, chunk
			group.Go(func() error {
				p.forwardChunk(ctx, partition, chunk)
				return nil
			})
		}
	}
	return group.Wait()
}

func (p *Pass) forwardChunk(ctx context.Context, partition string, chunk []model.CompletedRecord) {
	ids := recordIds(chunk)
	logger := log.WithField("partition", partition).WithField("records", len(chunk))

	if err := p.forwarder.Ingest(ctx, partition, chunk); err != nil {
		var rejected *fusionerrors.ErrDownstreamRejected
		if errors.As(err, &rejected) {
			logger.WithError(err).Error("downstream sink rejected chunk, quarantining its records")
			if holdErr := p.holds.Quarantine(ctx, ids...); holdErr != nil {
				logger.WithError(holdErr).Warn("failed to quarantine rejected records")
				return
			}
			metrics.QuarantinedTotal.Add(float64(len(ids)))
			return
		}
		logger.WithError(err).Warn("chunk not forwarded, its records stay ready for the next pass")
		metrics.ForwardFailuresTotal.Inc()
		return
	}
	metrics.ForwardedRecordsTotal.WithLabelValues(partition).Add(float64(len(chunk)))

	if err := p.cleanup.Purge(ctx, ids); err != nil {
		// The sink ingests by record id, so the re-forward caused by this
		// failed purge overwrites rather than duplicates.
		logger.WithError(err).Warn("failed to purge forwarded records, they will be re-sent")
		return
	}
	metrics.PurgedRecordsTotal.Add(float64(len(ids)))
	logger.Info("forwarded and purged chunk")
}

func recordIds(chunk []model.CompletedRecord) []string {
	ids := make([]string, len(chunk))
	for i, record := range chunk {
		ids[i] = record.Id
	}
	return ids
}
