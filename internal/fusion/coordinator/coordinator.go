package coordinator

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openmosaic/fusion/internal/fusion/metrics"
	"github.com/openmosaic/fusion/internal/fusion/model"
	"github.com/openmosaic/fusion/internal/fusion/repository"
)

// SubmitResult describes what a single submission changed.
type SubmitResult struct {
	NewlyReady bool
	Conflict   bool
}

// BatchResult describes what a batch submission changed. NewlyReady contains
// only ids that became ready as a direct result of the batch; already-ready
// ids are not re-reported, and conflicted ids are never ready.
type BatchResult struct {
	NewlyReady []string
	Conflicted []string
}

// JoinCoordinator is the only writer path to the partial record state. It
// applies part writes and readiness marks as one transactional unit and
// derives readiness transitions and partition conflicts from the before/after
// field maps.
type JoinCoordinator struct {
	joins repository.JoinRepository
	holds repository.HoldRepository
}

func NewJoinCoordinator(joins repository.JoinRepository, holds repository.HoldRepository) *JoinCoordinator {
	return &JoinCoordinator{joins: joins, holds: holds}
}

func (c *JoinCoordinator) Submit(ctx context.Context, sub model.Submission) (SubmitResult, error) {
	batch, err := c.SubmitBatch(ctx, []model.Submission{sub})
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		NewlyReady: len(batch.NewlyReady) > 0,
		Conflict:   len(batch.Conflicted) > 0,
	}, nil
}

func (c *JoinCoordinator) SubmitBatch(ctx context.Context, subs []model.Submission) (BatchResult, error) {
	writes := make([]repository.PartWrite, 0, len(subs))
	for _, sub := range subs {
		if err := validate(sub); err != nil {
			return BatchResult{}, err
		}
		writes = append(writes, repository.PartWrite{Id: sub.RecordId, Part: sub.Part()})
		metrics.SubmissionsTotal.WithLabelValues(string(sub.Kind)).Inc()
	}

	states, err := c.joins.SubmitParts(ctx, writes)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, state := range states {
		if state.After.Conflicted() {
			result.Conflicted = append(result.Conflicted, state.Id)
			continue
		}
		if state.After.Complete() && !state.Before.Complete() {
			result.NewlyReady = append(result.NewlyReady, state.Id)
		}
	}

	if len(result.Conflicted) > 0 {
		if err := c.holds.MarkConflicted(ctx, result.Conflicted...); err != nil {
			return BatchResult{}, err
		}
		metrics.ConflictsTotal.Add(float64(len(result.Conflicted)))
		log.WithField("recordIds", result.Conflicted).
			Warn("partition conflict detected, records held for manual resolution")
	}
	metrics.RecordsReadyTotal.Add(float64(len(result.NewlyReady)))

	return result, nil
}

func validate(sub model.Submission) error {
	if sub.RecordId == "" {
		return errors.New("submission is missing a record id")
	}
	if !sub.Kind.Valid() {
		return errors.Errorf("unknown part kind %q for record %s", sub.Kind, sub.RecordId)
	}
	if sub.Partition == "" {
		return errors.Errorf("submission for record %s is missing a partition name", sub.RecordId)
	}
	return nil
}
