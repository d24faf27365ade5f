package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
	"github.com/openmosaic/fusion/internal/fusion/coordinator"
	"github.com/openmosaic/fusion/internal/fusion/model"
	"github.com/openmosaic/fusion/internal/fusion/repository"
)

// SubmitServer is the thin intake layer: it validates incoming submissions,
// drives them through the join coordinator with bounded retries, and exposes
// the operator endpoints for held records.
//
// A 202 response means the part is durably recorded ("accepted"); delivery of
// the completed record downstream ("ingested") happens asynchronously and is
// never reported here.
type SubmitServer struct {
	coordinator *coordinator.JoinCoordinator
	holds       repository.HoldRepository
	retries     uint
}

func NewSubmitServer(c *coordinator.JoinCoordinator, holds repository.HoldRepository, retries uint) *SubmitServer {
	if retries == 0 {
		retries = 1
	}
	return &SubmitServer{coordinator: c, holds: holds, retries: retries}
}

func (s *SubmitServer) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/aggregate", s.handleAggregate).Methods(http.MethodPost)
	router.HandleFunc("/aggregate/batch", s.handleAggregateBatch).Methods(http.MethodPost)
	router.HandleFunc("/conflicts", s.handleConflicts).Methods(http.MethodGet)
	router.HandleFunc("/quarantine", s.handleQuarantine).Methods(http.MethodGet)
}

type submitResponse struct {
	Status     string `json:"status"`
	NewlyReady bool   `json:"newlyReady"`
	Conflict   bool   `json:"conflict"`
}

type batchRequest struct {
	Submissions []model.Submission `json:"submissions"`
}

type batchResponse struct {
	Status     string   `json:"status"`
	NewlyReady []string `json:"newlyReady"`
	Conflicted []string `json:"conflicted"`
}

func (s *SubmitServer) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg, ok := validate(sub); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var result coordinator.SubmitResult
	err := s.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.coordinator.Submit(ctx, sub)
		return err
	})
	if err != nil {
		log.WithError(err).WithField("recordId", sub.RecordId).Error("submission failed")
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		Status:     "accepted",
		NewlyReady: result.NewlyReady,
		Conflict:   result.Conflict,
	})
}

func (s *SubmitServer) handleAggregateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Submissions) == 0 {
		writeError(w, http.StatusBadRequest, "batch contains no submissions")
		return
	}
	for _, sub := range req.Submissions {
		if msg, ok := validate(sub); !ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	var result coordinator.BatchResult
	err := s.withRetry(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.coordinator.SubmitBatch(ctx, req.Submissions)
		return err
	})
	if err != nil {
		log.WithError(err).Error("batch submission failed")
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, batchResponse{
		Status:     "accepted",
		NewlyReady: result.NewlyReady,
		Conflicted: result.Conflicted,
	})
}

func (s *SubmitServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	s.handleHeld(w, r, s.holds.Conflicted)
}

func (s *SubmitServer) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	s.handleHeld(w, r, s.holds.Quarantined)
}

func (s *SubmitServer) handleHeld(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]string, error)) {
	ids, err := fetch(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to list held records")
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recordIds": ids})
}

// withRetry re-runs action on transient store failures. Both submit
// sub-operations are idempotent, so replaying a partially applied submission
// converges on the same end state.
func (s *SubmitServer) withRetry(ctx context.Context, action func(context.Context) error) error {
	return retry.Do(
		func() error { return action(ctx) },
		retry.Attempts(s.retries),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(fusionerrors.IsRetryable),
		retry.LastErrorOnly(true),
	)
}

func validate(sub model.Submission) (string, bool) {
	switch {
	case sub.RecordId == "":
		return "recordId is required", false
	case !sub.Kind.Valid():
		return "kind must be \"text\" or \"image\"", false
	case len(sub.Vector) == 0:
		return "vector is required", false
	case sub.Partition == "":
		return "partitionName is required", false
	}
	return "", true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": msg})
}
