package forwarder

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/openmosaic/fusion/internal/common/fusionerrors"
	"github.com/openmosaic/fusion/internal/fusion/model"
)

// Forwarder delivers one chunk of completed records to the downstream
// indexing sink. The call is all-or-nothing for the chunk: a nil return means
// every record was accepted and the chunk's ids may be purged; any error
// means none of them were.
//
// The sink must treat ingestion as an overwrite keyed by record id, so a
// purge failure after a successful forward only costs a harmless re-send.
type Forwarder interface {
	Ingest(ctx context.Context, partition string, records []model.CompletedRecord) error
}

func checkResponse(resp *http.Response, partition string) error {
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	// Client errors other than timeouts and throttling will not succeed on
	// retry; report them as a permanent rejection so the pass can quarantine.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return &fusionerrors.ErrDownstreamRejected{Partition: partition, Status: resp.StatusCode}
	}
	return errors.Errorf("downstream sink returned status %d for partition %s", resp.StatusCode, partition)
}
