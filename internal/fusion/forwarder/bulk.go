package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/openmosaic/fusion/internal/fusion/model"
)

// BulkForwarder encodes each chunk as newline-delimited action/document pairs
// for sinks exposing a dedicated bulk endpoint at POST {base}/_bulk. Every
// record contributes two lines: an index action naming the target partition
// and id, then the document body.
type BulkForwarder struct {
	client  *http.Client
	baseUrl string
}

func NewBulkForwarder(baseUrl string, requestTimeout time.Duration) *BulkForwarder {
	return &BulkForwarder{
		client:  &http.Client{Timeout: requestTimeout},
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
	}
}

type bulkAction struct {
	Index bulkActionTarget `json:"index"`
}

type bulkActionTarget struct {
	Index string `json:"_index"`
	Id    string `json:"_id"`
}

func (f *BulkForwarder) Ingest(ctx context.Context, partition string, records []model.CompletedRecord) error {
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, record := range records {
		if err := enc.Encode(bulkAction{Index: bulkActionTarget{Index: partition, Id: record.Id}}); err != nil {
			return errors.Wrap(err, "encoding bulk action line")
		}
		if err := enc.Encode(record); err != nil {
			return errors.Wrapf(err, "encoding bulk document for record %s", record.Id)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseUrl+"/_bulk", &body)
	if err != nil {
		return errors.Wrap(err, "building bulk request")
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "posting bulk chunk for partition %s", partition)
	}
	return checkResponse(resp, partition)
}
