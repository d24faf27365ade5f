package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/openmosaic/fusion/internal/fusion/model"
)

// JSONForwarder posts each chunk as a single JSON body to
// POST {base}/ingest/{partition}.
type JSONForwarder struct {
	client  *http.Client
	baseUrl string
}

func NewJSONForwarder(baseUrl string, requestTimeout time.Duration) *JSONForwarder {
	return &JSONForwarder{
		client:  &http.Client{Timeout: requestTimeout},
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
	}
}

type chunkBody struct {
	Partition string                  `json:"partitionName"`
	Records   []model.CompletedRecord `json:"records"`
}

func (f *JSONForwarder) Ingest(ctx context.Context, partition string, records []model.CompletedRecord) error {
	if len(records) == 0 {
		return nil
	}

	body, err := json.Marshal(chunkBody{Partition: partition, Records: records})
	if err != nil {
		return errors.Wrap(err, "marshalling chunk body")
	}

	target := f.baseUrl + "/ingest/" + url.PathEscape(partition)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building ingest request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "posting chunk for partition %s", partition)
	}
	return checkResponse(resp, partition)
}
