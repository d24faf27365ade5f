package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmosaic/fusion/internal/fusion/coordinator"
	"github.com/openmosaic/fusion/internal/fusion/repository"
)

func TestHandleAggregate_AcceptsAndReportsReadiness(t *testing.T) {
	withServer(func(ts *httptest.Server) {
		first := postJSON(t, ts, "/aggregate", map[string]interface{}{
			"recordId":      "a",
			"kind":          "text",
			"vector":        []float64{0.1, 0.2},
			"partitionName": "p1",
		})
		assert.Equal(t, http.StatusAccepted, first.code)
		assert.Equal(t, "accepted", first.body["status"])
		assert.Equal(t, false, first.body["newlyReady"])

		second := postJSON(t, ts, "/aggregate", map[string]interface{}{
			"recordId":      "a",
			"kind":          "image",
			"vector":        []float64{0.9, 0.8},
			"partitionName": "p1",
		})
		assert.Equal(t, http.StatusAccepted, second.code)
		assert.Equal(t, true, second.body["newlyReady"])
		assert.Equal(t, false, second.body["conflict"])
	})
}

func TestHandleAggregate_RejectsMalformedSubmissions(t *testing.T) {
	withServer(func(ts *httptest.Server) {
		for name, payload := range map[string]map[string]interface{}{
			"missing id":   {"kind": "text", "vector": []float64{0.1}, "partitionName": "p1"},
			"bad kind":     {"recordId": "a", "kind": "audio", "vector": []float64{0.1}, "partitionName": "p1"},
			"no vector":    {"recordId": "a", "kind": "text", "partitionName": "p1"},
			"no partition": {"recordId": "a", "kind": "text", "vector": []float64{0.1}},
		} {
			resp := postJSON(t, ts, "/aggregate", payload)
			assert.Equalf(t, http.StatusBadRequest, resp.code, "expected 400 for %s", name)
		}
	})
}

func TestHandleAggregateBatch(t *testing.T) {
	withServer(func(ts *httptest.Server) {
		resp := postJSON(t, ts, "/aggregate/batch", map[string]interface{}{
			"submissions": []map[string]interface{}{
				{"recordId": "a", "kind": "text", "vector": []float64{0.1}, "partitionName": "p1"},
				{"recordId": "a", "kind": "image", "vector": []float64{0.2}, "partitionName": "p1"},
				{"recordId": "b", "kind": "text", "vector": []float64{0.3}, "partitionName": "p1"},
			},
		})
		assert.Equal(t, http.StatusAccepted, resp.code)
		assert.Equal(t, []interface{}{"a"}, resp.body["newlyReady"])
	})
}

func TestHandleConflicts_ListsHeldRecords(t *testing.T) {
	withServer(func(ts *httptest.Server) {
		postJSON(t, ts, "/aggregate", map[string]interface{}{
			"recordId": "b", "kind": "text", "vector": []float64{0.1}, "partitionName": "p1",
		})
		resp := postJSON(t, ts, "/aggregate", map[string]interface{}{
			"recordId": "b", "kind": "image", "vector": []float64{0.2}, "partitionName": "p2",
		})
		assert.Equal(t, true, resp.body["conflict"])

		httpResp, err := http.Get(ts.URL + "/conflicts")
		require.NoError(t, err)
		defer httpResp.Body.Close()
		assert.Equal(t, http.StatusOK, httpResp.StatusCode)

		var body map[string][]string
		require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&body))
		assert.Equal(t, []string{"b"}, body["recordIds"])
	})
}

type response struct {
	code int
	body map[string]interface{}
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload interface{}) response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	httpResp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer httpResp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&body))
	return response{code: httpResp.StatusCode, body: body}
}

func withServer(action func(ts *httptest.Server)) {
	db, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()

	holds := repository.NewRedisHoldRepository(client)
	c := coordinator.NewJoinCoordinator(repository.NewRedisJoinRepository(client), holds)

	router := mux.NewRouter()
	NewSubmitServer(c, holds, 2).RegisterRoutes(router)
	ts := httptest.NewServer(router)
	defer ts.Close()
	action(ts)
}
