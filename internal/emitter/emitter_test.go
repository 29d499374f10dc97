package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Log-Tools/trace-backfill/internal/span"
)

func testSpan() *span.Span {
	return &span.Span{
		TraceID:       "4bf92f3577b34da6a3ce929d0e0e4736",
		ID:            "00f067aa0ba902b8",
		ParentID:      "00f067aa0ba902b7",
		Name:          "Worker.start (1)",
		Kind:          span.KindServer,
		Timestamp:     1705314600123000,
		Duration:      1000,
		LocalEndpoint: &span.Endpoint{ServiceName: "task-service"},
		Tags:          map[string]string{"level": "INFO"},
		Annotations:   []span.Annotation{{Timestamp: 1705314600123000, Value: "Worker: operation start"}},
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9411/api/v2/spans", NormalizeURL("http://localhost:9411"))
	assert.Equal(t, "http://localhost:9411/api/v2/spans", NormalizeURL("http://localhost:9411/"))
	assert.Equal(t, "http://localhost:9411/api/v2/spans", NormalizeURL("http://localhost:9411/api/v2/spans"))
}

func TestEmitter_Send(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "/api/v2/spans", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	e := New(Config{URL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())
	defer e.Close()

	err := e.Send(context.Background(), []*span.Span{testSpan()})
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", gotHeader.Get("X-B3-TraceId"))
	assert.Equal(t, "00f067aa0ba902b8", gotHeader.Get("X-B3-SpanId"))
	assert.Equal(t, "00f067aa0ba902b7", gotHeader.Get("X-B3-ParentSpanId"))
	assert.Equal(t, "1", gotHeader.Get("X-B3-Sampled"))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", decoded[0]["traceId"])
	assert.Equal(t, "00f067aa0ba902b8", decoded[0]["id"])
	assert.Equal(t, "Worker.start (1)", decoded[0]["name"])
	assert.Equal(t, float64(1705314600123000), decoded[0]["timestamp"])
	assert.Equal(t, "task-service", decoded[0]["localEndpoint"].(map[string]interface{})["serviceName"])
}

func TestEmitter_Send_RootSpanOmitsParentHeader(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	e := New(Config{URL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())
	defer e.Close()

	s := testSpan()
	s.ParentID = ""
	require.NoError(t, e.Send(context.Background(), []*span.Span{s}))
	assert.Empty(t, gotHeader.Get("X-B3-ParentSpanId"))
}

func TestEmitter_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ingestion unavailable", http.StatusInternalServerError)
	}))
	defer server.Close()

	e := New(Config{URL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())
	defer e.Close()

	err := e.Send(context.Background(), []*span.Span{testSpan()})
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
	assert.Contains(t, transportErr.Error(), "500")
}

func TestEmitter_Send_ConnectionRefused(t *testing.T) {
	// Grab a port with no listener behind it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	e := New(Config{URL: url, Timeout: time.Second}, zap.NewNop())
	defer e.Close()

	err := e.Send(context.Background(), []*span.Span{testSpan()})
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Zero(t, transportErr.StatusCode)
}

func TestEmitter_Send_RetriesUpToBound(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	e := New(Config{URL: server.URL, Timeout: 5 * time.Second, RetryMax: 3}, zap.NewNop())
	defer e.Close()

	require.NoError(t, e.Send(context.Background(), []*span.Span{testSpan()}))
	assert.Equal(t, 3, calls)
}

func TestEmitter_Send_EmptyBatchIsNoop(t *testing.T) {
	e := New(Config{URL: "http://localhost:9411", Timeout: time.Second}, zap.NewNop())
	defer e.Close()

	assert.NoError(t, e.Send(context.Background(), nil))
}
