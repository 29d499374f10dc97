package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/Log-Tools/trace-backfill/internal/span"
)

// spansPath is the Zipkin v2 ingestion endpoint.
const spansPath = "/api/v2/spans"

// TransportError classifies any failure to deliver a batch: serialization
// errors, network errors, and non-2xx responses alike. Callers decide
// whether to drop, log, or requeue; the emitter itself only retries up to
// its configured bound.
type TransportError struct {
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport failure: backend returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Config holds emitter settings.
type Config struct {
	URL      string        // backend base or full span-ingestion URL
	Timeout  time.Duration // per-request bound, transport never blocks past it
	RetryMax int           // inline retries per send; 0 leaves retry to the caller
}

// Emitter delivers span batches to a Zipkin-compatible backend over HTTP.
// It owns its connection pool for the lifetime of one pipeline run; Close
// releases it on every exit path.
type Emitter struct {
	client *retryablehttp.Client
	url    string
	logger *zap.Logger
}

// Builds the HTTP client with pooled connections and bounded retry
func New(cfg Config, logger *zap.Logger) *Emitter {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil
	// Surface the final response (e.g. a 500 after retries are exhausted)
	// instead of retryablehttp's "giving up" error, so failures can be
	// classified by status code.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Emitter{
		client: client,
		url:    NormalizeURL(cfg.URL),
		logger: logger,
	}
}

// Send encodes the batch as a Zipkin v2 JSON array and POSTs it. When the
// batch holds a single span, B3 propagation headers are set from that span's
// identifiers. Any failure is reported as a *TransportError.
func (e *Emitter) Send(ctx context.Context, spans []*span.Span) error {
	if len(spans) == 0 {
		return nil
	}

	body, err := json.Marshal(spans)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to encode spans: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if len(spans) == 1 {
		setB3Headers(req.Header, spans[0])
	}

	e.logger.Debug("sending spans to backend",
		zap.String("url", e.url),
		zap.Int("spans", len(spans)),
		zap.Int("bytes", len(body)))

	resp, err := e.client.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to post spans: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Small read keeps the response diagnosable without buffering
		// arbitrarily large error bodies.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(detail))),
		}
	}

	return nil
}

// Close releases the connection pool.
func (e *Emitter) Close() {
	e.client.HTTPClient.CloseIdleConnections()
}

// setB3Headers propagates a span's identifiers as X-B3-* headers.
func setB3Headers(h http.Header, s *span.Span) {
	h.Set("X-B3-TraceId", s.TraceID)
	h.Set("X-B3-SpanId", s.ID)
	if s.ParentID != "" {
		h.Set("X-B3-ParentSpanId", s.ParentID)
	}
	h.Set("X-B3-Sampled", "1")
}

// NormalizeURL appends the span-ingestion path when the configured URL only
// names the backend host.
func NormalizeURL(url string) string {
	url = strings.TrimRight(url, "/")
	if strings.HasSuffix(url, spansPath) {
		return url
	}
	return url + spansPath
}
