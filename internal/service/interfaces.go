package service

import (
	"context"

	"github.com/Log-Tools/trace-backfill/internal/identifiers"
	"github.com/Log-Tools/trace-backfill/internal/parser"
	"github.com/Log-Tools/trace-backfill/internal/span"
)

// LineSource yields raw log lines. Next returns io.EOF when the input is
// exhausted, source.ErrNoLine when nothing is available yet (polling
// sources), source.ErrLineTooLong when one line was discarded for size, and
// ctx.Err() when cancelled mid-read; Close releases the underlying stream
// or consumer.
type LineSource interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Parser converts one raw line into a LogRecord or parser.ErrNoMatch.
type Parser interface {
	Parse(line string) (*parser.LogRecord, error)
}

// Codec normalizes raw identifier strings into a valid id set.
type Codec interface {
	Normalize(traceID, spanID, parentSpanID string) identifiers.SpanIdentifiers
}

// Builder maps a record and its validated ids into a span.
type Builder interface {
	Build(record *parser.LogRecord, ids identifiers.SpanIdentifiers) *span.Span
}

// Emitter delivers span batches to the tracing backend.
type Emitter interface {
	Send(ctx context.Context, spans []*span.Span) error
	Close()
}

// MetricsCollector records pipeline counters.
type MetricsCollector interface {
	IncrementLinesRead()
	IncrementSpansEmitted()
	IncrementParseErrors()
	IncrementTransportErrors()
	RecordEmitLatency(durationMs int64)
}
