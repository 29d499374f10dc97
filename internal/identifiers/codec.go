package identifiers

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// placeholderParent is how the log format spells an absent parent span.
const placeholderParent = "None"

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// SpanIdentifiers is a validated id triple. TraceID and SpanID are always 16
// or 32 lowercase hex characters; ParentSpanID satisfies the same constraint
// or is empty, meaning the span is a trace root.
type SpanIdentifiers struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// HasParent reports whether the span references a parent within its trace.
func (s SpanIdentifiers) HasParent() bool {
	return s.ParentSpanID != ""
}

// Codec normalizes raw identifier strings extracted from log lines into
// valid SpanIdentifiers.
//
// Repair policy: an invalid trace or span id is replaced with a fresh random
// 32-hex id, so a bad id silently starts a new trace rather than dropping
// the span. An invalid parent id is dropped instead, because promoting it to
// a fabricated id would create a false causal edge in the trace graph.
type Codec struct {
	logger *zap.Logger
}

func NewCodec(logger *zap.Logger) *Codec {
	return &Codec{logger: logger}
}

// Normalize validates each field independently and returns a usable id set.
// It never fails, and is idempotent on already-valid input.
func (c *Codec) Normalize(traceID, spanID, parentSpanID string) SpanIdentifiers {
	if !Valid(traceID) {
		fresh := NewID()
		c.logger.Warn("invalid trace id, generating fresh id",
			zap.String("trace_id", traceID),
			zap.String("replacement", fresh))
		traceID = fresh
	} else {
		traceID = strings.ToLower(traceID)
	}

	if !Valid(spanID) {
		fresh := NewID()
		c.logger.Warn("invalid span id, generating fresh id",
			zap.String("span_id", spanID),
			zap.String("replacement", fresh))
		spanID = fresh
	} else {
		spanID = strings.ToLower(spanID)
	}

	switch {
	case parentSpanID == "" || parentSpanID == placeholderParent:
		parentSpanID = ""
	case !Valid(parentSpanID):
		c.logger.Warn("invalid parent span id, treating span as root",
			zap.String("parent_span_id", parentSpanID))
		parentSpanID = ""
	default:
		parentSpanID = strings.ToLower(parentSpanID)
	}

	return SpanIdentifiers{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentSpanID,
	}
}

// Valid reports whether id is a hex string of exactly 16 or 32 characters.
func Valid(id string) bool {
	if len(id) != 16 && len(id) != 32 {
		return false
	}
	return hexPattern.MatchString(id)
}

// NewID returns a random 32-character lowercase hex identifier. Process-local
// randomness is sufficient; no global uniqueness registry is kept.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
