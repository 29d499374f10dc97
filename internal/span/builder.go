package span

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Log-Tools/trace-backfill/internal/identifiers"
	"github.com/Log-Tools/trace-backfill/internal/parser"
)

const (
	// defaultOperation names spans whose message carries no recognizable
	// operation token.
	defaultOperation = "process"

	// defaultDurationMicros is reported for every span: a single log line
	// carries no end-time signal, so a nominal 1ms duration is used.
	defaultDurationMicros = 1000

	// maxMessageTagBytes caps the message tag payload. Longer messages are
	// truncated to 253 bytes plus a three-byte ellipsis marker.
	maxMessageTagBytes = 256
)

// Builder maps a parsed LogRecord and its validated identifiers into a Span.
type Builder struct {
	serviceName     string
	operationBefore *regexp.Regexp
	operationAfter  *regexp.Regexp
}

func NewBuilder(serviceName string) *Builder {
	return &Builder{
		serviceName:     serviceName,
		operationBefore: regexp.MustCompile(`(?i)([a-zA-Z]+)\s+operation`),
		operationAfter:  regexp.MustCompile(`(?i)operation\s+([a-zA-Z]+)`),
	}
}

// Build constructs a Span from a record and id set. It never fails: any
// valid record and identifiers yield a span.
func (b *Builder) Build(record *parser.LogRecord, ids identifiers.SpanIdentifiers) *Span {
	shortLogger := shortLoggerName(record.Logger)
	name := b.spanName(shortLogger, record)

	tags := map[string]string{
		"thread":              record.Thread,
		"level":               record.Level,
		"logger":              record.Logger,
		"original_log_format": record.ServiceContext,
		"message":             truncateMessage(record.Message),
	}

	return &Span{
		TraceID:       ids.TraceID,
		ID:            ids.SpanID,
		ParentID:      ids.ParentSpanID,
		Name:          name,
		Kind:          KindServer,
		Timestamp:     record.TimestampMicros,
		Duration:      defaultDurationMicros,
		LocalEndpoint: &Endpoint{ServiceName: b.serviceName},
		Tags:          tags,
		Annotations: []Annotation{
			{
				Timestamp: record.TimestampMicros,
				Value:     fmt.Sprintf("%s: %s", shortLogger, record.Message),
			},
		},
	}
}

// spanName composes "<shortLogger>.<operation>", with a parenthesized thread
// suffix when the record names a thread. The operation is a best-effort
// heuristic, not a unique classifier: it looks for a word adjacent to the
// literal "operation" in the message and falls back to "process".
func (b *Builder) spanName(shortLogger string, record *parser.LogRecord) string {
	operation := defaultOperation
	if strings.Contains(strings.ToLower(record.Message), "operation") {
		if m := b.operationBefore.FindStringSubmatch(record.Message); m != nil {
			operation = m[1]
		} else if m := b.operationAfter.FindStringSubmatch(record.Message); m != nil {
			operation = m[1]
		}
	}

	name := fmt.Sprintf("%s.%s", shortLogger, operation)
	if record.Thread != "" {
		parts := strings.Split(record.Thread, "-")
		name = fmt.Sprintf("%s (%s)", name, parts[len(parts)-1])
	}
	return name
}

// shortLoggerName returns the last dot-delimited segment of a logger name.
func shortLoggerName(logger string) string {
	parts := strings.Split(logger, ".")
	return parts[len(parts)-1]
}

// truncateMessage caps the message tag at maxMessageTagBytes, marking
// truncation with a trailing ellipsis. The cut backs off to a rune boundary
// so a multibyte message never yields an invalid UTF-8 tag.
func truncateMessage(message string) string {
	if len(message) < maxMessageTagBytes {
		return message
	}
	cut := maxMessageTagBytes - 3
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "..."
}
