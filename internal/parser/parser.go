package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoMatch is returned when a line does not fit the expected log structure.
// Callers should count and skip such lines rather than abort.
var ErrNoMatch = errors.New("line does not match log pattern")

// timestampLayout matches log timestamps of the form 2024-01-15/10:30:00.123.
const timestampLayout = "2006-01-02/15:04:05.000"

// LogRecord is the structured result of parsing one log line.
// Identifier fields hold the raw extracted strings and may be malformed;
// validation happens downstream in the identifiers package.
type LogRecord struct {
	Timestamp       string // raw timestamp field as it appeared in the line
	TimestampMicros int64  // epoch microseconds
	Thread          string
	ServiceContext  string // raw bracketed field, "name:trace:parent:span"
	TraceID         string
	ParentSpanID    string
	SpanID          string
	Level           string
	Logger          string
	Message         string
}

// Parser extracts LogRecords from application log lines of the shape:
//
//	2024-01-15/10:30:00.123[thread-1][svc:trace:parent:span] INFO com.example.Worker - message
//
// The bracketed context group must carry exactly four colon-delimited
// segments; lines with fewer are rejected outright rather than partially
// accepted.
type Parser struct {
	pattern *regexp.Regexp
	logger  *zap.Logger
	now     func() time.Time
}

// Compiles the structural pattern for the supported log shape
func NewParser(logger *zap.Logger) *Parser {
	// Groups: 1 timestamp, 2 thread, 3 context name, 4 trace, 5 parent,
	// 6 span, 7 level, 8 logger (may contain spaces), 9 message.
	pattern := regexp.MustCompile(
		`^(\d{4}-\d{2}-\d{2}/\d{2}:\d{2}:\d{2}\.\d{3})\s*` +
			`\[([^\]]+)\]` +
			`\[([^:\]]+):([^:\]]+):([^:\]]+):([^:\]]+)\]\s+` +
			`(\S+)\s+` +
			`(\S+(?:\s+\S+)*?)\s+-\s+` +
			`(.*)$`)

	return &Parser{
		pattern: pattern,
		logger:  logger,
		now:     time.Now,
	}
}

// Parse converts one raw line into a LogRecord, or ErrNoMatch if the line
// does not fit the structural pattern. Encoding artifacts (trailing newline,
// carriage return, partial UTF-8) never cause a failure beyond ErrNoMatch.
// A malformed timestamp in an otherwise well-formed line is recoverable: the
// record is kept with the current wall-clock time, trading timing fidelity
// for span availability.
func (p *Parser) Parse(line string) (*LogRecord, error) {
	line = strings.TrimRight(line, "\r\n")

	match := p.pattern.FindStringSubmatch(line)
	if match == nil {
		return nil, ErrNoMatch
	}

	record := &LogRecord{
		Timestamp:      match[1],
		Thread:         match[2],
		ServiceContext: match[3] + ":" + match[4] + ":" + match[5] + ":" + match[6],
		TraceID:        match[4],
		ParentSpanID:   match[5],
		SpanID:         match[6],
		Level:          match[7],
		Logger:         match[8],
		Message:        match[9],
	}
	record.TimestampMicros = p.parseTimestamp(match[1])

	return record, nil
}

// parseTimestamp converts the raw timestamp to epoch microseconds, falling
// back to the current time when the field cannot be parsed.
func (p *Parser) parseTimestamp(raw string) int64 {
	ts, err := time.Parse(timestampLayout, raw)
	if err != nil {
		p.logger.Warn("invalid timestamp format, substituting current time",
			zap.String("timestamp", raw),
			zap.Error(err))
		return p.now().UnixMicro()
	}
	return ts.UnixMicro()
}
