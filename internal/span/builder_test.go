package span

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Log-Tools/trace-backfill/internal/identifiers"
	"github.com/Log-Tools/trace-backfill/internal/parser"
)

func sampleRecord() *parser.LogRecord {
	return &parser.LogRecord{
		Timestamp:       "2024-01-15/10:30:00.123",
		TimestampMicros: 1705314600123000,
		Thread:          "thread-1",
		ServiceContext:  "svc-a:4bf92f3577b34da6a3ce929d0e0e4736:00f067aa0ba902b7:00f067aa0ba902b8",
		TraceID:         "4bf92f3577b34da6a3ce929d0e0e4736",
		ParentSpanID:    "00f067aa0ba902b7",
		SpanID:          "00f067aa0ba902b8",
		Level:           "INFO",
		Logger:          "com.example.Worker",
		Message:         "operation start",
	}
}

func sampleIDs() identifiers.SpanIdentifiers {
	return identifiers.SpanIdentifiers{
		TraceID:      "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:       "00f067aa0ba902b8",
		ParentSpanID: "00f067aa0ba902b7",
	}
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder("task-service")

	s := b.Build(sampleRecord(), sampleIDs())

	assert.Equal(t, "Worker.start (1)", s.Name)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", s.TraceID)
	assert.Equal(t, "00f067aa0ba902b8", s.ID)
	assert.Equal(t, "00f067aa0ba902b7", s.ParentID)
	assert.Equal(t, KindServer, s.Kind)
	assert.Equal(t, int64(1705314600123000), s.Timestamp)
	assert.Equal(t, int64(defaultDurationMicros), s.Duration)
	assert.Equal(t, "task-service", s.LocalEndpoint.ServiceName)

	assert.Equal(t, "INFO", s.Tags["level"])
	assert.Equal(t, "thread-1", s.Tags["thread"])
	assert.Equal(t, "com.example.Worker", s.Tags["logger"])
	assert.Equal(t, "svc-a:4bf92f3577b34da6a3ce929d0e0e4736:00f067aa0ba902b7:00f067aa0ba902b8", s.Tags["original_log_format"])
	assert.Equal(t, "operation start", s.Tags["message"])

	require.Len(t, s.Annotations, 1)
	assert.Equal(t, int64(1705314600123000), s.Annotations[0].Timestamp)
	assert.Equal(t, "Worker: operation start", s.Annotations[0].Value)
}

func TestBuilder_SpanName(t *testing.T) {
	b := NewBuilder("task-service")

	tests := []struct {
		name    string
		message string
		thread  string
		want    string
	}{
		{"word before operation", "starting fetch operation now", "worker-pool-3", "Worker.fetch (3)"},
		{"word after operation", "operation start", "thread-1", "Worker.start (1)"},
		{"no operation token", "something happened", "thread-1", "Worker.process (1)"},
		{"case insensitive", "Delete OPERATION completed", "thread-2", "Worker.Delete (2)"},
		{"no thread", "operation start", "", "Worker.start"},
		{"thread without hyphen", "operation start", "main", "Worker.start (main)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := sampleRecord()
			record.Message = tt.message
			record.Thread = tt.thread

			s := b.Build(record, sampleIDs())
			assert.Equal(t, tt.want, s.Name)
		})
	}
}

func TestBuilder_RootSpanOmitsParent(t *testing.T) {
	b := NewBuilder("task-service")
	ids := sampleIDs()
	ids.ParentSpanID = ""

	s := b.Build(sampleRecord(), ids)
	assert.Empty(t, s.ParentID)
}

func TestBuilder_MessageTagTruncation(t *testing.T) {
	b := NewBuilder("task-service")

	record := sampleRecord()
	record.Message = strings.Repeat("x", 300)

	s := b.Build(record, sampleIDs())

	tag := s.Tags["message"]
	assert.Len(t, tag, 256)
	assert.True(t, strings.HasSuffix(tag, "..."))
	assert.True(t, strings.HasPrefix(record.Message, strings.TrimSuffix(tag, "...")))

	// Exactly at the boundary the message is still truncated.
	record.Message = strings.Repeat("y", 256)
	s = b.Build(record, sampleIDs())
	assert.Len(t, s.Tags["message"], 256)

	// Just under the boundary it passes through untouched.
	record.Message = strings.Repeat("z", 255)
	s = b.Build(record, sampleIDs())
	assert.Equal(t, record.Message, s.Tags["message"])

	// Multibyte runes straddling the cut point never produce a torn rune:
	// the cut backs off to a rune boundary, so the tag stays valid UTF-8.
	record.Message = strings.Repeat("é", 200) // 400 bytes, boundary mid-rune
	s = b.Build(record, sampleIDs())
	tag = s.Tags["message"]
	assert.True(t, utf8.ValidString(tag))
	assert.True(t, strings.HasSuffix(tag, "..."))
	assert.LessOrEqual(t, len(tag), 256)
	assert.True(t, strings.HasPrefix(record.Message, strings.TrimSuffix(tag, "...")))
}
