package span

// Kind represents the Zipkin span kind.
type Kind string

const (
	KindServer   Kind = "SERVER"
	KindClient   Kind = "CLIENT"
	KindProducer Kind = "PRODUCER"
	KindConsumer Kind = "CONSUMER"
)

// Endpoint identifies the service that recorded a span.
type Endpoint struct {
	ServiceName string `json:"serviceName,omitempty"`
}

// Annotation is a timestamped event attached to a span. Timestamps are epoch
// microseconds, matching the Zipkin v2 wire format.
type Annotation struct {
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

// Span is a single Zipkin v2 JSON span document. Instances are built once
// per accepted log record, are immutable thereafter, and are discarded after
// emission; nothing is persisted locally.
//
// Timestamp and Duration are epoch microseconds and microseconds
// respectively, uniformly across the whole pipeline.
type Span struct {
	TraceID       string            `json:"traceId"`
	ID            string            `json:"id"`
	ParentID      string            `json:"parentId,omitempty"`
	Name          string            `json:"name"`
	Kind          Kind              `json:"kind,omitempty"`
	Timestamp     int64             `json:"timestamp"`
	Duration      int64             `json:"duration"`
	LocalEndpoint *Endpoint         `json:"localEndpoint,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	Annotations   []Annotation      `json:"annotations,omitempty"`
}
