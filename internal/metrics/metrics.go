package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector exposes the pipeline counters as Prometheus metrics. It
// implements the driver's MetricsCollector interface and is worth enabling
// for long-running stdin or Kafka-backed runs.
type Collector struct {
	linesRead       prometheus.Counter
	spansEmitted    prometheus.Counter
	parseErrors     prometheus.Counter
	transportErrors prometheus.Counter
	emitLatency     prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		linesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_lines_read_total",
			Help: "Log lines read from the source",
		}),
		spansEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_spans_emitted_total",
			Help: "Spans successfully delivered to the backend",
		}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_parse_errors_total",
			Help: "Lines skipped because they did not match the log pattern",
		}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "backfill_transport_errors_total",
			Help: "Span batches that failed to reach the backend",
		}),
		emitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backfill_emit_latency_ms",
			Help:    "Latency of span delivery in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (c *Collector) IncrementLinesRead()       { c.linesRead.Inc() }
func (c *Collector) IncrementSpansEmitted()    { c.spansEmitted.Inc() }
func (c *Collector) IncrementParseErrors()     { c.parseErrors.Inc() }
func (c *Collector) IncrementTransportErrors() { c.transportErrors.Inc() }

func (c *Collector) RecordEmitLatency(durationMs int64) {
	c.emitLatency.Observe(float64(durationMs))
}

// Serve exposes the registry on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
