package service

import "sync/atomic"

// SimpleCollector is the default in-process metrics collector.
type SimpleCollector struct {
	linesRead       atomic.Int64
	spansEmitted    atomic.Int64
	parseErrors     atomic.Int64
	transportErrors atomic.Int64
}

var _ MetricsCollector = (*SimpleCollector)(nil)

func NewSimpleCollector() *SimpleCollector {
	return &SimpleCollector{}
}

func (c *SimpleCollector) IncrementLinesRead()       { c.linesRead.Add(1) }
func (c *SimpleCollector) IncrementSpansEmitted()    { c.spansEmitted.Add(1) }
func (c *SimpleCollector) IncrementParseErrors()     { c.parseErrors.Add(1) }
func (c *SimpleCollector) IncrementTransportErrors() { c.transportErrors.Add(1) }

// RecordEmitLatency is a no-op here; latency is only aggregated by the
// Prometheus collector, which exposes it as a histogram.
func (c *SimpleCollector) RecordEmitLatency(int64) {}
