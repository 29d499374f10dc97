package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Log-Tools/trace-backfill/internal/config"
	"github.com/Log-Tools/trace-backfill/internal/source"
	"github.com/Log-Tools/trace-backfill/internal/span"
)

// Summary is the final account of one pipeline run.
type Summary struct {
	LinesRead    int64
	SpansEmitted int64
	Errors       int64
}

// Service drives the log-to-span pipeline: it reads lines sequentially from
// one source and runs parser, codec, builder, and emitter in order, one line
// in flight at a time. A failure at any stage skips that single line; no
// per-line error ever aborts the run.
type Service struct {
	cfg     *config.Config
	source  LineSource
	parser  Parser
	codec   Codec
	builder Builder
	emitter Emitter
	metrics MetricsCollector
	logger  *zap.Logger
	limiter *rate.Limiter

	// Counters owned solely by the driver; lines are processed strictly
	// sequentially so plain fields suffice.
	linesRead    int64
	spansEmitted int64
	errors       int64
}

// Assembles a pipeline service with all dependencies injected for testability
func NewService(
	cfg *config.Config,
	src LineSource,
	p Parser,
	codec Codec,
	builder Builder,
	emitter Emitter,
	metrics MetricsCollector,
	logger *zap.Logger,
) *Service {
	// The pacing delay is a fixed-rate throttle between emissions, the
	// pipeline's sole admission control toward the backend.
	delay := time.Duration(cfg.Processing.PaceDelayMs) * time.Millisecond
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	return &Service{
		cfg:     cfg,
		source:  src,
		parser:  p,
		codec:   codec,
		builder: builder,
		emitter: emitter,
		metrics: metrics,
		logger:  logger,
		limiter: limiter,
	}
}

// Run processes the source until EOF or cancellation and always returns a
// Summary. Cancellation stops the loop promptly: the in-flight send either
// completes or times out, then the summary is produced.
func (s *Service) Run(ctx context.Context) Summary {
	s.logger.Info("starting backfill run",
		zap.String("backend_url", s.cfg.Backend.URL),
		zap.String("service_name", s.cfg.Backend.ServiceName),
		zap.String("source_kind", s.cfg.Source.Kind),
		zap.Int("pace_delay_ms", s.cfg.Processing.PaceDelayMs))

	for ctx.Err() == nil {
		line, err := s.source.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			s.logger.Info("input exhausted")
			return s.summary()
		case errors.Is(err, source.ErrNoLine):
			continue
		case errors.Is(err, source.ErrLineTooLong):
			// One discarded line, the rest of the input still flows.
			s.linesRead++
			s.metrics.IncrementLinesRead()
			s.errors++
			s.metrics.IncrementParseErrors()
			s.logger.Warn("skipping overlong line")
			continue
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// Cancelled while blocked in the read; the loop condition
			// reports the partial summary.
			continue
		case err != nil:
			// A read failure is terminal for the source; everything
			// processed so far is still reported.
			s.logger.Error("failed to read from source", zap.Error(err))
			s.errors++
			return s.summary()
		}

		s.linesRead++
		s.metrics.IncrementLinesRead()
		s.processLine(ctx, line)
	}

	s.logger.Info("run interrupted, reporting partial summary")
	return s.summary()
}

// processLine runs one line through parse, normalize, build, and emit.
func (s *Service) processLine(ctx context.Context, line string) {
	record, err := s.parser.Parse(line)
	if err != nil {
		s.errors++
		s.metrics.IncrementParseErrors()
		s.logger.Debug("skipping unparseable line", zap.String("line", line))
		return
	}

	ids := s.codec.Normalize(record.TraceID, record.SpanID, record.ParentSpanID)
	built := s.builder.Build(record, ids)

	if err := s.limiter.Wait(ctx); err != nil {
		// Cancelled while pacing; the loop condition ends the run.
		return
	}

	start := time.Now()
	if err := s.emitter.Send(ctx, []*span.Span{built}); err != nil {
		s.errors++
		s.metrics.IncrementTransportErrors()
		s.logger.Warn("failed to emit span",
			zap.String("trace_id", built.TraceID),
			zap.String("span_id", built.ID),
			zap.Error(err))
		return
	}
	s.metrics.RecordEmitLatency(time.Since(start).Milliseconds())

	s.spansEmitted++
	s.metrics.IncrementSpansEmitted()

	interval := int64(s.cfg.Processing.ProgressInterval)
	if interval > 0 && s.spansEmitted%interval == 0 {
		s.logger.Info("progress",
			zap.Int64("lines_read", s.linesRead),
			zap.Int64("spans_emitted", s.spansEmitted),
			zap.Int64("errors", s.errors))
	}
}

func (s *Service) summary() Summary {
	return Summary{
		LinesRead:    s.linesRead,
		SpansEmitted: s.spansEmitted,
		Errors:       s.errors,
	}
}

// Close releases the source and the emitter's connection pool. Sends are
// synchronous, so by the time Run has returned nothing is in flight and
// draining reduces to releasing the pool.
func (s *Service) Close() {
	if err := s.source.Close(); err != nil {
		s.logger.Warn("failed to close line source", zap.Error(err))
	}
	s.emitter.Close()
	s.logger.Info("pipeline shutdown complete")
}
