package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Log-Tools/trace-backfill/internal/config"
	"github.com/Log-Tools/trace-backfill/internal/emitter"
	"github.com/Log-Tools/trace-backfill/internal/identifiers"
	"github.com/Log-Tools/trace-backfill/internal/parser"
	"github.com/Log-Tools/trace-backfill/internal/source"
	"github.com/Log-Tools/trace-backfill/internal/span"
)

// Builds production pipeline components from configuration. A nil metrics
// collector selects the in-process atomic collector.
func NewServiceWithConfig(cfg *config.Config, metrics MetricsCollector, logger *zap.Logger) (*Service, error) {
	src, err := newLineSource(cfg)
	if err != nil {
		return nil, err
	}

	if metrics == nil {
		metrics = NewSimpleCollector()
	}

	em := emitter.New(emitter.Config{
		URL:      cfg.Backend.URL,
		Timeout:  time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond,
		RetryMax: cfg.Backend.RetryMax,
	}, logger)

	return NewService(
		cfg,
		src,
		parser.NewParser(logger),
		identifiers.NewCodec(logger),
		span.NewBuilder(cfg.Backend.ServiceName),
		em,
		metrics,
		logger,
	), nil
}

// newLineSource selects the configured line source.
func newLineSource(cfg *config.Config) (LineSource, error) {
	switch cfg.Source.Kind {
	case config.SourceFile:
		return source.NewFileSource(cfg.Source.Path)
	case config.SourceStdin:
		return source.NewStdinSource(), nil
	case config.SourceKafka:
		return source.NewKafkaSource(cfg.Source.Kafka)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
