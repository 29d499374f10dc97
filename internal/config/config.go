package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Source kinds accepted by the pipeline.
const (
	SourceStdin = "stdin"
	SourceFile  = "file"
	SourceKafka = "kafka"
)

// Config represents the complete configuration for the backfill pipeline.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Source     SourceConfig     `yaml:"source"`
	Processing ProcessingConfig `yaml:"processing"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// BackendConfig defines the tracing backend connection settings.
type BackendConfig struct {
	URL         string `yaml:"url" envconfig:"ZIPKIN_URL"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TimeoutMs   int    `yaml:"timeout_ms" envconfig:"BACKEND_TIMEOUT_MS"`
	RetryMax    int    `yaml:"retry_max" envconfig:"BACKEND_RETRY_MAX"`
}

// SourceConfig selects where log lines are read from.
type SourceConfig struct {
	Kind  string            `yaml:"kind" envconfig:"SOURCE_KIND"`
	Path  string            `yaml:"path" envconfig:"SOURCE_PATH"`
	Kafka KafkaSourceConfig `yaml:"kafka"`
}

// KafkaSourceConfig defines the Kafka consumer settings for topic-backed
// line sources.
type KafkaSourceConfig struct {
	Brokers        string                 `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic          string                 `yaml:"topic" envconfig:"KAFKA_TOPIC"`
	ConsumerGroup  string                 `yaml:"consumer_group" envconfig:"KAFKA_CONSUMER_GROUP"`
	ConsumerConfig map[string]interface{} `yaml:"consumer_config" ignored:"true"`
	PollTimeoutMs  int                    `yaml:"poll_timeout_ms"`
}

// ProcessingConfig defines the driver's pacing and reporting settings.
type ProcessingConfig struct {
	// PaceDelayMs is the fixed-rate throttle between emissions; this is the
	// pipeline's sole admission control, not adaptive backpressure.
	PaceDelayMs      int `yaml:"pace_delay_ms" envconfig:"PACE_DELAY_MS"`
	ProgressInterval int `yaml:"progress_interval" envconfig:"PROGRESS_INTERVAL"`
}

// LoggingConfig defines diagnostic output settings.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
	Debug bool   `yaml:"debug" envconfig:"DEBUG"`
}

// MetricsConfig defines the optional Prometheus endpoint, useful for
// long-running stdin or Kafka-backed runs.
type MetricsConfig struct {
	Addr string `yaml:"addr" envconfig:"METRICS_ADDR"`
}

// Load reads the optional YAML file, applies environment overrides, then
// validates and fills defaults. An empty path skips the file and configures
// purely from environment and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot start a run. These are the
// only fatal errors in the pipeline; everything later is per-line.
func Validate(cfg *Config) error {
	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	parsed, err := url.Parse(cfg.Backend.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.url %q is not a valid URL", cfg.Backend.URL)
	}

	switch cfg.Source.Kind {
	case SourceStdin:
	case SourceFile:
		if cfg.Source.Path == "" {
			return fmt.Errorf("source.path is required for file sources")
		}
	case SourceKafka:
		if cfg.Source.Kafka.Brokers == "" {
			return fmt.Errorf("source.kafka.brokers is required for kafka sources")
		}
		if cfg.Source.Kafka.Topic == "" {
			return fmt.Errorf("source.kafka.topic is required for kafka sources")
		}
	default:
		return fmt.Errorf("invalid source.kind %q. Valid kinds: stdin, file, kafka", cfg.Source.Kind)
	}

	if cfg.Processing.PaceDelayMs < 0 {
		return fmt.Errorf("processing.pace_delay_ms must not be negative")
	}
	if cfg.Backend.RetryMax < 0 {
		return fmt.Errorf("backend.retry_max must not be negative")
	}

	validLogLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level %q. Valid levels: debug, info, warn, error", cfg.Logging.Level)
	}

	return nil
}

// setDefaults applies default values for optional configuration fields.
func setDefaults(cfg *Config) {
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://localhost:9411/api/v2/spans"
	}
	if cfg.Backend.ServiceName == "" {
		cfg.Backend.ServiceName = "task-service"
	}
	if cfg.Backend.TimeoutMs == 0 {
		cfg.Backend.TimeoutMs = 5000
	}

	if cfg.Source.Kind == "" {
		if cfg.Source.Path != "" {
			cfg.Source.Kind = SourceFile
		} else {
			cfg.Source.Kind = SourceStdin
		}
	}
	if cfg.Source.Kafka.ConsumerGroup == "" {
		cfg.Source.Kafka.ConsumerGroup = "trace-backfill"
	}
	if cfg.Source.Kafka.PollTimeoutMs == 0 {
		cfg.Source.Kafka.PollTimeoutMs = 1000
	}

	if cfg.Processing.PaceDelayMs == 0 {
		cfg.Processing.PaceDelayMs = 100
	}
	if cfg.Processing.ProgressInterval == 0 {
		cfg.Processing.ProgressInterval = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
