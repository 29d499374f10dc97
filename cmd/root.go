package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Log-Tools/trace-backfill/internal/config"
	"github.com/Log-Tools/trace-backfill/internal/logging"
	"github.com/Log-Tools/trace-backfill/internal/metrics"
	"github.com/Log-Tools/trace-backfill/internal/service"
)

var (
	configPath       string
	backendURL       string
	serviceName      string
	debug            bool
	timeoutMs        int
	retryMax         int
	paceDelayMs      int
	progressInterval int
	kafkaBrokers     string
	kafkaTopic       string
	consumerGroup    string
	metricsAddr      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trace-backfill [log-file]",
	Short: "Backfill trace spans from free-text application logs",
	Long: `Reconstructs distributed-tracing spans from application log lines and
sends them to a Zipkin-compatible backend.

Log lines are expected in the form:

  2024-01-15/10:30:00.123[thread-1][svc:traceId:parentId:spanId] INFO com.example.Worker - message

Malformed trace and span ids are regenerated so that no span is dropped for
a bad id; malformed parent ids are dropped so no false causal edge is ever
fabricated.

Examples:
  # Backfill from a log file
  trace-backfill task_service.log --url http://localhost:9411

  # Pipe logs through stdin
  kubectl logs task-service | trace-backfill

  # Drain a Kafka log topic
  trace-backfill --brokers localhost:9092 --topic Raw.ApplicationLogs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackfill(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&backendURL, "url", "u", "", "tracing backend URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&serviceName, "service", "s", "", "local service name reported on spans")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose diagnostic output")
	rootCmd.PersistentFlags().IntVar(&timeoutMs, "timeout-ms", 0, "backend request timeout in milliseconds")
	rootCmd.PersistentFlags().IntVar(&retryMax, "retry-max", 0, "inline retries per span batch")
	rootCmd.PersistentFlags().IntVar(&paceDelayMs, "delay-ms", 0, "pacing delay between emissions in milliseconds")
	rootCmd.PersistentFlags().IntVar(&progressInterval, "progress-interval", 0, "emit a progress report every N spans")
	rootCmd.PersistentFlags().StringVar(&kafkaBrokers, "brokers", "", "Kafka brokers; selects the Kafka line source")
	rootCmd.PersistentFlags().StringVarP(&kafkaTopic, "topic", "t", "", "Kafka topic to drain")
	rootCmd.PersistentFlags().StringVarP(&consumerGroup, "consumer-group", "g", "", "Kafka consumer group ID")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg, cmd, args); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var collector service.MetricsCollector
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		promCollector := metrics.NewCollector(registry)
		metrics.Serve(ctx, cfg.Metrics.Addr, registry, logger)
		collector = promCollector
	}

	svc, err := service.NewServiceWithConfig(cfg, collector, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	summary := svc.Run(ctx)

	// An interrupted run still reports its partial summary and exits zero.
	fmt.Printf("Finished processing: lines_read=%d spans_emitted=%d errors=%d\n",
		summary.LinesRead, summary.SpansEmitted, summary.Errors)
	return nil
}

// applyOverrides folds flag values and the positional log-file argument into
// the loaded configuration, then re-validates.
func applyOverrides(cfg *config.Config, cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	if flags.Changed("url") {
		cfg.Backend.URL = backendURL
	}
	if flags.Changed("service") {
		cfg.Backend.ServiceName = serviceName
	}
	if flags.Changed("timeout-ms") {
		cfg.Backend.TimeoutMs = timeoutMs
	}
	if flags.Changed("retry-max") {
		cfg.Backend.RetryMax = retryMax
	}
	if flags.Changed("delay-ms") {
		cfg.Processing.PaceDelayMs = paceDelayMs
	}
	if flags.Changed("progress-interval") {
		cfg.Processing.ProgressInterval = progressInterval
	}
	if flags.Changed("debug") {
		cfg.Logging.Debug = debug
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}

	if flags.Changed("brokers") {
		cfg.Source.Kind = config.SourceKafka
		cfg.Source.Kafka.Brokers = kafkaBrokers
	}
	if flags.Changed("topic") {
		cfg.Source.Kafka.Topic = kafkaTopic
	}
	if flags.Changed("consumer-group") {
		cfg.Source.Kafka.ConsumerGroup = consumerGroup
	}

	if len(args) == 1 {
		if args[0] == "-" {
			cfg.Source.Kind = config.SourceStdin
		} else {
			cfg.Source.Kind = config.SourceFile
			cfg.Source.Path = args[0]
		}
	}

	return config.Validate(cfg)
}
