package source

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/Log-Tools/trace-backfill/internal/config"
)

// KafkaSource yields log lines from a Kafka topic, one message value per
// line. It lets the backfiller drain log topics in addition to files; the
// consumer's poll timeout bounds how long a Next call can block, so
// cancellation in the driver is observed within one poll interval.
type KafkaSource struct {
	consumer    *kafka.Consumer
	pollTimeout time.Duration
}

// NewKafkaSource creates a consumer subscribed to the configured topic.
func NewKafkaSource(cfg config.KafkaSourceConfig) (*KafkaSource, error) {
	configMap := kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"group.id":           cfg.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	}
	for key, value := range cfg.ConsumerConfig {
		configMap[key] = value
	}

	consumer, err := kafka.NewConsumer(&configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	if err := consumer.Subscribe(cfg.Topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", cfg.Topic, err)
	}

	return &KafkaSource{
		consumer:    consumer,
		pollTimeout: time.Duration(cfg.PollTimeoutMs) * time.Millisecond,
	}, nil
}

// Next returns the next message value. A poll timeout yields ErrNoLine so
// the driver can poll again; a topic never reports EOF. Cancellation is
// observed within one poll interval.
func (s *KafkaSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := s.consumer.ReadMessage(s.pollTimeout)
	if err != nil {
		if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
			return "", ErrNoLine
		}
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	return string(msg.Value), nil
}

func (s *KafkaSource) Close() error {
	return s.consumer.Close()
}
