// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer publishes JSON-encoded completion events;
// the consumer feeds index jobs to a MessageHandler one message at a time.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error asks the consumer to process the same message again.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// MessageReader is the part of *kafka.Reader the consumer drives.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
//
// A group reader commits by offset, so committing a later message implicitly
// commits every earlier one on the partition. The consumer therefore never
// moves past a message until it is finished with it: a failing message is
// handed to the handler again with backoff, up to the configured number of
// attempts, and only then committed.
type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	handler MessageHandler
	retry   resilience.RetryConfig
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return NewConsumerWithReader(r, topic, handler, HandlerRetry(cfg))
}

// NewConsumerWithReader creates a Consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, topic string, handler MessageHandler, retry resilience.RetryConfig) *Consumer {
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		retry:   retry,
	}
}

// HandlerRetry derives the per-message retry policy from cfg.
func HandlerRetry(cfg config.KafkaConfig) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.RetryBackoff,
		MaxDelay:     30 * time.Second,
	}
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled. The reader is closed when Start returns.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "max_attempts", c.retry.MaxAttempts)
	for {
		if ctx.Err() != nil {
			return c.stop(ctx)
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.stop(ctx)
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)

		err = resilience.Retry(ctx, "handle-message", c.retry, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				// Uncommitted, so the group redelivers it after a restart.
				return c.stop(ctx)
			}
			c.logger.Error("giving up on message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) stop(ctx context.Context) error {
	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return c.reader.Close()
}

// Ping dials each broker and reports the first failure.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			return fmt.Errorf("dialing kafka broker %s: %w", broker, err)
		}
		conn.Close()
	}
	return nil
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
