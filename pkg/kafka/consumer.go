package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds the attempts per message before it is committed
// and skipped as a poison pill.
const maxHandlerRetries = 3

// Handler processes a single event from the bus.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// Consumer reads envelope events from a topic and dispatches them to a handler.
type Consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	handler   Handler
	closeOnce sync.Once
}

// NewConsumer creates a consumer bound to one topic and consumer group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	return &Consumer{
		reader:  r,
		logger:  logger,
		handler: handler,
	}
}

// Start consumes messages until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.reader.Config().Topic),
		slog.String("group", c.reader.Config().GroupID),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", slog.String("topic", c.reader.Config().Topic))
			return c.Close()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
				continue
			}

			event, err := UnmarshalEvent(msg.Value)
			if err != nil {
				c.logger.Error("failed to unmarshal event",
					slog.String("error", err.Error()),
					slog.String("topic", msg.Topic),
				)
				c.commit(ctx, msg)
				continue
			}

			if err := c.handleWithRetry(ctx, event, msg); err != nil {
				c.logger.Error("handler failed after all retries, skipping poison message",
					slog.String("event_type", event.EventType),
					slog.String("aggregate_id", event.AggregateID),
					slog.String("error", err.Error()),
					slog.String("topic", msg.Topic),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			c.commit(ctx, msg)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, event *Event, msg kafka.Message) error {
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		lastErr = c.handler(ctx, event)
		if lastErr == nil {
			return nil
		}

		c.logger.Warn("handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxHandlerRetries),
		)

		if attempt < maxHandlerRetries {
			backoff := time.Duration(attempt) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
	}
}

// Close closes the consumer. Safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

// TopicPrefix is the shared prefix for all platform topics.
const TopicPrefix = "ecommerce"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
