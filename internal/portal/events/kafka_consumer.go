package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler func(context.Context, Event) error

type Consumer struct {
	reader  KafkaReader
	logger  *zap.Logger
	handler Handler
	// retry bounds the handler attempts for one message.
	retry func() backoff.BackOff
}

func defaultRetry() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
}

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		logger: logger.Named("kafka_consumer"),
		retry:  defaultRetry,
	}
}

// Run fetches, handles and commits messages until ctx is cancelled.
// Messages that cannot be parsed are committed and skipped. A failing handler
// is retried with backoff; once the retries are spent the message is logged
// as dropped and committed, since the group reader would not redeliver it.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("Failed to parse event",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
			)
			c.commit(ctx, msg, "")
			continue
		}

		if c.handler != nil {
			if err := c.handle(ctx, event); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Dropping event after failed retries",
					zap.Error(err),
					zap.String("event_type", string(event.Type)),
					zap.String("key", event.Key),
					zap.Int64("offset", msg.Offset),
				)
			}
		}

		c.commit(ctx, msg, event.Type)
	}
}

func (c *Consumer) handle(ctx context.Context, event Event) error {
	retry := c.retry
	if retry == nil {
		retry = defaultRetry
	}
	return backoff.RetryNotify(func() error {
		return c.handler(ctx, event)
	}, backoff.WithContext(retry(), ctx), func(err error, wait time.Duration) {
		c.logger.Warn("Retrying event handler",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.Duration("wait", wait),
		)
	})
}

// Start runs the consumer in its own goroutine.
func (c *Consumer) Start(ctx context.Context) {
	go c.Run(ctx)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, eventType EventType) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.String("event_type", string(eventType)),
		)
	}
}

func (c *Consumer) RegisterHandler(fn Handler) {
	c.handler = fn
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
