package events

import (
	"go.uber.org/zap"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger.Named("stub_publisher")}
}

func (p *StubPublisher) Produce(eventType EventType, key string, payload any) {
	p.logger.Info("Stub event published",
		zap.String("event_type", string(eventType)),
		zap.String("key", key),
		zap.Any("payload", payload),
	)
}

func (p *StubPublisher) Close() {}
