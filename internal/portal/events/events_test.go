package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

type posting struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
}

func TestProducer_Produce(t *testing.T) {
	t.Run("successful produce", func(t *testing.T) {
		producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t), 10)

		producer.Produce(JobPostingSubmitted, "job-1", posting{ID: "job-1"})

		require.Equal(t, 1, len(producer.events))
		event := <-producer.events
		assert.Equal(t, JobPostingSubmitted, event.Type)
		assert.Equal(t, "job-1", event.Key)
		assert.JSONEq(t, `{"id":"job-1","company_name":""}`, string(event.Payload))
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core), 1)

		producer.Produce(ClientCreated, "c-1", posting{})
		producer.Produce(ClientCreated, "c-2", posting{})

		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("key", "c-2")).Len())
	})

	t.Run("unserializable payload", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core), 1)

		producer.Produce(ClientCreated, "c-1", make(chan int))

		assert.Equal(t, 0, len(producer.events))
		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := newProducer(mockWriter, zaptest.NewLogger(t), 1)
	event := Event{
		Type:       CodeRequestApproved,
		Key:        "req-1",
		Payload:    json.RawMessage(`{"id":"req-1"}`),
		OccurredAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}

	t.Run("successful send", func(t *testing.T) {
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil).Once()

		producer.sendEvent(context.Background(), event)

		value, _ := json.Marshal(event)
		mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, []kafka.Message{
			{
				Key:     []byte("req-1"),
				Value:   value,
				Headers: []kafka.Header{{Key: "event_type", Value: []byte(CodeRequestApproved)}},
			},
		})
	})

	t.Run("serialization error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer.logger = zap.New(core)

		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("key", "req-1")).Len())
	})

	t.Run("write error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer.logger = zap.New(core)
		mockWriter.ExpectedCalls = nil
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestProducer_CloseFlushesQueue(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)
	mockWriter.On("Close").Return(nil)

	producer := newProducer(mockWriter, zaptest.NewLogger(t), 10)
	producer.Produce(ClientCreated, "c-1", posting{})
	producer.Produce(ClientCreated, "c-2", posting{})
	go producer.eventLoop()

	producer.Close()

	mockWriter.AssertNumberOfCalls(t, "WriteMessages", 2)
	mockWriter.AssertCalled(t, "Close")
}

// fakeReader serves a fixed list of messages, then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestConsumer_Run(t *testing.T) {
	good, _ := json.Marshal(Event{Type: JobPostingSubmitted, Key: "job-1"})
	flaky, _ := json.Marshal(Event{Type: CodeRequestSubmitted, Key: "r-1"})
	failing, _ := json.Marshal(Event{Type: ClientCreated, Key: "c-1"})
	reader := &fakeReader{messages: []kafka.Message{
		{Value: good},
		{Value: []byte("not json")},
		{Value: flaky},
		{Value: failing},
	}}

	var handled []EventType
	flakyCalls := 0
	consumer := &Consumer{
		reader: reader,
		logger: zaptest.NewLogger(t),
		retry: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		},
	}
	consumer.RegisterHandler(func(_ context.Context, event Event) error {
		handled = append(handled, event.Type)
		switch event.Type {
		case CodeRequestSubmitted:
			flakyCalls++
			if flakyCalls == 1 {
				return errors.New("temporary failure")
			}
		case ClientCreated:
			return errors.New("handler failed")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return reader.committedCount() == 4 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []EventType{
		JobPostingSubmitted,
		CodeRequestSubmitted, CodeRequestSubmitted,
		ClientCreated, ClientCreated, ClientCreated,
	}, handled, "failures are retried up to the limit")
	assert.Equal(t, 4, reader.committedCount(), "every message is committed once handled or dropped")
}

func TestNotifyHandler(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	handler := NotifyHandler(zap.New(core))

	payload, _ := json.Marshal(map[string]string{"company_name": "Acme Corp", "email": "jane@acme.test"})
	require.NoError(t, handler(context.Background(), Event{Type: CodeRequestSubmitted, Key: "r-1", Payload: payload}))
	require.NoError(t, handler(context.Background(), Event{Type: ClientDeactivated, Key: "c-1"}))

	assert.Equal(t, 1, recorded.FilterMessage("New access code request").Len())
	assert.Equal(t, 1, recorded.FilterField(zap.Any("company_name", "Acme Corp")).Len())

	err := handler(context.Background(), Event{Type: JobPostingSubmitted, Payload: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}

func TestStubPublisher(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	stub := NewStubPublisher(zap.New(core))

	stub.Produce(ClientCreated, "c-1", map[string]string{"id": "c-1"})
	stub.Close()

	entries := recorded.FilterMessage("Stub event published").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "client_created", entries[0].ContextMap()["event_type"])
}
