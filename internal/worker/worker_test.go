package worker

import (
	"context"
	"testing"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/resilience"
	"github.com/calcfunding/publishing-backend/internal/types"
)

type fakeBus struct {
	subscribedTopics []string
	onMessage        func(msg *types.QueueMessage)
}

func (f *fakeBus) SendToQueue(ctx context.Context, topic string, body interface{}, properties map[string]string) error {
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, topics []string, onMessage func(msg *types.QueueMessage)) error {
	f.subscribedTopics = topics
	f.onMessage = onMessage
	return nil
}

func (f *fakeBus) Close() error { return nil }

func newTestWorker(deadLetter DeadLetterFunc) (*Worker, *fakeBus) {
	log := logger.NewNop()
	bus := &fakeBus{}
	return NewWorker(log, bus, resilience.NewPolicy(log, 2), deadLetter), bus
}

func message(topic string) *types.QueueMessage {
	return &types.QueueMessage{
		Topic:          topic,
		UserProperties: map[string]string{types.PropertyJobID: "job1"},
	}
}

func TestStartRequiresRegisteredHandlers(t *testing.T) {
	worker, _ := newTestWorker(func(ctx context.Context, msg *types.QueueMessage) {})
	if err := worker.Start(context.Background()); err == nil {
		t.Fatalf("start with no handlers must fail")
	}
}

func TestDispatchRoutesByTopic(t *testing.T) {
	worker, bus := newTestWorker(func(ctx context.Context, msg *types.QueueMessage) {})

	var handled []string
	worker.Register(TopicRefreshFunding, func(ctx context.Context, msg *types.QueueMessage) error {
		handled = append(handled, msg.Topic)
		return nil
	})
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bus.subscribedTopics) != 1 || bus.subscribedTopics[0] != TopicRefreshFunding {
		t.Fatalf("subscribed topics = %v", bus.subscribedTopics)
	}

	bus.onMessage(message(TopicRefreshFunding))
	bus.onMessage(message("unregistered-topic"))
	bus.onMessage(nil)

	if len(handled) != 1 || handled[0] != TopicRefreshFunding {
		t.Fatalf("handled = %v", handled)
	}
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	deadLettered := 0
	worker, bus := newTestWorker(func(ctx context.Context, msg *types.QueueMessage) { deadLettered++ })

	attempts := 0
	worker.Register(TopicUpdateAllocations, func(ctx context.Context, msg *types.QueueMessage) error {
		attempts++
		if attempts < 2 {
			return context.DeadlineExceeded
		}
		return nil
	})
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bus.onMessage(message(TopicUpdateAllocations))
	if attempts != 2 {
		t.Fatalf("transient failure must be retried, attempts = %d", attempts)
	}
	if deadLettered != 0 {
		t.Fatalf("recovered message must not dead letter")
	}
}

func TestDispatchDeadLettersNonRetriableErrors(t *testing.T) {
	var deadLettered []*types.QueueMessage
	worker, bus := newTestWorker(func(ctx context.Context, msg *types.QueueMessage) {
		deadLettered = append(deadLettered, msg)
	})

	attempts := 0
	worker.Register(TopicApplyTemplateCalculations, func(ctx context.Context, msg *types.QueueMessage) error {
		attempts++
		return types.NewNonRetriableError("bad message")
	})
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bus.onMessage(message(TopicApplyTemplateCalculations))
	if attempts != 1 {
		t.Fatalf("non-retriable failure must not retry, attempts = %d", attempts)
	}
	if len(deadLettered) != 1 || deadLettered[0].Topic != TopicApplyTemplateCalculations {
		t.Fatalf("non-retriable failure must dead letter the message")
	}
}

func TestDispatchDeadLettersOnPanic(t *testing.T) {
	deadLettered := 0
	worker, bus := newTestWorker(func(ctx context.Context, msg *types.QueueMessage) { deadLettered++ })

	worker.Register(TopicPublishProviderFunding, func(ctx context.Context, msg *types.QueueMessage) error {
		panic("handler blew up")
	})
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bus.onMessage(message(TopicPublishProviderFunding))
	if deadLettered != 1 {
		t.Fatalf("panicking handler must dead letter the message, got %d", deadLettered)
	}
}
