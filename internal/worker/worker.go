package worker

import (
	"context"
	"fmt"

	"github.com/calcfunding/publishing-backend/internal/clients/queue"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/resilience"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// Topics the worker consumes. Each topic maps to exactly one handler.
const (
	TopicApplyTemplateCalculations       = "edit-specification-template-version"
	TopicUpdateBuildProjectRelationships = "update-buildproject-relationships"
	TopicUpdateAllocations               = "update-allocations"
	TopicRefreshFunding                  = "refresh-funding"
	TopicPublishProviderFunding          = "publish-provider-funding"
)

// HandlerFunc processes one queue message to completion or error. Errors
// propagate to the retry policy; exhausting retries dead-letters the message.
type HandlerFunc func(ctx context.Context, message *types.QueueMessage) error

// DeadLetterFunc is the compensating action run when a message exhausts its
// retries. It must never return an error.
type DeadLetterFunc func(ctx context.Context, message *types.QueueMessage)

// Worker subscribes to the queue bus and dispatches each message to the
// handler registered for its topic.
type Worker struct {
	log        *logger.Logger
	bus        queue.Bus
	policy     *resilience.Policy
	handlers   map[string]HandlerFunc
	deadLetter DeadLetterFunc
}

func NewWorker(baseLog *logger.Logger, bus queue.Bus, policy *resilience.Policy, deadLetter DeadLetterFunc) *Worker {
	return &Worker{
		log:        baseLog.With("component", "QueueWorker"),
		bus:        bus,
		policy:     policy,
		handlers:   map[string]HandlerFunc{},
		deadLetter: deadLetter,
	}
}

func (w *Worker) Register(topic string, handler HandlerFunc) {
	w.handlers[topic] = handler
}

func (w *Worker) Start(ctx context.Context) error {
	topics := make([]string, 0, len(w.handlers))
	for topic := range w.handlers {
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	w.log.Info("Starting queue worker", "topics", topics)
	return w.bus.Subscribe(ctx, topics, func(msg *types.QueueMessage) {
		w.dispatch(ctx, msg)
	})
}

func (w *Worker) dispatch(ctx context.Context, message *types.QueueMessage) {
	if message == nil {
		return
	}
	handler, ok := w.handlers[message.Topic]
	if !ok {
		w.log.Warn("No handler registered for topic", "topic", message.Topic)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Message handler panic", "topic", message.Topic, "panic", r)
			w.deadLetter(ctx, message)
		}
	}()

	err := w.policy.Execute(ctx, message.Topic, func() error {
		return handler(ctx, message)
	})
	if err == nil {
		return
	}
	w.log.Error("Message processing exhausted retries, dead lettering",
		"topic", message.Topic,
		"job_id", message.UserProperty(types.PropertyJobID),
		"error", err)
	w.deadLetter(ctx, message)
}
