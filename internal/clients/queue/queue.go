package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/calcfunding/publishing-backend/internal/platform/envutil"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// Sender publishes a message onto a named topic. Implementations must treat
// the message as opaque beyond its envelope.
type Sender interface {
	SendToQueue(ctx context.Context, topic string, body interface{}, properties map[string]string) error
}

// Bus is a sender that can also deliver inbound messages to a consumer.
type Bus interface {
	Sender
	Subscribe(ctx context.Context, topics []string, onMessage func(msg *types.QueueMessage)) error
	Close() error
}

type redisBus struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisBus(log *logger.Logger) (Bus, error) {
	addr := envutil.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisBus{log: log.With("service", "RedisQueueBus"), rdb: rdb}, nil
}

func (b *redisBus) SendToQueue(ctx context.Context, topic string, body interface{}, properties map[string]string) error {
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	var rawBody []byte
	if body != nil {
		var err error
		rawBody, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	msg := types.QueueMessage{
		Topic:          topic,
		UserProperties: properties,
		Body:           rawBody,
	}
	raw, err := json.Marshal(&msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topic, raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, topics []string, onMessage func(msg *types.QueueMessage)) error {
	if len(topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}
	if onMessage == nil {
		return fmt.Errorf("onMessage callback required")
	}
	sub := b.rdb.Subscribe(ctx, topics...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var msg types.QueueMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad queue payload", "topic", m.Channel, "error", err)
					continue
				}
				if msg.Topic == "" {
					msg.Topic = m.Channel
				}
				onMessage(&msg)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
