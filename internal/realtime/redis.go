package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier fans events out through Redis pub/sub so that every API
// instance sees updates published by any other.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier wraps an existing Redis client.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// Publish sends an event to every subscriber of the topic.
func (n *RedisNotifier) Publish(ctx context.Context, topic string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	if err := n.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a feed for one topic. The returned subscription runs a
// pump goroutine that decodes messages until Close is called.
func (n *RedisNotifier) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := n.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
	}
	go sub.pump(n.logger, topic)
	return sub, nil
}

// Close shuts the underlying Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

func (s *redisSubscription) pump(logger *zap.Logger, topic string) {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Warn("dropping malformed realtime event",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}
		select {
		case s.events <- event:
		default:
			// slow consumer, drop rather than block the pump
			logger.Warn("realtime subscriber lagging, dropping event",
				zap.String("topic", topic),
				zap.String("type", event.Type))
		}
	}
}
