package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers one event to one topic. Delivery to subscribers is
// at-least-once and best-effort ordered; callers treat it as a hint.
type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload any) error
}

// RedisPublisher publishes envelopes on the redis channel named after the topic.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic, event string, payload any) error {
	frame, err := NewEnvelope(topic, event, payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := p.client.Publish(ctx, topic, frame).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// LocalPublisher hands envelopes straight to an in-process Hub. Used when
// the service runs without redis (single instance, memory store).
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(hub *Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, topic, event string, payload any) error {
	frame, err := NewEnvelope(topic, event, payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	p.hub.Deliver(topic, frame)
	return nil
}
