package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RunRedisRelay pattern-subscribes to every topic and hands each redis
// message to the hub. It blocks until ctx is cancelled. Every server
// instance runs one, so a publish from any instance reaches clients
// connected to all of them.
func RunRedisRelay(ctx context.Context, client *redis.Client, hub *Hub, logger *zap.Logger) error {
	ps := client.PSubscribe(ctx, TopicPattern)
	defer ps.Close()

	// Receive blocks until the subscription is confirmed, so a bad
	// connection fails here instead of silently delivering nothing.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", TopicPattern, err)
	}
	logger.Info("realtime relay subscribed", zap.String("pattern", TopicPattern))

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			relay(hub, msg)
		}
	}
}

func relay(hub *Hub, msg *redis.Message) int {
	return hub.Deliver(msg.Channel, []byte(msg.Payload))
}
