// Package messaging is the team-messaging core: channel and conversation
// membership, the message lifecycle, reactions, read receipts, typing and
// presence. Every operation writes to the store first and then publishes
// the matching real-time event. The write is the durable effect; a failed
// publish is logged and never turns a successful write into an error.
package messaging

import (
	"context"
	"time"

	"github.com/lalith-99/brokerchat/internal/realtime"
	"github.com/lalith-99/brokerchat/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultTypingTTL      = 5 * time.Second
	DefaultPresenceWindow = 5 * time.Minute
	DefaultPublishTimeout = 2 * time.Second

	DefaultPageSize   = 50
	DefaultSearchSize = 20
	MaxPageSize       = 100

	maxEmojiLength = 64
)

// Options tunes the time windows. Zero fields take the defaults above.
type Options struct {
	TypingTTL      time.Duration
	PresenceWindow time.Duration
	PublishTimeout time.Duration
	Now            func() time.Time
}

type Service struct {
	store  repository.Store
	pub    realtime.Publisher
	logger *zap.Logger
	opts   Options
}

func NewService(store repository.Store, pub realtime.Publisher, logger *zap.Logger, opts Options) *Service {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	if opts.PresenceWindow <= 0 {
		opts.PresenceWindow = DefaultPresenceWindow
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, pub: pub, logger: logger, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// publish sends one event and swallows the error after logging it. The
// publish runs detached from ctx's cancellation: a client that hangs up
// right after its write still gets the event delivered to everyone else.
func (s *Service) publish(ctx context.Context, topic, event string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()

	if err := s.pub.Publish(ctx, topic, event, payload); err != nil {
		s.logger.Warn("realtime publish failed",
			zap.String("topic", topic),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
