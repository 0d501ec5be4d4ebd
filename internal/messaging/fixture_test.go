package messaging_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/realtime"
	"github.com/lalith-99/brokerchat/internal/repository"
	"github.com/lalith-99/brokerchat/internal/repository/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type published struct {
	Topic   string
	Event   string
	Payload any
	CtxErr  error
}

// recorder is a realtime.Publisher that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(ctx context.Context, topic, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Topic: topic, Event: event, Payload: payload, CtxErr: ctx.Err()})
	return nil
}

func (r *recorder) byEvent(event string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, string, any) error {
	return errors.New("redis: connection refused")
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc   *messaging.Service
	store repository.Store
	pub   *recorder
	clock *fakeClock
	org   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, zaptest.NewLogger(t))
}

// newFixtureWith builds a fixture around pub, or a recorder when pub is nil.
func newFixtureWith(t *testing.T, pub realtime.Publisher, logger *zap.Logger) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.Now))
	rec := &recorder{}
	if pub == nil {
		pub = rec
	}
	svc := messaging.NewService(store, pub, logger, messaging.Options{Now: clock.Now})
	return &fixture{svc: svc, store: store, pub: rec, clock: clock, org: uuid.New()}
}

func (f *fixture) channel(t *testing.T, creator uuid.UUID, name string, typ models.ChannelType) *models.Channel {
	t.Helper()
	ch, err := f.svc.CreateChannel(context.Background(), messaging.CreateChannelInput{
		OrganizationID: f.org,
		Name:           name,
		Type:           typ,
		CreatedByID:    creator,
	})
	if err != nil {
		t.Fatalf("CreateChannel(%q): %v", name, err)
	}
	return ch
}

// send posts a text message one second after the previous one so the
// messages have distinct, increasing timestamps.
func (f *fixture) send(t *testing.T, sender uuid.UUID, scope models.Scope, content string) *models.Message {
	t.Helper()
	return f.sendInput(t, messaging.SendMessageInput{SenderID: sender, Scope: scope, Content: content})
}

func (f *fixture) reply(t *testing.T, sender uuid.UUID, parent *models.Message, content string) *models.Message {
	t.Helper()
	return f.sendInput(t, messaging.SendMessageInput{
		SenderID: sender,
		Scope:    parent.Scope,
		Content:  content,
		ParentID: &parent.ID,
	})
}

func (f *fixture) sendInput(t *testing.T, in messaging.SendMessageInput) *models.Message {
	t.Helper()
	f.clock.Advance(time.Second)
	in.OrganizationID = f.org
	msg, err := f.svc.SendMessage(context.Background(), in)
	if err != nil {
		t.Fatalf("SendMessage(%q): %v", in.Content, err)
	}
	return msg
}

func ids(msgs []models.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
