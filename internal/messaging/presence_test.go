package messaging_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/messaging"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/realtime"
)

func TestTypingIndicatorLifecycle(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()
	ch := f.channel(t, alice, "General", models.ChannelPublic)
	scope := models.ChannelScope(ch.ID)
	ctx := context.Background()

	if err := f.svc.SetTypingIndicator(ctx, f.org, alice, scope); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SetTypingIndicator(ctx, f.org, bob, scope); err != nil {
		t.Fatal(err)
	}
	typing, err := f.svc.GetTypingUsers(ctx, f.org, alice, scope)
	if err != nil {
		t.Fatal(err)
	}
	if len(typing) != 2 || !slices.Contains(typing, alice) || !slices.Contains(typing, bob) {
		t.Fatalf("typing = %v, want alice and bob", typing)
	}

	if err := f.svc.ClearTypingIndicator(ctx, f.org, bob, scope); err != nil {
		t.Fatal(err)
	}
	typing, _ = f.svc.GetTypingUsers(ctx, f.org, alice, scope)
	if !slices.Equal(typing, []uuid.UUID{alice}) {
		t.Errorf("typing after clear = %v, want alice", typing)
	}

	events := f.pub.byEvent(realtime.EventTyping)
	if len(events) != 3 {
		t.Fatalf("got %d typing events, want 3", len(events))
	}
	for i, want := range []realtime.TypingEvent{{UserID: alice, IsTyping: true}, {UserID: bob, IsTyping: true}, {UserID: bob, IsTyping: false}} {
		if got := events[i].Payload.(realtime.TypingEvent); got != want {
			t.Errorf("event %d = %+v, want %+v", i, got, want)
		}
		if events[i].Topic != realtime.ChannelTopic(f.org, ch.ID) {
			t.Errorf("event %d topic = %q", i, events[i].Topic)
		}
	}
}

func TestTypingIndicatorExpires(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()
	ctx := context.Background()
	dm, err := f.svc.GetOrCreateDM(ctx, f.org, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	scope := models.ConversationScope(dm.ID)

	if err := f.svc.SetTypingIndicator(ctx, f.org, alice, scope); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(4 * time.Second)
	if typing, _ := f.svc.GetTypingUsers(ctx, f.org, alice, scope); len(typing) != 1 {
		t.Fatalf("typing at 4s = %v, want alice", typing)
	}

	// A keystroke pushes the expiry forward.
	if err := f.svc.SetTypingIndicator(ctx, f.org, alice, scope); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(4 * time.Second)
	if typing, _ := f.svc.GetTypingUsers(ctx, f.org, alice, scope); len(typing) != 1 {
		t.Fatalf("typing after refresh = %v, want alice", typing)
	}

	f.clock.Advance(time.Second)
	if typing, _ := f.svc.GetTypingUsers(ctx, f.org, alice, scope); len(typing) != 0 {
		t.Errorf("typing after expiry = %v, want none", typing)
	}
	// Expiry publishes nothing on its own.
	if n := len(f.pub.byEvent(realtime.EventTyping)); n != 2 {
		t.Errorf("typing events = %d, want 2", n)
	}

	purged, err := f.svc.PurgeExpiredTyping(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if purged, _ := f.svc.PurgeExpiredTyping(ctx); purged != 0 {
		t.Errorf("second purge = %d, want 0", purged)
	}
}

func TestRunTypingSweeperStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.RunTypingSweeper(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestTypingInvalidScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.SetTypingIndicator(ctx, f.org, uuid.New(), models.Scope{}); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("set: err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.GetTypingUsers(ctx, f.org, uuid.New(), models.Scope{}); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("get: err = %v, want ErrInvalidInput", err)
	}
}

func TestPresenceStaleness(t *testing.T) {
	f := newFixture(t)
	stale, fresh, away, offline := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	if _, err := f.svc.UpdatePresence(ctx, stale, models.PresenceOnline, ""); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Minute)
	if _, err := f.svc.UpdatePresence(ctx, fresh, models.PresenceOnline, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdatePresence(ctx, away, models.PresenceAway, "showing a house"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdatePresence(ctx, offline, models.PresenceOffline, ""); err != nil {
		t.Fatal(err)
	}

	online, err := f.svc.GetOnlineUsers(ctx, []uuid.UUID{stale, fresh, away, offline, uuid.New()})
	if err != nil {
		t.Fatal(err)
	}
	var got []uuid.UUID
	for _, p := range online {
		got = append(got, p.UserID)
	}
	if slices.Contains(got, stale) {
		t.Error("user last seen 10 minutes ago reported online")
	}
	if slices.Contains(got, offline) {
		t.Error("OFFLINE user reported online")
	}
	if len(got) != 2 || !slices.Contains(got, fresh) || !slices.Contains(got, away) {
		t.Errorf("online = %v, want fresh and away", got)
	}
}

func TestTouchPresenceKeepsStatus(t *testing.T) {
	f := newFixture(t)
	agent := uuid.New()
	ctx := context.Background()

	if _, err := f.svc.UpdatePresence(ctx, agent, models.PresenceBusy, "in escrow call"); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(4 * time.Minute)
	if err := f.svc.TouchPresence(ctx, agent); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(4 * time.Minute)

	online, err := f.svc.GetOnlineUsers(ctx, []uuid.UUID{agent})
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 {
		t.Fatalf("online = %+v, want agent still within window", online)
	}
	if online[0].Status != models.PresenceBusy || online[0].StatusMessage != "in escrow call" {
		t.Errorf("presence = %+v", online[0])
	}
}

func TestUpdatePresenceValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.UpdatePresence(context.Background(), uuid.New(), "INVISIBLE", ""); !errors.Is(err, messaging.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	online, err := f.svc.GetOnlineUsers(context.Background(), nil)
	if err != nil || len(online) != 0 {
		t.Errorf("GetOnlineUsers(nil) = %v, %v", online, err)
	}
}

func TestConnectionPresenceKeepsChosenStatus(t *testing.T) {
	f := newFixture(t)
	agent, newcomer := uuid.New(), uuid.New()
	ctx := context.Background()

	if _, err := f.svc.UpdatePresence(ctx, agent, models.PresenceBusy, "at a showing"); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Minute)
	for _, u := range []uuid.UUID{agent, newcomer} {
		if err := f.svc.PresenceConnected(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	online, err := f.svc.GetOnlineUsers(ctx, []uuid.UUID{agent, newcomer})
	if err != nil {
		t.Fatal(err)
	}
	byUser := map[uuid.UUID]models.UserPresence{}
	for _, p := range online {
		byUser[p.UserID] = p
	}
	if p := byUser[agent]; p.Status != models.PresenceBusy || p.StatusMessage != "at a showing" {
		t.Errorf("agent = %+v, want BUSY kept", p)
	}
	if p := byUser[newcomer]; p.Status != models.PresenceOnline {
		t.Errorf("newcomer = %+v, want ONLINE", p)
	}

	if err := f.svc.PresenceDisconnected(ctx, agent); err != nil {
		t.Fatal(err)
	}
	if online, _ := f.svc.GetOnlineUsers(ctx, []uuid.UUID{agent}); len(online) != 0 {
		t.Errorf("after disconnect = %+v", online)
	}
}
