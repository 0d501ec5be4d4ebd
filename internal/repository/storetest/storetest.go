// Package storetest is a contract suite every repository.Store
// implementation must pass. Each test uses fresh organization and user
// ids, so a shared database does not need truncating between runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

// Run executes the suite. newStore is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"Channels", testChannels},
		{"ChannelVisibility", testChannelVisibility},
		{"Members", testMembers},
		{"DirectConversations", testDirectConversations},
		{"GroupConversations", testGroupConversations},
		{"MessagePaging", testMessagePaging},
		{"Threads", testThreads},
		{"EditAndDelete", testEditAndDelete},
		{"Search", testSearch},
		{"Reactions", testReactions},
		{"Reads", testReads},
		{"Typing", testTyping},
		{"Presence", testPresence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func channel(t *testing.T, s repository.Store, orgID, owner uuid.UUID, slug string, typ models.ChannelType) *models.Channel {
	t.Helper()
	ch, err := s.Channels.CreateWithOwner(context.Background(), &models.Channel{
		OrganizationID: orgID,
		Name:           slug,
		Slug:           slug,
		Type:           typ,
		CreatedByID:    owner,
	})
	if err != nil {
		t.Fatalf("create channel %s: %v", slug, err)
	}
	return ch
}

func send(t *testing.T, s repository.Store, orgID, sender uuid.UUID, scope models.Scope, content string, parent *int64) *models.Message {
	t.Helper()
	m, err := s.Messages.Create(context.Background(), repository.NewMessage{
		OrganizationID: orgID,
		SenderID:       sender,
		Scope:          scope,
		Content:        content,
		ContentType:    models.ContentText,
		ParentID:       parent,
	})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func testChannels(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, owner := uuid.New(), uuid.New()

	ch := channel(t, s, org, owner, "listings", models.ChannelPublic)
	if ch.ID == uuid.Nil || ch.OrganizationID != org || ch.CreatedAt.IsZero() {
		t.Fatalf("channel = %+v", ch)
	}

	m, err := s.Members.GetMember(ctx, ch.ID, owner)
	if err != nil || m.Role != models.RoleOwner {
		t.Errorf("owner membership = %+v, %v", m, err)
	}

	_, err = s.Channels.CreateWithOwner(ctx, &models.Channel{OrganizationID: org, Name: "Listings", Slug: "listings", Type: models.ChannelPublic, CreatedByID: owner})
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("duplicate slug: err = %v, want ErrConflict", err)
	}
	// Slugs are unique per organization only.
	channel(t, s, uuid.New(), owner, "listings", models.ChannelPublic)

	if _, err := s.Channels.GetByID(ctx, uuid.New(), ch.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("cross-org get: err = %v, want ErrNotFound", err)
	}

	ch.Name = "Active Listings"
	ch.IsArchived = true
	updated, err := s.Channels.Update(ctx, ch)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Active Listings" || updated.Slug != "listings" || !updated.IsArchived {
		t.Errorf("updated = %+v", updated)
	}
}

func testChannelVisibility(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, owner, viewer := uuid.New(), uuid.New(), uuid.New()

	public := channel(t, s, org, owner, "general", models.ChannelPublic)
	channel(t, s, org, owner, "offers", models.ChannelPrivate)
	archived := channel(t, s, org, owner, "old", models.ChannelPublic)
	archived.IsArchived = true
	if _, err := s.Channels.Update(ctx, archived); err != nil {
		t.Fatal(err)
	}

	list, err := s.Channels.ListForUser(ctx, org, viewer)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != public.ID || list[0].MyRole != nil {
		t.Fatalf("viewer sees %+v", list)
	}

	list, err = s.Channels.ListForUser(ctx, org, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("owner sees %d channels, want 2", len(list))
	}
	for _, cs := range list {
		if cs.MyRole == nil || *cs.MyRole != models.RoleOwner {
			t.Errorf("%s: role = %v", cs.Slug, cs.MyRole)
		}
	}
}

func testMembers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, owner, agent := uuid.New(), uuid.New(), uuid.New()
	ch := channel(t, s, org, owner, "team", models.ChannelPrivate)

	if err := s.Members.SetMutedUntil(ctx, ch.ID, agent, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("mute non-member: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Members.UpsertMember(ctx, ch.ID, agent, models.RoleMember); err != nil {
		t.Fatal(err)
	}
	m, err := s.Members.UpsertMember(ctx, ch.ID, agent, models.RoleAdmin)
	if err != nil || m.Role != models.RoleAdmin {
		t.Fatalf("role change = %+v, %v", m, err)
	}

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	if err := s.Members.SetMutedUntil(ctx, ch.ID, agent, &until); err != nil {
		t.Fatal(err)
	}
	m, err = s.Members.GetMember(ctx, ch.ID, agent)
	if err != nil || m.MutedUntil == nil || !m.MutedUntil.Equal(until) {
		t.Errorf("muted member = %+v, %v", m, err)
	}

	members, err := s.Members.ListMembers(ctx, ch.ID)
	if err != nil || len(members) != 2 {
		t.Errorf("members = %+v, %v", members, err)
	}

	if err := s.Members.RemoveMember(ctx, ch.ID, agent); err != nil {
		t.Fatal(err)
	}
	if err := s.Members.RemoveMember(ctx, ch.ID, agent); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if _, err := s.Members.GetMember(ctx, ch.ID, agent); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("removed member: err = %v, want ErrNotFound", err)
	}
}

func testDirectConversations(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, a, b := uuid.New(), uuid.New(), uuid.New()

	first, created, err := s.Conversations.GetOrCreateDirect(ctx, org, a, b)
	if err != nil || !created || first.IsGroup {
		t.Fatalf("first = %+v, created = %v, err = %v", first, created, err)
	}
	again, created, err := s.Conversations.GetOrCreateDirect(ctx, org, b, a)
	if err != nil || created || again.ID != first.ID {
		t.Fatalf("again = %+v, created = %v, err = %v", again, created, err)
	}
	for _, u := range []uuid.UUID{a, b} {
		if ok, err := s.Conversations.IsParticipant(ctx, first.ID, u); err != nil || !ok {
			t.Errorf("IsParticipant(%s) = %v, %v", u, ok, err)
		}
	}

	if err := s.Conversations.Leave(ctx, first.ID, a); err != nil {
		t.Fatal(err)
	}
	if err := s.Conversations.Leave(ctx, first.ID, a); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("second leave: err = %v, want ErrNotFound", err)
	}
	fresh, created, err := s.Conversations.GetOrCreateDirect(ctx, org, a, b)
	if err != nil || !created || fresh.ID == first.ID {
		t.Errorf("after leave = %+v, created = %v, err = %v", fresh, created, err)
	}
}

func testGroupConversations(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, a, b, c := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	entity := models.EntityDeal
	entityID := uuid.New()

	conv, err := s.Conversations.CreateGroup(ctx, &models.Conversation{
		OrganizationID: org,
		Name:           "Deal 42",
		IsGroup:        true,
		CreatedByID:    a,
		EntityType:     &entity,
		EntityID:       &entityID,
	}, []uuid.UUID{a, b})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Conversations.GetByID(ctx, org, conv.ID)
	if err != nil || got.EntityType == nil || *got.EntityType != entity || *got.EntityID != entityID {
		t.Fatalf("got = %+v, %v", got, err)
	}

	if err := s.Conversations.AddParticipant(ctx, conv.ID, c); err != nil {
		t.Fatal(err)
	}
	if err := s.Conversations.Leave(ctx, conv.ID, c); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Conversations.IsParticipant(ctx, conv.ID, c); ok {
		t.Error("participant still live after leave")
	}
	// Rejoin clears the departure.
	if err := s.Conversations.AddParticipant(ctx, conv.ID, c); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Conversations.IsParticipant(ctx, conv.ID, c); !ok {
		t.Error("rejoined participant not live")
	}

	send(t, s, org, b, models.ConversationScope(conv.ID), "terms attached", nil)
	inbox, err := s.Conversations.ListForUser(ctx, org, a)
	if err != nil || len(inbox) != 1 {
		t.Fatalf("inbox = %+v, %v", inbox, err)
	}
	if len(inbox[0].ParticipantIDs) != 3 || inbox[0].LastMessage == nil || inbox[0].UnreadCount != 1 {
		t.Errorf("summary = %+v", inbox[0])
	}
}

func testMessagePaging(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, u := uuid.New(), uuid.New()
	scope := models.ChannelScope(channel(t, s, org, u, "paging", models.ChannelPublic).ID)

	var sent []*models.Message
	for _, body := range []string{"one", "two", "three", "four"} {
		sent = append(sent, send(t, s, org, u, scope, body, nil))
	}
	send(t, s, org, u, scope, "reply", &sent[0].ID)

	page, err := s.Messages.ListTopLevel(ctx, scope, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != sent[3].ID || page[1].ID != sent[2].ID {
		t.Fatalf("first page = %v", ids(page))
	}

	oldest := page[1]
	page, err = s.Messages.ListTopLevel(ctx, scope, &repository.Cursor{CreatedAt: oldest.CreatedAt, ID: oldest.ID}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != sent[1].ID || page[1].ID != sent[0].ID {
		t.Errorf("second page = %v", ids(page))
	}
}

func testThreads(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, u := uuid.New(), uuid.New()
	scope := models.ChannelScope(channel(t, s, org, u, "threads", models.ChannelPublic).ID)

	parent := send(t, s, org, u, scope, "parent", nil)
	r1 := send(t, s, org, u, scope, "first", &parent.ID)
	r2 := send(t, s, org, u, scope, "second", &parent.ID)

	got, err := s.Messages.GetByID(ctx, org, parent.ID)
	if err != nil || got.ThreadCount != 2 {
		t.Fatalf("parent = %+v, %v", got, err)
	}
	replies, err := s.Messages.ListReplies(ctx, parent.ID, 10)
	if err != nil || len(replies) != 2 || replies[0].ID != r1.ID || replies[1].ID != r2.ID {
		t.Errorf("replies = %v, %v", ids(replies), err)
	}
}

func testEditAndDelete(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, u := uuid.New(), uuid.New()
	scope := models.ChannelScope(channel(t, s, org, u, "edits", models.ChannelPublic).ID)
	m := send(t, s, org, u, scope, "draft", nil)

	at := time.Now().UTC().Truncate(time.Microsecond)
	edited, err := s.Messages.UpdateContent(ctx, m.ID, "final", at)
	if err != nil || !edited.IsEdited || edited.Content != "final" || !edited.EditedAt.Equal(at) {
		t.Fatalf("edited = %+v, %v", edited, err)
	}

	deleted, err := s.Messages.SoftDelete(ctx, m.ID, at)
	if err != nil || !deleted.IsDeleted || deleted.Content != models.DeletedContent {
		t.Fatalf("deleted = %+v, %v", deleted, err)
	}
	if _, err := s.Messages.GetByID(ctx, org, m.ID); err != nil {
		t.Errorf("tombstone lookup: %v", err)
	}
	if _, err := s.Messages.UpdateContent(ctx, 1<<40, "x", at); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func testSearch(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, u := uuid.New(), uuid.New()
	a := models.ChannelScope(channel(t, s, org, u, "a", models.ChannelPublic).ID)
	b := models.ChannelScope(channel(t, s, org, u, "b", models.ChannelPublic).ID)

	send(t, s, org, u, a, "Offer at 100% of ask", nil)
	send(t, s, org, u, b, "offer accepted", nil)
	gone := send(t, s, org, u, b, "offer withdrawn", nil)
	if _, err := s.Messages.SoftDelete(ctx, gone.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Messages.Search(ctx, repository.SearchQuery{OrganizationID: org, Text: "OFFER", Limit: 10})
	if err != nil || len(hits) != 2 {
		t.Fatalf("hits = %v, %v", ids(hits), err)
	}
	hits, _ = s.Messages.Search(ctx, repository.SearchQuery{OrganizationID: org, Text: "offer", Scope: &b, Limit: 10})
	if len(hits) != 1 || hits[0].Content != "offer accepted" {
		t.Errorf("scoped hits = %+v", hits)
	}
	// Wildcards in the query are literal.
	hits, _ = s.Messages.Search(ctx, repository.SearchQuery{OrganizationID: org, Text: "%", Limit: 10})
	if len(hits) != 1 {
		t.Errorf("literal %% hits = %d, want 1", len(hits))
	}
	hits, _ = s.Messages.Search(ctx, repository.SearchQuery{OrganizationID: uuid.New(), Text: "offer", Limit: 10})
	if len(hits) != 0 {
		t.Errorf("other org hits = %d", len(hits))
	}
}

func testReactions(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, a, b := uuid.New(), uuid.New(), uuid.New()
	scope := models.ChannelScope(channel(t, s, org, a, "reacts", models.ChannelPublic).ID)
	m := send(t, s, org, a, scope, "sold!", nil)

	for _, r := range []struct {
		user  uuid.UUID
		emoji string
	}{{a, "tada"}, {a, "tada"}, {b, "tada"}, {b, "fire"}} {
		if err := s.Reactions.Add(ctx, m.ID, r.user, r.emoji); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.Reactions.List(ctx, m.ID)
	if err != nil || len(list) != 3 {
		t.Fatalf("reactions = %+v, %v", list, err)
	}

	if err := s.Reactions.Remove(ctx, m.ID, b, "tada"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reactions.Remove(ctx, m.ID, b, "tada"); err != nil {
		t.Errorf("second remove: %v", err)
	}
	list, _ = s.Reactions.List(ctx, m.ID)
	if len(list) != 2 {
		t.Errorf("after remove = %+v", list)
	}
}

func testReads(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org, sender, reader := uuid.New(), uuid.New(), uuid.New()
	scope := models.ChannelScope(channel(t, s, org, sender, "reads", models.ChannelPublic).ID)

	m1 := send(t, s, org, sender, scope, "one", nil)
	send(t, s, org, sender, scope, "two", nil)
	send(t, s, org, reader, scope, "mine", nil)

	n, err := s.Reads.UnreadCount(ctx, scope, reader)
	if err != nil || n != 2 {
		t.Fatalf("unread = %d, %v; want 2", n, err)
	}
	// Another organization cannot mark these messages read.
	if err := s.Reads.MarkRead(ctx, uuid.New(), []int64{m1.ID}, reader); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Reads.UnreadCount(ctx, scope, reader); n != 2 {
		t.Errorf("unread after foreign mark = %d, want 2", n)
	}
	if err := s.Reads.MarkRead(ctx, org, []int64{m1.ID, m1.ID}, reader); err != nil {
		t.Fatal(err)
	}
	if err := s.Reads.MarkRead(ctx, org, []int64{m1.ID}, reader); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Reads.UnreadCount(ctx, scope, reader); n != 1 {
		t.Errorf("unread after one = %d, want 1", n)
	}
	if err := s.Reads.MarkScopeRead(ctx, scope, reader); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Reads.UnreadCount(ctx, scope, reader); n != 0 {
		t.Errorf("unread after scope read = %d, want 0", n)
	}
}

func testTyping(t *testing.T, s repository.Store) {
	ctx := context.Background()
	scope := models.ConversationScope(uuid.New())
	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := s.Typing.Upsert(ctx, scope, a, now.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := s.Typing.Upsert(ctx, scope, b, now.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}
	active, err := s.Typing.ListActive(ctx, scope, now)
	if err != nil || len(active) != 1 || active[0].UserID != a {
		t.Fatalf("active = %+v, %v", active, err)
	}

	// Upsert moves the expiry rather than adding a row.
	if err := s.Typing.Upsert(ctx, scope, b, now.Add(10*time.Second)); err != nil {
		t.Fatal(err)
	}
	if active, _ := s.Typing.ListActive(ctx, scope, now); len(active) != 2 {
		t.Errorf("active after refresh = %d, want 2", len(active))
	}

	purged, err := s.Typing.PurgeExpired(ctx, now.Add(6*time.Second))
	if err != nil || purged < 1 {
		t.Errorf("purged = %d, %v", purged, err)
	}
	if active, _ := s.Typing.ListActive(ctx, scope, now); len(active) != 1 || active[0].UserID != b {
		t.Errorf("active after purge = %+v", active)
	}

	if err := s.Typing.Delete(ctx, scope, b); err != nil {
		t.Fatal(err)
	}
	if active, _ := s.Typing.ListActive(ctx, scope, now); len(active) != 0 {
		t.Errorf("active after delete = %+v", active)
	}
}

func testPresence(t *testing.T, s repository.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	online, stale, offline, unknown := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	for _, p := range []models.UserPresence{
		{UserID: online, Status: models.PresenceAway, LastSeenAt: now},
		{UserID: stale, Status: models.PresenceOnline, LastSeenAt: now.Add(-time.Hour)},
		{UserID: offline, Status: models.PresenceOffline, LastSeenAt: now},
	} {
		if _, err := s.Presence.Upsert(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	since := now.Add(-5 * time.Minute)
	got, err := s.Presence.ListOnline(ctx, []uuid.UUID{online, stale, offline, unknown}, since)
	if err != nil || len(got) != 1 || got[0].UserID != online {
		t.Fatalf("online = %+v, %v", got, err)
	}

	if err := s.Presence.TouchLastSeen(ctx, stale, now); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Presence.ListOnline(ctx, []uuid.UUID{stale}, since); len(got) != 1 || got[0].Status != models.PresenceOnline {
		t.Errorf("touched = %+v", got)
	}

	// Connecting keeps a chosen status and message and revives OFFLINE.
	busy, fresh := uuid.New(), uuid.New()
	if _, err := s.Presence.Upsert(ctx, models.UserPresence{UserID: busy, Status: models.PresenceBusy, StatusMessage: "at a showing", LastSeenAt: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []uuid.UUID{busy, offline, fresh} {
		if err := s.Presence.MarkConnected(ctx, id, now); err != nil {
			t.Fatal(err)
		}
	}
	got, err = s.Presence.ListOnline(ctx, []uuid.UUID{busy, offline, fresh}, since)
	if err != nil || len(got) != 3 {
		t.Fatalf("after connect = %+v, %v", got, err)
	}
	for _, p := range got {
		want := models.PresenceOnline
		if p.UserID == busy {
			want = models.PresenceBusy
			if p.StatusMessage != "at a showing" {
				t.Errorf("busy message = %q", p.StatusMessage)
			}
		}
		if p.Status != want {
			t.Errorf("%s status = %s, want %s", p.UserID, p.Status, want)
		}
	}

	if err := s.Presence.MarkDisconnected(ctx, busy, now); err != nil {
		t.Fatal(err)
	}
	if err := s.Presence.MarkDisconnected(ctx, unknown, now); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Presence.ListOnline(ctx, []uuid.UUID{busy, unknown}, since); len(got) != 0 {
		t.Errorf("after disconnect = %+v", got)
	}
	if err := s.Presence.MarkConnected(ctx, busy, now); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Presence.ListOnline(ctx, []uuid.UUID{busy}, since); len(got) != 1 || got[0].StatusMessage != "at a showing" {
		t.Errorf("reconnect = %+v", got)
	}
}

func ids(msgs []models.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
