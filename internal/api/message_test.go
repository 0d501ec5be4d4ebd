package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestMessageRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.user(), s.user()
	ch := s.channel(alice, "listings", "")
	base := "/v1/channels/" + ch.ID.String() + "/messages"

	var sent messageResp
	s.mustDo(alice, http.MethodPost, base, map[string]any{"content": "  new listing on Elm St  "}, http.StatusCreated, &sent)
	if sent.Content != "new listing on Elm St" || sent.ChannelID == nil || *sent.ChannelID != ch.ID {
		t.Fatalf("sent = %+v", sent)
	}
	if got := s.do(alice, http.MethodPost, base, map[string]any{"content": "   "}, nil); got != http.StatusBadRequest {
		t.Errorf("blank content: status = %d, want 400", got)
	}

	var fetched messageResp
	s.mustDo(bob, http.MethodGet, fmt.Sprintf("/v1/messages/%d", sent.ID), nil, http.StatusOK, &fetched)
	if fetched.ID != sent.ID {
		t.Errorf("fetched = %+v", fetched)
	}

	// Only the sender edits or deletes.
	if got := s.do(bob, http.MethodPatch, fmt.Sprintf("/v1/messages/%d", sent.ID), map[string]any{"content": "mine now"}, nil); got != http.StatusForbidden {
		t.Errorf("edit by other: status = %d, want 403", got)
	}
	var edited messageResp
	s.mustDo(alice, http.MethodPatch, fmt.Sprintf("/v1/messages/%d", sent.ID), map[string]any{"content": "listing on Elm St, price cut"}, http.StatusOK, &edited)
	if !edited.IsEdited || edited.Content != "listing on Elm St, price cut" {
		t.Errorf("edited = %+v", edited)
	}

	var reply messageResp
	s.mustDo(bob, http.MethodPost, fmt.Sprintf("/v1/messages/%d/replies", sent.ID), map[string]any{"content": "showing Saturday?"}, http.StatusCreated, &reply)
	if reply.ParentID == nil || *reply.ParentID != sent.ID || reply.ChannelID == nil || *reply.ChannelID != ch.ID {
		t.Errorf("reply = %+v", reply)
	}
	var replies []messageResp
	s.mustDo(alice, http.MethodGet, fmt.Sprintf("/v1/messages/%d/replies", sent.ID), nil, http.StatusOK, &replies)
	if len(replies) != 1 || replies[0].ID != reply.ID {
		t.Errorf("replies = %+v", replies)
	}

	// Replies stay out of the top-level page; the parent carries the count.
	var page pageResp
	s.mustDo(bob, http.MethodGet, base, nil, http.StatusOK, &page)
	if len(page.Messages) != 1 || page.Messages[0].ThreadCount != 1 || page.HasMore {
		t.Errorf("page = %+v", page)
	}

	var deleted messageResp
	s.mustDo(alice, http.MethodDelete, fmt.Sprintf("/v1/messages/%d", sent.ID), nil, http.StatusOK, &deleted)
	if !deleted.IsDeleted {
		t.Error("message not deleted")
	}
	if got := s.do(alice, http.MethodPatch, fmt.Sprintf("/v1/messages/%d", sent.ID), map[string]any{"content": "again"}, nil); got != http.StatusConflict {
		t.Errorf("edit deleted: status = %d, want 409", got)
	}
	if got := s.do(alice, http.MethodGet, "/v1/messages/999999", nil, nil); got != http.StatusNotFound {
		t.Errorf("unknown message: status = %d, want 404", got)
	}
}

func TestMessagePaginationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	u := s.user()
	ch := s.channel(u, "closings", "")
	base := "/v1/channels/" + ch.ID.String() + "/messages"

	var ids []int64
	for i := 0; i < 5; i++ {
		var m messageResp
		s.mustDo(u, http.MethodPost, base, map[string]any{"content": fmt.Sprintf("m%d", i)}, http.StatusCreated, &m)
		ids = append(ids, m.ID)
	}

	var first pageResp
	s.mustDo(u, http.MethodGet, base+"?limit=2", nil, http.StatusOK, &first)
	if !first.HasMore || first.NextCursor == nil || len(first.Messages) != 2 {
		t.Fatalf("first = %+v", first)
	}
	if first.Messages[0].ID != ids[3] || first.Messages[1].ID != ids[4] {
		t.Errorf("first page ids = %d, %d", first.Messages[0].ID, first.Messages[1].ID)
	}

	var second pageResp
	s.mustDo(u, http.MethodGet, fmt.Sprintf("%s?limit=2&before=%d", base, *first.NextCursor), nil, http.StatusOK, &second)
	if len(second.Messages) != 2 || second.Messages[1].ID != ids[2] {
		t.Errorf("second = %+v", second)
	}
}

func TestPrivateScopesAreGuarded(t *testing.T) {
	s := newTestServer(t)
	owner, outsider := s.user(), s.user()
	private := s.channel(owner, "offers", "PRIVATE")

	var m messageResp
	s.mustDo(owner, http.MethodPost, "/v1/channels/"+private.ID.String()+"/messages", map[string]any{"content": "counter at 410k"}, http.StatusCreated, &m)

	forbidden := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/v1/channels/" + private.ID.String() + "/messages", nil},
		{http.MethodPost, "/v1/channels/" + private.ID.String() + "/messages", map[string]any{"content": "hi"}},
		{http.MethodGet, fmt.Sprintf("/v1/messages/%d", m.ID), nil},
		{http.MethodGet, fmt.Sprintf("/v1/messages/%d/replies", m.ID), nil},
		{http.MethodGet, "/v1/search?q=counter&channel_id=" + private.ID.String(), nil},
	}
	for _, tt := range forbidden {
		if got := s.do(outsider, tt.method, tt.path, tt.body, nil); got != http.StatusForbidden {
			t.Errorf("%s %s: status = %d, want 403", tt.method, tt.path, got)
		}
	}
}

func TestConversationRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, carol := s.user(), s.user(), s.user()

	var dm, again struct {
		ID      uuid.UUID `json:"id"`
		IsGroup bool      `json:"is_group"`
	}
	s.mustDo(alice, http.MethodPost, "/v1/conversations/direct", map[string]any{"user_id": bob.id}, http.StatusOK, &dm)
	s.mustDo(bob, http.MethodPost, "/v1/conversations/direct", map[string]any{"user_id": alice.id}, http.StatusOK, &again)
	if dm.ID != again.ID || dm.IsGroup {
		t.Fatalf("dm = %+v, again = %+v", dm, again)
	}
	if got := s.do(alice, http.MethodPost, "/v1/conversations/direct", map[string]any{"user_id": alice.id}, nil); got != http.StatusBadRequest {
		t.Errorf("dm with self: status = %d, want 400", got)
	}

	base := "/v1/conversations/" + dm.ID.String() + "/messages"
	var m messageResp
	s.mustDo(alice, http.MethodPost, base, map[string]any{"content": "inspection report attached"}, http.StatusCreated, &m)
	if m.ConversationID == nil || *m.ConversationID != dm.ID {
		t.Errorf("message = %+v", m)
	}
	if got := s.do(carol, http.MethodGet, base, nil, nil); got != http.StatusForbidden {
		t.Errorf("outsider read: status = %d, want 403", got)
	}

	var group struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	s.mustDo(alice, http.MethodPost, "/v1/conversations", map[string]any{
		"name":            "123 Main St",
		"participant_ids": []uuid.UUID{bob.id},
		"entity_type":     "PROPERTY",
		"entity_id":       uuid.New(),
	}, http.StatusCreated, &group)

	if got := s.do(carol, http.MethodPost, "/v1/conversations/"+group.ID.String()+"/participants", map[string]any{"user_id": carol.id}, nil); got != http.StatusForbidden {
		t.Errorf("self-invite: status = %d, want 403", got)
	}
	s.mustDo(bob, http.MethodPost, "/v1/conversations/"+group.ID.String()+"/participants", map[string]any{"user_id": carol.id}, http.StatusNoContent, nil)
	s.mustDo(carol, http.MethodGet, "/v1/conversations/"+group.ID.String()+"/messages", nil, http.StatusOK, nil)

	var inbox []struct {
		ID             uuid.UUID   `json:"id"`
		ParticipantIDs []uuid.UUID `json:"participant_ids"`
	}
	s.mustDo(alice, http.MethodGet, "/v1/conversations", nil, http.StatusOK, &inbox)
	if len(inbox) != 2 {
		t.Errorf("inbox = %+v", inbox)
	}

	s.mustDo(carol, http.MethodPost, "/v1/conversations/"+group.ID.String()+"/leave", nil, http.StatusNoContent, nil)
	if got := s.do(carol, http.MethodGet, "/v1/conversations/"+group.ID.String()+"/messages", nil, nil); got != http.StatusForbidden {
		t.Errorf("after leave: status = %d, want 403", got)
	}
}
