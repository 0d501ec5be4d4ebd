package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type conversationStore struct{ *state }

func (s *conversationStore) GetOrCreateDirect(_ context.Context, orgID, userA, userB uuid.UUID) (*models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := repository.DirectKey(orgID, userA, userB)
	for _, c := range s.conversation {
		if c.dmKey == key {
			out := c.Conversation
			return &out, false, nil
		}
	}

	now := s.clock()
	row := &conversationRow{
		Conversation: models.Conversation{
			ID:             uuid.New(),
			OrganizationID: orgID,
			CreatedByID:    userA,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		dmKey: key,
	}
	s.conversation[row.ID] = row
	for _, uid := range []uuid.UUID{userA, userB} {
		s.participants[participantKey{row.ID, uid}] = &models.ConversationParticipant{
			ConversationID: row.ID,
			UserID:         uid,
			JoinedAt:       now,
		}
	}
	out := row.Conversation
	return &out, true, nil
}

func (s *conversationStore) CreateGroup(_ context.Context, in *models.Conversation, participantIDs []uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	row := &conversationRow{Conversation: *in}
	row.ID = uuid.New()
	row.IsGroup = true
	row.CreatedAt = now
	row.UpdatedAt = now
	s.conversation[row.ID] = row
	for _, uid := range participantIDs {
		key := participantKey{row.ID, uid}
		if _, ok := s.participants[key]; ok {
			continue
		}
		s.participants[key] = &models.ConversationParticipant{
			ConversationID: row.ID,
			UserID:         uid,
			JoinedAt:       now,
		}
	}
	out := row.Conversation
	return &out, nil
}

func (s *conversationStore) GetByID(_ context.Context, orgID, conversationID uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversation[conversationID]
	if !ok || c.OrganizationID != orgID {
		return nil, fmt.Errorf("get conversation: %w", repository.ErrNotFound)
	}
	out := c.Conversation
	return &out, nil
}

func (s *conversationStore) AddParticipant(_ context.Context, conversationID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversation[conversationID]; !ok {
		return fmt.Errorf("add participant: conversation: %w", repository.ErrNotFound)
	}
	key := participantKey{conversationID, userID}
	if p, ok := s.participants[key]; ok {
		if p.LeftAt != nil {
			p.LeftAt = nil
			p.JoinedAt = s.clock()
		}
		return nil
	}
	s.participants[key] = &models.ConversationParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       s.clock(),
	}
	return nil
}

func (s *conversationStore) Leave(_ context.Context, conversationID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantKey{conversationID, userID}]
	if !ok || p.LeftAt != nil {
		return fmt.Errorf("leave conversation: %w", repository.ErrNotFound)
	}
	p.LeftAt = ptr(s.clock())
	if c := s.conversation[conversationID]; c != nil && !c.IsGroup {
		c.dmKey = ""
	}
	return nil
}

func (s *conversationStore) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantKey{conversationID, userID}]
	return ok && p.LeftAt == nil, nil
}

func (s *conversationStore) ListForUser(_ context.Context, orgID, userID uuid.UUID) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ConversationSummary, 0)
	for _, c := range s.conversation {
		if c.OrganizationID != orgID {
			continue
		}
		p, ok := s.participants[participantKey{c.ID, userID}]
		if !ok || p.LeftAt != nil {
			continue
		}
		scope := models.ConversationScope(c.ID)
		cs := models.ConversationSummary{
			Conversation:   c.Conversation,
			ParticipantIDs: s.liveParticipants(c.ID),
			UnreadCount:    s.unread(scope, userID),
		}
		if last := s.lastTopLevel(scope); last != nil {
			m := copyMessage(last)
			cs.LastMessage = &m
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *state) liveParticipants(conversationID uuid.UUID) []uuid.UUID {
	live := make([]*models.ConversationParticipant, 0)
	for key, p := range s.participants {
		if key.conversationID == conversationID && p.LeftAt == nil {
			live = append(live, p)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].JoinedAt.Equal(live[j].JoinedAt) {
			return live[i].JoinedAt.Before(live[j].JoinedAt)
		}
		return live[i].UserID.String() < live[j].UserID.String()
	})
	ids := make([]uuid.UUID, 0, len(live))
	for _, p := range live {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (s *state) lastTopLevel(scope models.Scope) *models.Message {
	var last *models.Message
	for _, m := range s.messages {
		if !inScope(m, scope) || m.ParentID != nil {
			continue
		}
		if last == nil || newer(m, last) {
			last = m
		}
	}
	return last
}
