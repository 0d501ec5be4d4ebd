package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type messageStore struct{ *state }

// newer orders messages by (created_at, id) descending.
func newer(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *messageStore) Create(_ context.Context, in repository.NewMessage) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every foreign key before the first write, so a failure
	// leaves nothing behind.
	var parent *models.Message
	if in.ParentID != nil {
		p, ok := s.messages[*in.ParentID]
		if !ok {
			return nil, fmt.Errorf("insert message: parent: %w", repository.ErrNotFound)
		}
		parent = p
	}
	var conv *conversationRow
	switch in.Scope.Kind() {
	case models.ScopeChannel:
		if _, ok := s.channels[in.Scope.ID()]; !ok {
			return nil, fmt.Errorf("insert message: channel: %w", repository.ErrNotFound)
		}
	case models.ScopeConversation:
		c, ok := s.conversation[in.Scope.ID()]
		if !ok {
			return nil, fmt.Errorf("insert message: conversation: %w", repository.ErrNotFound)
		}
		conv = c
	default:
		return nil, fmt.Errorf("insert message: invalid scope")
	}

	now := s.clock()
	s.nextMsgID++
	m := &models.Message{
		ID:             s.nextMsgID,
		OrganizationID: in.OrganizationID,
		SenderID:       in.SenderID,
		Scope:          in.Scope,
		Content:        in.Content,
		ContentType:    in.ContentType,
		ParentID:       in.ParentID,
		CreatedAt:      now,
	}
	for _, a := range in.Attachments {
		a.ID = uuid.New()
		a.MessageID = m.ID
		m.Attachments = append(m.Attachments, a)
	}
	seen := make(map[uuid.UUID]bool, len(in.MentionIDs))
	for _, uid := range in.MentionIDs {
		if !seen[uid] {
			seen[uid] = true
			m.MentionIDs = append(m.MentionIDs, uid)
		}
	}
	s.messages[m.ID] = m

	if parent != nil {
		parent.ThreadCount++
	}
	if conv != nil {
		conv.UpdatedAt = now
	}

	out := copyMessage(m)
	return &out, nil
}

func (s *messageStore) GetByID(_ context.Context, orgID uuid.UUID, messageID int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok || m.OrganizationID != orgID {
		return nil, fmt.Errorf("get message: %w", repository.ErrNotFound)
	}
	out := copyMessage(m)
	return &out, nil
}

func (s *messageStore) UpdateContent(_ context.Context, messageID int64, content string, editedAt time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("update message: %w", repository.ErrNotFound)
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = ptr(editedAt)
	out := copyMessage(m)
	return &out, nil
}

func (s *messageStore) SoftDelete(_ context.Context, messageID int64, deletedAt time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("delete message: %w", repository.ErrNotFound)
	}
	m.Content = models.DeletedContent
	m.IsDeleted = true
	m.DeletedAt = ptr(deletedAt)
	out := copyMessage(m)
	return &out, nil
}

func (s *messageStore) ListTopLevel(_ context.Context, scope models.Scope, before *repository.Cursor, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cursor *models.Message
	if before != nil {
		cursor = &models.Message{ID: before.ID, CreatedAt: before.CreatedAt}
	}

	page := make([]*models.Message, 0)
	for _, m := range s.messages {
		if !inScope(m, scope) || m.ParentID != nil {
			continue
		}
		if cursor != nil && !newer(cursor, m) {
			continue
		}
		page = append(page, m)
	}
	sort.Slice(page, func(i, j int) bool { return newer(page[i], page[j]) })
	return take(page, limit), nil
}

func (s *messageStore) ListReplies(_ context.Context, parentID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replies := make([]*models.Message, 0)
	for _, m := range s.messages {
		if m.ParentID != nil && *m.ParentID == parentID {
			replies = append(replies, m)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return newer(replies[j], replies[i]) })
	return take(replies, limit), nil
}

func (s *messageStore) Search(_ context.Context, q repository.SearchQuery) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(q.Text)
	hits := make([]*models.Message, 0)
	for _, m := range s.messages {
		if m.OrganizationID != q.OrganizationID || m.IsDeleted {
			continue
		}
		if q.Scope != nil && !inScope(m, *q.Scope) {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) {
			hits = append(hits, m)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return newer(hits[i], hits[j]) })
	return take(hits, q.Limit), nil
}

func take(rows []*models.Message, limit int) []models.Message {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]models.Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, copyMessage(m))
	}
	return out
}
