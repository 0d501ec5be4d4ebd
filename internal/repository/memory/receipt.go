package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type reactionStore struct{ *state }

func (s *reactionStore) Add(_ context.Context, messageID int64, userID uuid.UUID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return fmt.Errorf("add reaction: message: %w", repository.ErrNotFound)
	}
	key := reactionKey{messageID, userID, emoji}
	if _, ok := s.reactions[key]; ok {
		return nil
	}
	s.reactions[key] = models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji, CreatedAt: s.clock()}
	return nil
}

func (s *reactionStore) Remove(_ context.Context, messageID int64, userID uuid.UUID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.reactions, reactionKey{messageID, userID, emoji})
	return nil
}

func (s *reactionStore) List(_ context.Context, messageID int64) ([]models.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Reaction, 0)
	for key, r := range s.reactions {
		if key.messageID == messageID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID.String() < out[j].UserID.String()
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out, nil
}

type readStore struct{ *state }

func (s *readStore) MarkRead(_ context.Context, orgID uuid.UUID, messageIDs []int64, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for _, id := range messageIDs {
		if m, ok := s.messages[id]; !ok || m.OrganizationID != orgID {
			continue
		}
		s.insertRead(id, userID, now)
	}
	return nil
}

func (s *readStore) MarkScopeRead(_ context.Context, scope models.Scope, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for id, m := range s.messages {
		if inScope(m, scope) && m.SenderID != userID {
			s.insertRead(id, userID, now)
		}
	}
	return nil
}

func (s *readStore) UnreadCount(_ context.Context, scope models.Scope, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unread(scope, userID), nil
}

// insertRead skips an existing receipt; receipts are never rewritten.
func (s *state) insertRead(messageID int64, userID uuid.UUID, at time.Time) {
	key := readKey{messageID, userID}
	if _, ok := s.reads[key]; ok {
		return
	}
	s.reads[key] = models.MessageRead{MessageID: messageID, UserID: userID, ReadAt: at}
}

func (s *state) unread(scope models.Scope, userID uuid.UUID) int {
	n := 0
	for id, m := range s.messages {
		if !inScope(m, scope) || m.SenderID == userID || m.IsDeleted {
			continue
		}
		if _, read := s.reads[readKey{id, userID}]; !read {
			n++
		}
	}
	return n
}

// ReceiptCount reports the total number of read receipts held by a store
// built with New. Tests use it to assert that repeated marks add nothing.
func ReceiptCount(store repository.Store) int {
	rs, ok := store.Reads.(*readStore)
	if !ok {
		return 0
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.reads)
}
