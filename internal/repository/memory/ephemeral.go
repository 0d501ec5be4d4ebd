package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
)

type typingStore struct{ *state }

func (s *typingStore) Upsert(_ context.Context, scope models.Scope, userID uuid.UUID, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typing[typingKey{scope.Kind(), scope.ID(), userID}] = expiresAt
	return nil
}

func (s *typingStore) Delete(_ context.Context, scope models.Scope, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.typing, typingKey{scope.Kind(), scope.ID(), userID})
	return nil
}

func (s *typingStore) ListActive(_ context.Context, scope models.Scope, now time.Time) ([]models.TypingIndicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.TypingIndicator, 0)
	for key, exp := range s.typing {
		if key.kind == scope.Kind() && key.id == scope.ID() && exp.After(now) {
			out = append(out, models.TypingIndicator{Scope: scope, UserID: key.userID, ExpiresAt: exp})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

func (s *typingStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, exp := range s.typing {
		if !exp.After(now) {
			delete(s.typing, key)
			n++
		}
	}
	return n, nil
}

type presenceStore struct{ *state }

func (s *presenceStore) Upsert(_ context.Context, p models.UserPresence) (*models.UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence[p.UserID] = p
	return &p, nil
}

func (s *presenceStore) TouchLastSeen(_ context.Context, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.presence[userID]; ok {
		p.LastSeenAt = at
		s.presence[userID] = p
	}
	return nil
}

func (s *presenceStore) MarkConnected(_ context.Context, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presence[userID]
	if !ok {
		p = models.UserPresence{UserID: userID}
	}
	if !ok || p.Status == models.PresenceOffline {
		p.Status = models.PresenceOnline
	}
	p.LastSeenAt = at
	s.presence[userID] = p
	return nil
}

func (s *presenceStore) MarkDisconnected(_ context.Context, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.presence[userID]; ok {
		p.Status = models.PresenceOffline
		p.LastSeenAt = at
		s.presence[userID] = p
	}
	return nil
}

func (s *presenceStore) ListOnline(_ context.Context, userIDs []uuid.UUID, since time.Time) ([]models.UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.UserPresence, 0)
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := s.presence[id]
		if !ok || p.Status == models.PresenceOffline || p.LastSeenAt.Before(since) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}
