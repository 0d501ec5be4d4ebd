package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/realtime"
	"go.uber.org/zap"
)

// SetTypingIndicator keeps the user's indicator alive for TypingTTL and
// publishes isTyping=true. Clients call it repeatedly while typing.
func (s *Service) SetTypingIndicator(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) error {
	if err := s.requireAccess(ctx, orgID, userID, scope); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	if err := s.store.Typing.Upsert(ctx, scope, userID, s.now().Add(s.opts.TypingTTL)); err != nil {
		return storeErr("set typing", err)
	}
	s.publish(ctx, realtime.ScopeTopic(orgID, scope), realtime.EventTyping, realtime.TypingEvent{
		UserID:   userID,
		IsTyping: true,
	})
	return nil
}

// ClearTypingIndicator is the explicit stop signal. Indicators that are
// never cleared simply expire.
func (s *Service) ClearTypingIndicator(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) error {
	if err := s.requireAccess(ctx, orgID, userID, scope); err != nil {
		return fmt.Errorf("clear typing: %w", err)
	}
	if err := s.store.Typing.Delete(ctx, scope, userID); err != nil {
		return storeErr("clear typing", err)
	}
	s.publish(ctx, realtime.ScopeTopic(orgID, scope), realtime.EventTyping, realtime.TypingEvent{
		UserID:   userID,
		IsTyping: false,
	})
	return nil
}

// GetTypingUsers returns who is typing in scope right now. Expired rows
// are filtered here whether or not the sweeper has removed them yet. The
// caller must be able to read the scope.
func (s *Service) GetTypingUsers(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) ([]uuid.UUID, error) {
	if err := s.requireAccess(ctx, orgID, userID, scope); err != nil {
		return nil, fmt.Errorf("get typing users: %w", err)
	}
	active, err := s.store.Typing.ListActive(ctx, scope, s.now())
	if err != nil {
		return nil, storeErr("get typing users", err)
	}
	users := make([]uuid.UUID, 0, len(active))
	for _, t := range active {
		users = append(users, t.UserID)
	}
	return users, nil
}

// PurgeExpiredTyping deletes expired indicators. It publishes nothing.
func (s *Service) PurgeExpiredTyping(ctx context.Context) (int64, error) {
	n, err := s.store.Typing.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, storeErr("purge typing", err)
	}
	return n, nil
}

// RunTypingSweeper purges expired indicators every interval until ctx is
// cancelled.
func (s *Service) RunTypingSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpiredTyping(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("typing sweep failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				s.logger.Debug("typing sweep", zap.Int64("purged", n))
			}
		}
	}
}

// UpdatePresence sets the user's status and always refreshes LastSeenAt.
func (s *Service) UpdatePresence(ctx context.Context, userID uuid.UUID, status models.PresenceStatus, statusMessage string) (*models.UserPresence, error) {
	if !status.Valid() {
		return nil, invalid("unknown presence status %q", status)
	}
	p, err := s.store.Presence.Upsert(ctx, models.UserPresence{
		UserID:        userID,
		Status:        status,
		StatusMessage: statusMessage,
		LastSeenAt:    s.now(),
	})
	if err != nil {
		return nil, storeErr("update presence", err)
	}
	return p, nil
}

// TouchPresence refreshes LastSeenAt and leaves the status alone. A user
// with no presence row yet is left without one.
func (s *Service) TouchPresence(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Presence.TouchLastSeen(ctx, userID, s.now()); err != nil {
		return storeErr("touch presence", err)
	}
	return nil
}

// PresenceConnected records that the user opened a live connection. A
// user who was OFFLINE (or never set a status) becomes ONLINE; a BUSY or
// AWAY status chosen with UpdatePresence is left as it is.
func (s *Service) PresenceConnected(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Presence.MarkConnected(ctx, userID, s.now()); err != nil {
		return storeErr("presence connected", err)
	}
	return nil
}

// PresenceDisconnected records that the user's last live connection closed.
// The status message survives so it is still there on the next connect.
func (s *Service) PresenceDisconnected(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Presence.MarkDisconnected(ctx, userID, s.now()); err != nil {
		return storeErr("presence disconnected", err)
	}
	return nil
}

// GetOnlineUsers filters userIDs down to those whose status is not OFFLINE
// and who were seen within PresenceWindow.
func (s *Service) GetOnlineUsers(ctx context.Context, userIDs []uuid.UUID) ([]models.UserPresence, error) {
	if len(userIDs) == 0 {
		return []models.UserPresence{}, nil
	}
	online, err := s.store.Presence.ListOnline(ctx, userIDs, s.now().Add(-s.opts.PresenceWindow))
	if err != nil {
		return nil, storeErr("get online users", err)
	}
	return online, nil
}
