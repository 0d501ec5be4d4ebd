package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/realtime"
)

func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", invalid("emoji is required")
	}
	if len(emoji) > maxEmojiLength {
		return "", invalid("emoji is longer than %d bytes", maxEmojiLength)
	}
	return emoji, nil
}

// readableMessage loads the message and checks the user may see the
// scope it was posted in.
func (s *Service) readableMessage(ctx context.Context, op string, orgID uuid.UUID, messageID int64, userID uuid.UUID) (*models.Message, error) {
	msg, err := s.store.Messages.GetByID(ctx, orgID, messageID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if err := s.requireAccess(ctx, orgID, userID, msg.Scope); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// AddReaction is idempotent: adding the same emoji twice leaves one row
// and publishes "add" both times. The event goes to the topic of the
// scope the message lives in.
func (s *Service) AddReaction(ctx context.Context, orgID uuid.UUID, messageID int64, userID uuid.UUID, emoji string) error {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return err
	}
	msg, err := s.readableMessage(ctx, "add reaction", orgID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return fmt.Errorf("add reaction to %d: %w", messageID, ErrDeleted)
	}
	if err := s.store.Reactions.Add(ctx, messageID, userID, emoji); err != nil {
		return storeErr("add reaction", err)
	}
	s.publish(ctx, realtime.ScopeTopic(msg.OrganizationID, msg.Scope), realtime.EventReaction, realtime.ReactionEvent{
		Type:      realtime.ReactionAdd,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	return nil
}

// RemoveReaction deletes the exact (message, user, emoji) triple. Removing
// a reaction that is not there is not an error. Removal still works on a
// deleted message.
func (s *Service) RemoveReaction(ctx context.Context, orgID uuid.UUID, messageID int64, userID uuid.UUID, emoji string) error {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return err
	}
	msg, err := s.readableMessage(ctx, "remove reaction", orgID, messageID, userID)
	if err != nil {
		return err
	}
	if err := s.store.Reactions.Remove(ctx, messageID, userID, emoji); err != nil {
		return storeErr("remove reaction", err)
	}
	s.publish(ctx, realtime.ScopeTopic(msg.OrganizationID, msg.Scope), realtime.EventReaction, realtime.ReactionEvent{
		Type:      realtime.ReactionRemove,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	return nil
}

// ListReactions groups a message's reactions by emoji, in the order each
// emoji was first used. The user must be able to read the message.
func (s *Service) ListReactions(ctx context.Context, orgID uuid.UUID, messageID int64, userID uuid.UUID) ([]models.ReactionGroup, error) {
	if _, err := s.readableMessage(ctx, "list reactions", orgID, messageID, userID); err != nil {
		return nil, err
	}
	reactions, err := s.store.Reactions.List(ctx, messageID)
	if err != nil {
		return nil, storeErr("list reactions", err)
	}

	groups := make([]models.ReactionGroup, 0)
	index := make(map[string]int)
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, models.ReactionGroup{Emoji: r.Emoji, UserIDs: []uuid.UUID{}})
		}
		groups[i].Count++
		groups[i].UserIDs = append(groups[i].UserIDs, r.UserID)
	}
	return groups, nil
}

// MarkMessagesAsRead records a receipt per id. Already-read ids and ids
// that do not exist in the organization are skipped. No event is published.
func (s *Service) MarkMessagesAsRead(ctx context.Context, orgID uuid.UUID, messageIDs []int64, userID uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := s.store.Reads.MarkRead(ctx, orgID, messageIDs, userID); err != nil {
		return storeErr("mark messages read", err)
	}
	return nil
}

// MarkScopeAsRead records receipts for every message in scope the user
// did not send.
func (s *Service) MarkScopeAsRead(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) error {
	if err := s.requireAccess(ctx, orgID, userID, scope); err != nil {
		return fmt.Errorf("mark scope read: %w", err)
	}
	if err := s.store.Reads.MarkScopeRead(ctx, scope, userID); err != nil {
		return storeErr("mark scope read", err)
	}
	return nil
}

// GetUnreadCount counts non-deleted messages in scope, not sent by the
// user, that the user has no receipt for.
func (s *Service) GetUnreadCount(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) (int, error) {
	if err := s.requireAccess(ctx, orgID, userID, scope); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	n, err := s.store.Reads.UnreadCount(ctx, scope, userID)
	if err != nil {
		return 0, storeErr("unread count", err)
	}
	return n, nil
}
