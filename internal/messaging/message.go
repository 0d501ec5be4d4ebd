package messaging

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/realtime"
	"github.com/lalith-99/brokerchat/internal/repository"
	"go.uber.org/zap"
)

type SendMessageInput struct {
	OrganizationID uuid.UUID
	SenderID       uuid.UUID
	Scope          models.Scope
	Content        string
	ContentType    models.ContentType
	ParentID       *int64
	Attachments    []models.Attachment
	MentionIDs     []uuid.UUID
}

// SendMessage writes the message with its attachments and mentions in one
// transaction, then publishes "new" on the scope topic and a mention event
// to every mentioned user other than the sender.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if !in.Scope.Valid() {
		return nil, invalid("exactly one of channel_id or conversation_id is required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Attachments) == 0 {
		return nil, invalid("message content is required")
	}
	typ := in.ContentType
	if typ == "" {
		typ = models.ContentText
		if content == "" {
			typ = models.ContentFile
		}
	}
	if !typ.Valid() {
		return nil, invalid("unknown content type %q", typ)
	}
	for i, a := range in.Attachments {
		if a.FileName == "" || a.URL == "" {
			return nil, invalid("attachment %d needs a file name and url", i)
		}
		if a.FileSize < 0 {
			return nil, invalid("attachment %d has a negative size", i)
		}
	}

	if in.Scope.IsChannel() {
		ch, err := s.store.Channels.GetByID(ctx, in.OrganizationID, in.Scope.ID())
		if err != nil {
			return nil, storeErr("send message", err)
		}
		if ch.IsArchived {
			return nil, fmt.Errorf("send message: %w", ErrArchived)
		}
	}
	if err := s.requireAccess(ctx, in.OrganizationID, in.SenderID, in.Scope); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if in.ParentID != nil {
		parent, err := s.store.Messages.GetByID(ctx, in.OrganizationID, *in.ParentID)
		if err != nil {
			return nil, storeErr("send reply", err)
		}
		switch {
		case parent.Scope != in.Scope:
			return nil, invalid("parent message %d is in another scope", parent.ID)
		case parent.ParentID != nil:
			return nil, invalid("replies cannot be threaded further")
		case parent.IsDeleted:
			return nil, fmt.Errorf("send reply: %w", ErrDeleted)
		}
	}

	mentions := make([]uuid.UUID, 0, len(in.MentionIDs))
	for _, id := range in.MentionIDs {
		if id != uuid.Nil && !slices.Contains(mentions, id) {
			mentions = append(mentions, id)
		}
	}

	msg, err := s.store.Messages.Create(ctx, repository.NewMessage{
		OrganizationID: in.OrganizationID,
		SenderID:       in.SenderID,
		Scope:          in.Scope,
		Content:        content,
		ContentType:    typ,
		ParentID:       in.ParentID,
		Attachments:    in.Attachments,
		MentionIDs:     mentions,
	})
	if err != nil {
		return nil, storeErr("send message", err)
	}

	s.publish(ctx, realtime.ScopeTopic(msg.OrganizationID, msg.Scope), realtime.EventMessage,
		realtime.NewMessageEvent(realtime.MessageNew, msg))

	for _, userID := range msg.MentionIDs {
		if userID == msg.SenderID {
			continue
		}
		s.publish(ctx, realtime.UserTopic(userID), realtime.EventMention, realtime.MentionEvent{
			MessageID:      msg.ID,
			SenderID:       msg.SenderID,
			ChannelID:      msg.Scope.ChannelIDPtr(),
			ConversationID: msg.Scope.ConversationIDPtr(),
		})
	}
	return msg, nil
}

// ownMessage loads the message and checks that senderID wrote it.
func (s *Service) ownMessage(ctx context.Context, op string, orgID uuid.UUID, messageID int64, senderID uuid.UUID) (*models.Message, error) {
	msg, err := s.store.Messages.GetByID(ctx, orgID, messageID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if msg.SenderID != senderID {
		return nil, fmt.Errorf("%s %d: %w", op, messageID, ErrForbidden)
	}
	return msg, nil
}

func (s *Service) EditMessage(ctx context.Context, orgID uuid.UUID, messageID int64, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("message content is required")
	}
	msg, err := s.ownMessage(ctx, "edit message", orgID, messageID, senderID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, fmt.Errorf("edit message %d: %w", messageID, ErrDeleted)
	}

	msg, err = s.store.Messages.UpdateContent(ctx, messageID, content, s.now())
	if err != nil {
		return nil, storeErr("edit message", err)
	}
	s.publish(ctx, realtime.ScopeTopic(msg.OrganizationID, msg.Scope), realtime.EventMessage,
		realtime.NewMessageEvent(realtime.MessageEdit, msg))
	return msg, nil
}

// DeleteMessage tombstones the message. Replies, reactions and receipts
// keep pointing at the retained row.
func (s *Service) DeleteMessage(ctx context.Context, orgID uuid.UUID, messageID int64, senderID uuid.UUID) (*models.Message, error) {
	msg, err := s.ownMessage(ctx, "delete message", orgID, messageID, senderID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return msg, nil
	}

	msg, err = s.store.Messages.SoftDelete(ctx, messageID, s.now())
	if err != nil {
		return nil, storeErr("delete message", err)
	}
	s.logger.Info("message deleted",
		zap.Int64("message_id", msg.ID),
		zap.String("scope", msg.Scope.String()),
	)
	s.publish(ctx, realtime.ScopeTopic(msg.OrganizationID, msg.Scope), realtime.EventMessage,
		realtime.NewMessageEvent(realtime.MessageDelete, msg))
	return msg, nil
}

func (s *Service) GetMessage(ctx context.Context, orgID uuid.UUID, messageID int64) (*models.Message, error) {
	msg, err := s.store.Messages.GetByID(ctx, orgID, messageID)
	if err != nil {
		return nil, storeErr("get message", err)
	}
	return msg, nil
}

type GetMessagesInput struct {
	OrganizationID uuid.UUID
	Scope          models.Scope

	// Before is the id of the oldest message the caller already has.
	Before *int64
	Limit  int
}

// MessagePage is one page of top-level messages in chronological order.
// NextCursor is the id to pass as Before for the next older page.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	HasMore    bool             `json:"has_more"`
	NextCursor *int64           `json:"next_cursor,omitempty"`
}

func (s *Service) GetMessages(ctx context.Context, in GetMessagesInput) (*MessagePage, error) {
	if !in.Scope.Valid() {
		return nil, invalid("exactly one of channel_id or conversation_id is required")
	}
	limit := clampLimit(in.Limit, DefaultPageSize)

	var cursor *repository.Cursor
	if in.Before != nil {
		anchor, err := s.store.Messages.GetByID(ctx, in.OrganizationID, *in.Before)
		if err != nil {
			return nil, storeErr("get messages cursor", err)
		}
		if anchor.Scope != in.Scope {
			return nil, invalid("cursor message %d is in another scope", anchor.ID)
		}
		cursor = &repository.Cursor{CreatedAt: anchor.CreatedAt, ID: anchor.ID}
	}

	// One extra row tells us whether an older page exists.
	msgs, err := s.store.Messages.ListTopLevel(ctx, in.Scope, cursor, limit+1)
	if err != nil {
		return nil, storeErr("get messages", err)
	}

	page := &MessagePage{}
	if len(msgs) > limit {
		msgs = msgs[:limit]
		page.HasMore = true
	}
	slices.Reverse(msgs)
	if page.HasMore {
		oldest := msgs[0].ID
		page.NextCursor = &oldest
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	page.Messages = msgs
	return page, nil
}

// GetThreadReplies returns the direct replies to parentID, oldest first.
func (s *Service) GetThreadReplies(ctx context.Context, orgID uuid.UUID, parentID int64, limit int) ([]models.Message, error) {
	if _, err := s.store.Messages.GetByID(ctx, orgID, parentID); err != nil {
		return nil, storeErr("get thread replies", err)
	}
	replies, err := s.store.Messages.ListReplies(ctx, parentID, clampLimit(limit, DefaultPageSize))
	if err != nil {
		return nil, storeErr("get thread replies", err)
	}
	if replies == nil {
		replies = []models.Message{}
	}
	return replies, nil
}
