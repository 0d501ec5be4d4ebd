package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
)

// Event names on the wire.
const (
	EventMessage  = "message"
	EventReaction = "reaction"
	EventTyping   = "typing"
	EventMention  = "mention"
)

// Message event types.
const (
	MessageNew    = "new"
	MessageEdit   = "edit"
	MessageDelete = "delete"
)

// Reaction event types.
const (
	ReactionAdd    = "add"
	ReactionRemove = "remove"
)

// Envelope is what travels on a topic: the event name and its payload.
type Envelope struct {
	Topic string          `json:"topic"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewEnvelope(topic, event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Topic: topic, Event: event, Data: data})
}

type AttachmentPayload struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"fileName"`
	FileSize int64     `json:"fileSize"`
	FileType string    `json:"fileType"`
	URL      string    `json:"url"`
}

type MessagePayload struct {
	ID             int64               `json:"id"`
	Content        string              `json:"content"`
	SenderID       uuid.UUID           `json:"senderId"`
	ChannelID      *uuid.UUID          `json:"channelId,omitempty"`
	ConversationID *uuid.UUID          `json:"conversationId,omitempty"`
	ParentID       *int64              `json:"parentId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	Attachments    []AttachmentPayload `json:"attachments,omitempty"`
}

type MessageEvent struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
}

func NewMessageEvent(typ string, m *models.Message) MessageEvent {
	p := MessagePayload{
		ID:             m.ID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		ChannelID:      m.Scope.ChannelIDPtr(),
		ConversationID: m.Scope.ConversationIDPtr(),
		ParentID:       m.ParentID,
		CreatedAt:      m.CreatedAt,
	}
	for _, a := range m.Attachments {
		p.Attachments = append(p.Attachments, AttachmentPayload{
			ID:       a.ID,
			FileName: a.FileName,
			FileSize: a.FileSize,
			FileType: a.FileType,
			URL:      a.URL,
		})
	}
	return MessageEvent{Type: typ, Message: p}
}

type ReactionEvent struct {
	Type      string    `json:"type"`
	MessageID int64     `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
	Emoji     string    `json:"emoji"`
}

type TypingEvent struct {
	UserID   uuid.UUID `json:"userId"`
	IsTyping bool      `json:"isTyping"`
}

type MentionEvent struct {
	MessageID      int64      `json:"messageId"`
	SenderID       uuid.UUID  `json:"senderId"`
	ChannelID      *uuid.UUID `json:"channelId,omitempty"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
}
