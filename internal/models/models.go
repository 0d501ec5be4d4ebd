package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeletedContent replaces the body of a soft-deleted message.
// The row itself stays so thread counts and reactions keep pointing somewhere.
const DeletedContent = "[Message deleted]"

type ChannelType string

const (
	ChannelPublic       ChannelType = "PUBLIC"
	ChannelPrivate      ChannelType = "PRIVATE"
	ChannelAnnouncement ChannelType = "ANNOUNCEMENT"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelPublic, ChannelPrivate, ChannelAnnouncement:
		return true
	}
	return false
}

type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

type ContentType string

const (
	ContentText   ContentType = "TEXT"
	ContentSystem ContentType = "SYSTEM"
	ContentFile   ContentType = "FILE"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentSystem, ContentFile:
		return true
	}
	return false
}

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "ONLINE"
	PresenceAway    PresenceStatus = "AWAY"
	PresenceBusy    PresenceStatus = "BUSY"
	PresenceOffline PresenceStatus = "OFFLINE"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// EntityType names the business record a group conversation can be pinned to.
type EntityType string

const (
	EntityClient   EntityType = "CLIENT"
	EntityProperty EntityType = "PROPERTY"
	EntityDeal     EntityType = "DEAL"
	EntityProject  EntityType = "PROJECT"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityClient, EntityProperty, EntityDeal, EntityProject:
		return true
	}
	return false
}

// Channel is an organization-scoped named topic (#listings, #closings).
// Slug is derived from Name once, at creation, and is unique per organization.
type Channel struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name"`
	Slug           string      `json:"slug"`
	Description    string      `json:"description,omitempty"`
	Type           ChannelType `json:"channel_type"`
	IsDefault      bool        `json:"is_default"`
	IsArchived     bool        `json:"is_archived"`
	CreatedByID    uuid.UUID   `json:"created_by_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type ChannelMember struct {
	ChannelID  uuid.UUID  `json:"channel_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Role       MemberRole `json:"role"`
	MutedUntil *time.Time `json:"muted_until,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
}

// ChannelSummary is a channel as seen by one user: their own membership
// (nil role for a public channel they never joined) plus a message count.
type ChannelSummary struct {
	Channel
	MyRole       *MemberRole `json:"my_role,omitempty"`
	MutedUntil   *time.Time  `json:"muted_until,omitempty"`
	MessageCount int         `json:"message_count"`
}

// Conversation is a DM (IsGroup=false) or an ad-hoc group chat.
// UpdatedAt is bumped on every new message and drives inbox ordering.
type Conversation struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name,omitempty"`
	IsGroup        bool        `json:"is_group"`
	CreatedByID    uuid.UUID   `json:"created_by_id"`
	EntityType     *EntityType `json:"entity_type,omitempty"`
	EntityID       *uuid.UUID  `json:"entity_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ConversationParticipant rows are never deleted; LeftAt marks a departure.
type ConversationParticipant struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}

type ConversationSummary struct {
	Conversation
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	LastMessage    *Message    `json:"last_message,omitempty"`
	UnreadCount    int         `json:"unread_count"`
}

type Attachment struct {
	ID        uuid.UUID `json:"id"`
	MessageID int64     `json:"message_id"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	FileType  string    `json:"file_type"`
	URL       string    `json:"url"`
}

// Message lives in exactly one Scope. ParentID links a thread reply to its
// top-level message; ThreadCount is the denormalized reply counter.
type Message struct {
	ID             int64        `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	SenderID       uuid.UUID    `json:"sender_id"`
	Scope          Scope        `json:"-"`
	Content        string       `json:"content"`
	ContentType    ContentType  `json:"content_type"`
	ParentID       *int64       `json:"parent_id,omitempty"`
	ThreadCount    int          `json:"thread_count"`
	IsEdited       bool         `json:"is_edited"`
	EditedAt       *time.Time   `json:"edited_at,omitempty"`
	IsDeleted      bool         `json:"is_deleted"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	MentionIDs     []uuid.UUID  `json:"mention_ids,omitempty"`
}

// MarshalJSON flattens Scope into channel_id / conversation_id.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	return json.Marshal(struct {
		plain
		ChannelID      *uuid.UUID `json:"channel_id,omitempty"`
		ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	}{
		plain:          plain(m),
		ChannelID:      m.Scope.ChannelIDPtr(),
		ConversationID: m.Scope.ConversationIDPtr(),
	})
}

type Reaction struct {
	MessageID int64     `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup aggregates the reactions on one message by emoji.
type ReactionGroup struct {
	Emoji   string      `json:"emoji"`
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

type MessageRead struct {
	MessageID int64     `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

type TypingIndicator struct {
	Scope     Scope     `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserPresence is a singleton row per user. Status alone is not
// authoritative: readers also require a recent LastSeenAt.
type UserPresence struct {
	UserID        uuid.UUID      `json:"user_id"`
	Status        PresenceStatus `json:"status"`
	StatusMessage string         `json:"status_message,omitempty"`
	LastSeenAt    time.Time      `json:"last_seen_at"`
}
