package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
)

var (
	// ErrNotFound is returned by single-row lookups and updates that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint
	// (duplicate channel slug, duplicate DM pair).
	ErrConflict = errors.New("conflict")
)

// Every method takes ctx first: each one is a network round trip in the
// postgres implementation and must stop when the request goes away.
//
// Organization ids are passed wherever a row is looked up by id, so a
// guessed uuid from another organization matches nothing.

type ChannelRepository interface {
	// CreateWithOwner inserts the channel and the creator's OWNER membership
	// in one transaction. Returns ErrConflict on a duplicate slug.
	CreateWithOwner(ctx context.Context, ch *models.Channel) (*models.Channel, error)

	GetByID(ctx context.Context, orgID, channelID uuid.UUID) (*models.Channel, error)

	// Update writes name, description and archive state. Slug is untouched.
	Update(ctx context.Context, ch *models.Channel) (*models.Channel, error)

	// ListForUser returns non-archived channels that are public or that the
	// user belongs to, ordered by is_default desc, name asc.
	ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]models.ChannelSummary, error)
}

type MembershipRepository interface {
	// UpsertMember adds the user or updates the role of an existing member.
	UpsertMember(ctx context.Context, channelID, userID uuid.UUID, role models.MemberRole) (*models.ChannelMember, error)

	// RemoveMember deletes the membership. No-op if absent.
	RemoveMember(ctx context.Context, channelID, userID uuid.UUID) error

	GetMember(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMember, error)

	ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error)

	// SetMutedUntil returns ErrNotFound if the user is not a member.
	SetMutedUntil(ctx context.Context, channelID, userID uuid.UUID, until *time.Time) error
}

type ConversationRepository interface {
	// GetOrCreateDirect returns the live DM for the unordered pair, creating
	// it if needed. Concurrent callers for the same pair get the same row.
	GetOrCreateDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Conversation, bool, error)

	// CreateGroup inserts the conversation and its participants in one transaction.
	CreateGroup(ctx context.Context, conv *models.Conversation, participantIDs []uuid.UUID) (*models.Conversation, error)

	GetByID(ctx context.Context, orgID, conversationID uuid.UUID) (*models.Conversation, error)

	// AddParticipant inserts the participant or clears LeftAt on a rejoin.
	AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) error

	// Leave sets LeftAt on the live participant row. For a DM it also frees
	// the pair so a later GetOrCreateDirect starts a new conversation.
	// Returns ErrNotFound if the user has no live row.
	Leave(ctx context.Context, conversationID, userID uuid.UUID) error

	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)

	// ListForUser returns conversations with a live participant row for the
	// user, most recently active first.
	ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]models.ConversationSummary, error)
}

// NewMessage is everything SendMessage writes in a single transaction.
type NewMessage struct {
	OrganizationID uuid.UUID
	SenderID       uuid.UUID
	Scope          models.Scope
	Content        string
	ContentType    models.ContentType
	ParentID       *int64
	Attachments    []models.Attachment
	MentionIDs     []uuid.UUID
}

// Cursor is the (created_at, id) position of the message a page starts before.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

type SearchQuery struct {
	OrganizationID uuid.UUID
	Text           string
	Scope          *models.Scope
	Limit          int
}

type MessageRepository interface {
	// Create writes the message, its attachments and mentions, increments the
	// parent's thread count and bumps the conversation's updated_at, atomically.
	Create(ctx context.Context, msg NewMessage) (*models.Message, error)

	GetByID(ctx context.Context, orgID uuid.UUID, messageID int64) (*models.Message, error)

	// UpdateContent sets content, is_edited and edited_at.
	UpdateContent(ctx context.Context, messageID int64, content string, editedAt time.Time) (*models.Message, error)

	// SoftDelete replaces content with the tombstone and flags the row.
	SoftDelete(ctx context.Context, messageID int64, deletedAt time.Time) (*models.Message, error)

	// ListTopLevel returns top-level messages older than before (all when nil),
	// newest first.
	ListTopLevel(ctx context.Context, scope models.Scope, before *Cursor, limit int) ([]models.Message, error)

	// ListReplies returns the direct replies of parentID, oldest first.
	ListReplies(ctx context.Context, parentID int64, limit int) ([]models.Message, error)

	// Search is a case-insensitive substring match over non-deleted messages,
	// newest first.
	Search(ctx context.Context, q SearchQuery) ([]models.Message, error)
}

type ReactionRepository interface {
	// Add is an upsert on (message, user, emoji). A repeat is a no-op.
	Add(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) error

	// Remove deletes the exact triple. No-op if absent.
	Remove(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) error

	List(ctx context.Context, messageID int64) ([]models.Reaction, error)
}

type ReadRepository interface {
	// MarkRead inserts one receipt per id, skipping duplicates and ids that
	// are missing or belong to another organization.
	MarkRead(ctx context.Context, orgID uuid.UUID, messageIDs []int64, userID uuid.UUID) error

	// MarkScopeRead inserts receipts for every message in scope not sent by the user.
	MarkScopeRead(ctx context.Context, scope models.Scope, userID uuid.UUID) error

	// UnreadCount counts non-deleted messages in scope, not sent by the user,
	// with no receipt for the user.
	UnreadCount(ctx context.Context, scope models.Scope, userID uuid.UUID) (int, error)
}

type TypingRepository interface {
	Upsert(ctx context.Context, scope models.Scope, userID uuid.UUID, expiresAt time.Time) error
	Delete(ctx context.Context, scope models.Scope, userID uuid.UUID) error

	// ListActive returns indicators in scope expiring after now.
	ListActive(ctx context.Context, scope models.Scope, now time.Time) ([]models.TypingIndicator, error)

	// PurgeExpired deletes indicators that expired at or before now and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type PresenceRepository interface {
	Upsert(ctx context.Context, p models.UserPresence) (*models.UserPresence, error)

	// TouchLastSeen refreshes last_seen_at without changing the status.
	TouchLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error

	// MarkConnected refreshes last_seen_at and moves a missing or OFFLINE
	// user to ONLINE. Any other status and the status message are kept.
	MarkConnected(ctx context.Context, userID uuid.UUID, at time.Time) error

	// MarkDisconnected sets OFFLINE and refreshes last_seen_at, keeping the
	// status message. No-op for a user with no row.
	MarkDisconnected(ctx context.Context, userID uuid.UUID, at time.Time) error

	// ListOnline returns presences among userIDs with status != OFFLINE
	// and last_seen_at at or after since.
	ListOnline(ctx context.Context, userIDs []uuid.UUID, since time.Time) ([]models.UserPresence, error)
}

// Store bundles the repositories the messaging service depends on.
type Store struct {
	Channels      ChannelRepository
	Members       MembershipRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Reactions     ReactionRepository
	Reads         ReadRepository
	Typing        TypingRepository
	Presence      PresenceRepository
}

// DirectKey is the normalized identity of a DM: the organization plus the
// two user ids in sorted order, so (a, b) and (b, a) collide.
func DirectKey(orgID, userA, userB uuid.UUID) string {
	lo, hi := userA.String(), userB.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return orgID.String() + ":" + lo + ":" + hi
}
