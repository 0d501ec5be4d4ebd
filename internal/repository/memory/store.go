// Package memory is an in-process implementation of the repository
// contracts. It enforces the same composite-key uniqueness as the postgres
// schema and backs the test suites and STORE_DRIVER=memory.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type memberKey struct {
	channelID uuid.UUID
	userID    uuid.UUID
}

type participantKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

type reactionKey struct {
	messageID int64
	userID    uuid.UUID
	emoji     string
}

type readKey struct {
	messageID int64
	userID    uuid.UUID
}

type typingKey struct {
	kind   models.ScopeKind
	id     uuid.UUID
	userID uuid.UUID
}

type conversationRow struct {
	models.Conversation
	dmKey string
}

// state is shared by all the per-aggregate views below. One mutex guards
// everything, which gives every method transaction semantics for free.
type state struct {
	mu  sync.Mutex
	now func() time.Time

	channels     map[uuid.UUID]*models.Channel
	members      map[memberKey]*models.ChannelMember
	conversation map[uuid.UUID]*conversationRow
	participants map[participantKey]*models.ConversationParticipant
	messages     map[int64]*models.Message
	nextMsgID    int64
	reactions    map[reactionKey]models.Reaction
	reads        map[readKey]models.MessageRead
	typing       map[typingKey]time.Time
	presence     map[uuid.UUID]models.UserPresence
}

// Option tweaks a new store.
type Option func(*state)

// WithClock sets the time source used for created_at style columns.
func WithClock(now func() time.Time) Option {
	return func(s *state) { s.now = now }
}

// New returns a repository.Store backed by maps.
func New(opts ...Option) repository.Store {
	s := &state{
		now:          time.Now,
		channels:     make(map[uuid.UUID]*models.Channel),
		members:      make(map[memberKey]*models.ChannelMember),
		conversation: make(map[uuid.UUID]*conversationRow),
		participants: make(map[participantKey]*models.ConversationParticipant),
		messages:     make(map[int64]*models.Message),
		reactions:    make(map[reactionKey]models.Reaction),
		reads:        make(map[readKey]models.MessageRead),
		typing:       make(map[typingKey]time.Time),
		presence:     make(map[uuid.UUID]models.UserPresence),
	}
	for _, opt := range opts {
		opt(s)
	}
	return repository.Store{
		Channels:      &channelStore{s},
		Members:       &membershipStore{s},
		Conversations: &conversationStore{s},
		Messages:      &messageStore{s},
		Reactions:     &reactionStore{s},
		Reads:         &readStore{s},
		Typing:        &typingStore{s},
		Presence:      &presenceStore{s},
	}
}

// clock returns the current time truncated to microseconds, matching
// timestamptz precision.
func (s *state) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func ptr[T any](v T) *T { return &v }

// copyMessage returns a value copy whose slices don't alias the stored row.
func copyMessage(m *models.Message) models.Message {
	out := *m
	out.Attachments = append([]models.Attachment(nil), m.Attachments...)
	out.MentionIDs = append([]uuid.UUID(nil), m.MentionIDs...)
	return out
}

func inScope(m *models.Message, scope models.Scope) bool {
	return m.Scope == scope
}
