package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/repository"
)

// Compile-time proof that every store satisfies its interface.
var (
	_ repository.ChannelRepository      = (*ChannelStore)(nil)
	_ repository.MembershipRepository   = (*MembershipStore)(nil)
	_ repository.ConversationRepository = (*ConversationStore)(nil)
	_ repository.MessageRepository      = (*MessageStore)(nil)
	_ repository.ReactionRepository     = (*ReactionStore)(nil)
	_ repository.ReadRepository         = (*ReadStore)(nil)
	_ repository.TypingRepository       = (*TypingStore)(nil)
	_ repository.PresenceRepository     = (*PresenceStore)(nil)
)

// NewStore wires every postgres store onto the same pool. The pool is
// goroutine-safe, so sharing it is fine.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return repository.Store{
		Channels:      NewChannelStore(pool),
		Members:       NewMembershipStore(pool),
		Conversations: NewConversationStore(pool),
		Messages:      NewMessageStore(pool),
		Reactions:     NewReactionStore(pool),
		Reads:         NewReadStore(pool),
		Typing:        NewTypingStore(pool),
		Presence:      NewPresenceStore(pool),
	}
}
