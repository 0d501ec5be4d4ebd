package models

import (
	"fmt"

	"github.com/google/uuid"
)

type ScopeKind uint8

const (
	scopeInvalid ScopeKind = iota
	ScopeChannel
	ScopeConversation
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeChannel:
		return "channel"
	case ScopeConversation:
		return "conversation"
	}
	return "invalid"
}

// Scope says where a message, typing indicator or unread query lives:
// either a channel or a conversation, never both. The zero value is invalid.
type Scope struct {
	kind ScopeKind
	id   uuid.UUID
}

func ChannelScope(id uuid.UUID) Scope {
	return Scope{kind: ScopeChannel, id: id}
}

func ConversationScope(id uuid.UUID) Scope {
	return Scope{kind: ScopeConversation, id: id}
}

// ScopeFrom builds a Scope from the nullable column pair used in storage.
// Exactly one of the two must be set.
func ScopeFrom(channelID, conversationID *uuid.UUID) (Scope, error) {
	switch {
	case channelID != nil && conversationID == nil:
		return ChannelScope(*channelID), nil
	case conversationID != nil && channelID == nil:
		return ConversationScope(*conversationID), nil
	}
	return Scope{}, fmt.Errorf("scope needs exactly one of channel or conversation id")
}

func (s Scope) Kind() ScopeKind { return s.kind }
func (s Scope) ID() uuid.UUID   { return s.id }

func (s Scope) Valid() bool {
	return (s.kind == ScopeChannel || s.kind == ScopeConversation) && s.id != uuid.Nil
}

func (s Scope) IsChannel() bool      { return s.kind == ScopeChannel }
func (s Scope) IsConversation() bool { return s.kind == ScopeConversation }

func (s Scope) ChannelIDPtr() *uuid.UUID {
	if s.kind != ScopeChannel {
		return nil
	}
	id := s.id
	return &id
}

func (s Scope) ConversationIDPtr() *uuid.UUID {
	if s.kind != ScopeConversation {
		return nil
	}
	id := s.id
	return &id
}

func (s Scope) String() string {
	return s.kind.String() + ":" + s.id.String()
}
