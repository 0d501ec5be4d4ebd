package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

// GetOrCreateDM returns the live direct conversation between two users,
// creating it on first contact. Argument order does not matter.
func (s *Service) GetOrCreateDM(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Conversation, error) {
	if userA == userB {
		return nil, invalid("a direct conversation needs two different users")
	}
	conv, created, err := s.store.Conversations.GetOrCreateDirect(ctx, orgID, userA, userB)
	if err != nil {
		return nil, storeErr("get or create dm", err)
	}
	if created {
		s.logger.Debug("direct conversation created")
	}
	return conv, nil
}

type CreateGroupInput struct {
	OrganizationID uuid.UUID
	CreatedByID    uuid.UUID
	Name           string
	ParticipantIDs []uuid.UUID

	// Optional link to the CLIENT / PROPERTY / DEAL / PROJECT record the
	// chat is about. Both or neither.
	EntityType *models.EntityType
	EntityID   *uuid.UUID
}

func (s *Service) CreateGroupConversation(ctx context.Context, in CreateGroupInput) (*models.Conversation, error) {
	if (in.EntityType == nil) != (in.EntityID == nil) {
		return nil, invalid("entity type and entity id go together")
	}
	if in.EntityType != nil && !in.EntityType.Valid() {
		return nil, invalid("unknown entity type %q", *in.EntityType)
	}

	// Creator first, then everyone else once.
	participants := []uuid.UUID{in.CreatedByID}
	seen := map[uuid.UUID]bool{in.CreatedByID: true}
	for _, id := range in.ParticipantIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
	}

	conv, err := s.store.Conversations.CreateGroup(ctx, &models.Conversation{
		OrganizationID: in.OrganizationID,
		Name:           strings.TrimSpace(in.Name),
		IsGroup:        true,
		CreatedByID:    in.CreatedByID,
		EntityType:     in.EntityType,
		EntityID:       in.EntityID,
	}, participants)
	if err != nil {
		return nil, storeErr("create group conversation", err)
	}
	return conv, nil
}

// AddConversationParticipant adds someone to a group, or brings back a
// participant who left. DMs are fixed at two.
func (s *Service) AddConversationParticipant(ctx context.Context, orgID, conversationID, userID uuid.UUID) error {
	conv, err := s.store.Conversations.GetByID(ctx, orgID, conversationID)
	if err != nil {
		return storeErr("add participant", err)
	}
	if !conv.IsGroup {
		return invalid("participants cannot be added to a direct conversation")
	}
	if err := s.store.Conversations.AddParticipant(ctx, conversationID, userID); err != nil {
		return storeErr("add participant", err)
	}
	return nil
}

// LeaveConversation marks the participant as gone. Their history stays.
func (s *Service) LeaveConversation(ctx context.Context, orgID, conversationID, userID uuid.UUID) error {
	if _, err := s.store.Conversations.GetByID(ctx, orgID, conversationID); err != nil {
		return storeErr("leave conversation", err)
	}
	if err := s.store.Conversations.Leave(ctx, conversationID, userID); err != nil {
		return storeErr("leave conversation", err)
	}
	return nil
}

// GetUserConversations is the user's inbox: conversations they are still
// in, each with its latest message and unread count, most recent first.
func (s *Service) GetUserConversations(ctx context.Context, orgID, userID uuid.UUID) ([]models.ConversationSummary, error) {
	convs, err := s.store.Conversations.ListForUser(ctx, orgID, userID)
	if err != nil {
		return nil, storeErr("get user conversations", err)
	}
	return convs, nil
}

// CanAccess reports whether the user may read and write in scope: any
// public channel or one they belong to, or a conversation they are still in.
// A scope outside the organization returns ErrNotFound.
func (s *Service) CanAccess(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) (bool, error) {
	if !scope.Valid() {
		return false, invalid("scope needs a channel or conversation id")
	}
	if scope.IsChannel() {
		ch, err := s.store.Channels.GetByID(ctx, orgID, scope.ID())
		if err != nil {
			return false, storeErr("check access", err)
		}
		if ch.Type == models.ChannelPublic {
			return true, nil
		}
		_, err = s.store.Members.GetMember(ctx, ch.ID, userID)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repository.ErrNotFound):
			return false, nil
		default:
			return false, storeErr("check access", err)
		}
	}

	if _, err := s.store.Conversations.GetByID(ctx, orgID, scope.ID()); err != nil {
		return false, storeErr("check access", err)
	}
	ok, err := s.store.Conversations.IsParticipant(ctx, scope.ID(), userID)
	if err != nil {
		return false, storeErr("check access", err)
	}
	return ok, nil
}

// requireAccess turns a false CanAccess into ErrForbidden.
func (s *Service) requireAccess(ctx context.Context, orgID, userID uuid.UUID, scope models.Scope) error {
	ok, err := s.CanAccess(ctx, orgID, userID, scope)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", scope, ErrForbidden)
	}
	return nil
}
