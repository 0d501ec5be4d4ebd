package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
	"go.uber.org/zap"
)

type CreateChannelInput struct {
	OrganizationID uuid.UUID
	Name           string
	Description    string
	Type           models.ChannelType
	IsDefault      bool
	CreatedByID    uuid.UUID
}

// CreateChannel derives the slug from the name and creates the channel
// with its creator as OWNER. A slug already used in the organization
// returns ErrConflict.
func (s *Service) CreateChannel(ctx context.Context, in CreateChannelInput) (*models.Channel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("channel name is required")
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, invalid("channel name %q has no letters or digits", name)
	}
	typ := in.Type
	if typ == "" {
		typ = models.ChannelPublic
	}
	if !typ.Valid() {
		return nil, invalid("unknown channel type %q", typ)
	}

	ch, err := s.store.Channels.CreateWithOwner(ctx, &models.Channel{
		OrganizationID: in.OrganizationID,
		Name:           name,
		Slug:           slug,
		Description:    in.Description,
		Type:           typ,
		IsDefault:      in.IsDefault,
		CreatedByID:    in.CreatedByID,
	})
	if err != nil {
		return nil, storeErr("create channel", err)
	}
	s.logger.Debug("channel created",
		zap.String("channel_id", ch.ID.String()),
		zap.String("slug", ch.Slug),
	)
	return ch, nil
}

func (s *Service) GetChannel(ctx context.Context, orgID, channelID uuid.UUID) (*models.Channel, error) {
	ch, err := s.store.Channels.GetByID(ctx, orgID, channelID)
	if err != nil {
		return nil, storeErr("get channel", err)
	}
	return ch, nil
}

type UpdateChannelInput struct {
	Name        *string
	Description *string
}

// UpdateChannel renames or re-describes a channel. The slug keeps the value
// derived at creation.
func (s *Service) UpdateChannel(ctx context.Context, orgID, channelID uuid.UUID, in UpdateChannelInput) (*models.Channel, error) {
	ch, err := s.store.Channels.GetByID(ctx, orgID, channelID)
	if err != nil {
		return nil, storeErr("update channel", err)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("channel name is required")
		}
		ch.Name = name
	}
	if in.Description != nil {
		ch.Description = *in.Description
	}
	ch, err = s.store.Channels.Update(ctx, ch)
	if err != nil {
		return nil, storeErr("update channel", err)
	}
	return ch, nil
}

// ArchiveChannel hides the channel from listings and blocks new messages.
// History stays readable.
func (s *Service) ArchiveChannel(ctx context.Context, orgID, channelID uuid.UUID) (*models.Channel, error) {
	ch, err := s.store.Channels.GetByID(ctx, orgID, channelID)
	if err != nil {
		return nil, storeErr("archive channel", err)
	}
	if ch.IsArchived {
		return ch, nil
	}
	ch.IsArchived = true
	ch, err = s.store.Channels.Update(ctx, ch)
	if err != nil {
		return nil, storeErr("archive channel", err)
	}
	return ch, nil
}

// AddChannelMember adds the user, or changes their role if already a member.
func (s *Service) AddChannelMember(ctx context.Context, orgID, channelID, userID uuid.UUID, role models.MemberRole) (*models.ChannelMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, invalid("unknown member role %q", role)
	}
	if _, err := s.store.Channels.GetByID(ctx, orgID, channelID); err != nil {
		return nil, storeErr("add channel member", err)
	}
	m, err := s.store.Members.UpsertMember(ctx, channelID, userID, role)
	if err != nil {
		return nil, storeErr("add channel member", err)
	}
	return m, nil
}

func (s *Service) RemoveChannelMember(ctx context.Context, orgID, channelID, userID uuid.UUID) error {
	if _, err := s.store.Channels.GetByID(ctx, orgID, channelID); err != nil {
		return storeErr("remove channel member", err)
	}
	if err := s.store.Members.RemoveMember(ctx, channelID, userID); err != nil {
		return storeErr("remove channel member", err)
	}
	return nil
}

// SetChannelMember is AddChannelMember on behalf of actorID. An OWNER or
// ADMIN may add anyone with any role. Anyone else may only add a plain
// MEMBER to a public channel, and may not change an existing OWNER or
// ADMIN. Everything else returns ErrForbidden.
func (s *Service) SetChannelMember(ctx context.Context, orgID, actorID, channelID, userID uuid.UUID, role models.MemberRole) (*models.ChannelMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, invalid("unknown member role %q", role)
	}
	ch, err := s.store.Channels.GetByID(ctx, orgID, channelID)
	if err != nil {
		return nil, storeErr("set channel member", err)
	}
	manager, err := s.isChannelManager(ctx, channelID, actorID)
	if err != nil {
		return nil, err
	}
	if !manager {
		if ch.Type == models.ChannelPrivate || role != models.RoleMember {
			return nil, fmt.Errorf("set channel member: %w", ErrForbidden)
		}
		current, err := s.store.Members.GetMember(ctx, channelID, userID)
		switch {
		case err == nil && current.Role != models.RoleMember:
			return nil, fmt.Errorf("set channel member: %w", ErrForbidden)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, storeErr("set channel member", err)
		}
	}
	return s.AddChannelMember(ctx, orgID, channelID, userID, role)
}

// KickChannelMember is RemoveChannelMember on behalf of actorID. Removing
// yourself is always allowed. Removing someone else takes an OWNER or ADMIN.
func (s *Service) KickChannelMember(ctx context.Context, orgID, actorID, channelID, userID uuid.UUID) error {
	if actorID != userID {
		if _, err := s.store.Channels.GetByID(ctx, orgID, channelID); err != nil {
			return storeErr("kick channel member", err)
		}
		manager, err := s.isChannelManager(ctx, channelID, actorID)
		if err != nil {
			return err
		}
		if !manager {
			return fmt.Errorf("kick channel member: %w", ErrForbidden)
		}
	}
	return s.RemoveChannelMember(ctx, orgID, channelID, userID)
}

func (s *Service) isChannelManager(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	m, err := s.store.Members.GetMember(ctx, channelID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	case err != nil:
		return false, storeErr("check channel role", err)
	}
	return m.Role == models.RoleOwner || m.Role == models.RoleAdmin, nil
}

func (s *Service) ListChannelMembers(ctx context.Context, orgID, channelID uuid.UUID) ([]models.ChannelMember, error) {
	if _, err := s.store.Channels.GetByID(ctx, orgID, channelID); err != nil {
		return nil, storeErr("list channel members", err)
	}
	members, err := s.store.Members.ListMembers(ctx, channelID)
	if err != nil {
		return nil, storeErr("list channel members", err)
	}
	return members, nil
}

// MuteChannel silences the channel for the member until the given time.
// A nil until unmutes.
func (s *Service) MuteChannel(ctx context.Context, orgID, channelID, userID uuid.UUID, until *time.Time) error {
	if _, err := s.store.Channels.GetByID(ctx, orgID, channelID); err != nil {
		return storeErr("mute channel", err)
	}
	if err := s.store.Members.SetMutedUntil(ctx, channelID, userID, until); err != nil {
		return storeErr("mute channel", err)
	}
	return nil
}

// GetUserChannels lists the non-archived channels the user can see, each
// annotated with the user's own role and mute state, defaults first.
func (s *Service) GetUserChannels(ctx context.Context, orgID, userID uuid.UUID) ([]models.ChannelSummary, error) {
	channels, err := s.store.Channels.ListForUser(ctx, orgID, userID)
	if err != nil {
		return nil, storeErr("get user channels", err)
	}
	return channels, nil
}
