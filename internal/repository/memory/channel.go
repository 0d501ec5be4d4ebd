package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type channelStore struct{ *state }

func (s *channelStore) CreateWithOwner(_ context.Context, in *models.Channel) (*models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.channels {
		if ch.OrganizationID == in.OrganizationID && ch.Slug == in.Slug {
			return nil, fmt.Errorf("insert channel: slug %q: %w", in.Slug, repository.ErrConflict)
		}
	}

	now := s.clock()
	ch := *in
	ch.ID = uuid.New()
	ch.IsArchived = false
	ch.CreatedAt = now
	ch.UpdatedAt = now
	s.channels[ch.ID] = &ch
	s.members[memberKey{ch.ID, ch.CreatedByID}] = &models.ChannelMember{
		ChannelID: ch.ID,
		UserID:    ch.CreatedByID,
		Role:      models.RoleOwner,
		JoinedAt:  now,
	}
	out := ch
	return &out, nil
}

func (s *channelStore) GetByID(_ context.Context, orgID, channelID uuid.UUID) (*models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok || ch.OrganizationID != orgID {
		return nil, fmt.Errorf("get channel: %w", repository.ErrNotFound)
	}
	out := *ch
	return &out, nil
}

func (s *channelStore) Update(_ context.Context, in *models.Channel) (*models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[in.ID]
	if !ok || ch.OrganizationID != in.OrganizationID {
		return nil, fmt.Errorf("update channel: %w", repository.ErrNotFound)
	}
	ch.Name = in.Name
	ch.Description = in.Description
	ch.IsArchived = in.IsArchived
	ch.UpdatedAt = s.clock()
	out := *ch
	return &out, nil
}

func (s *channelStore) ListForUser(_ context.Context, orgID, userID uuid.UUID) ([]models.ChannelSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[uuid.UUID]int)
	for _, m := range s.messages {
		if m.Scope.IsChannel() {
			counts[m.Scope.ID()]++
		}
	}

	out := make([]models.ChannelSummary, 0)
	for _, ch := range s.channels {
		if ch.OrganizationID != orgID || ch.IsArchived {
			continue
		}
		member, isMember := s.members[memberKey{ch.ID, userID}]
		if ch.Type != models.ChannelPublic && !isMember {
			continue
		}
		cs := models.ChannelSummary{Channel: *ch, MessageCount: counts[ch.ID]}
		if isMember {
			cs.MyRole = ptr(member.Role)
			if member.MutedUntil != nil {
				cs.MutedUntil = ptr(*member.MutedUntil)
			}
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type membershipStore struct{ *state }

func (s *membershipStore) UpsertMember(_ context.Context, channelID, userID uuid.UUID, role models.MemberRole) (*models.ChannelMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[channelID]; !ok {
		return nil, fmt.Errorf("upsert member: channel: %w", repository.ErrNotFound)
	}
	key := memberKey{channelID, userID}
	m, ok := s.members[key]
	if !ok {
		m = &models.ChannelMember{ChannelID: channelID, UserID: userID, JoinedAt: s.clock()}
		s.members[key] = m
	}
	m.Role = role
	out := *m
	return &out, nil
}

func (s *membershipStore) RemoveMember(_ context.Context, channelID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members, memberKey{channelID, userID})
	return nil
}

func (s *membershipStore) GetMember(_ context.Context, channelID, userID uuid.UUID) (*models.ChannelMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{channelID, userID}]
	if !ok {
		return nil, fmt.Errorf("get member: %w", repository.ErrNotFound)
	}
	out := *m
	return &out, nil
}

func (s *membershipStore) ListMembers(_ context.Context, channelID uuid.UUID) ([]models.ChannelMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ChannelMember, 0)
	for key, m := range s.members {
		if key.channelID == channelID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

func (s *membershipStore) SetMutedUntil(_ context.Context, channelID, userID uuid.UUID, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey{channelID, userID}]
	if !ok {
		return fmt.Errorf("set muted until: %w", repository.ErrNotFound)
	}
	if until == nil {
		m.MutedUntil = nil
	} else {
		m.MutedUntil = ptr(*until)
	}
	return nil
}
