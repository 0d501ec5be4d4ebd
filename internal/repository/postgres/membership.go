package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) UpsertMember(ctx context.Context, channelID, userID uuid.UUID, role models.MemberRole) (*models.ChannelMember, error) {
	// Adding an existing member updates the role instead of failing, so
	// "add" and "change role" are the same call.
	query := `
		INSERT INTO channel_members (channel_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING channel_id, user_id, role, muted_until, joined_at`

	var m models.ChannelMember
	err := s.pool.QueryRow(ctx, query, channelID, userID, role).Scan(
		&m.ChannelID, &m.UserID, &m.Role, &m.MutedUntil, &m.JoinedAt)
	if err != nil {
		return nil, wrap("upsert member", err)
	}
	return &m, nil
}

func (s *MembershipStore) RemoveMember(ctx context.Context, channelID, userID uuid.UUID) error {
	query := `
		DELETE FROM channel_members
		WHERE channel_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, channelID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *MembershipStore) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMember, error) {
	query := `
		SELECT channel_id, user_id, role, muted_until, joined_at
		FROM channel_members
		WHERE channel_id = $1 AND user_id = $2`

	var m models.ChannelMember
	err := s.pool.QueryRow(ctx, query, channelID, userID).Scan(
		&m.ChannelID, &m.UserID, &m.Role, &m.MutedUntil, &m.JoinedAt)
	if err != nil {
		return nil, wrap("get member", err)
	}
	return &m, nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMember, error) {
	query := `
		SELECT channel_id, user_id, role, muted_until, joined_at
		FROM channel_members
		WHERE channel_id = $1
		ORDER BY joined_at, user_id`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.ChannelMember, 0)
	for rows.Next() {
		var m models.ChannelMember
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.Role, &m.MutedUntil, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) SetMutedUntil(ctx context.Context, channelID, userID uuid.UUID, until *time.Time) error {
	query := `
		UPDATE channel_members SET muted_until = $3
		WHERE channel_id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, channelID, userID, until)
	if err != nil {
		return fmt.Errorf("set muted until: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set muted until: %w", repository.ErrNotFound)
	}
	return nil
}
