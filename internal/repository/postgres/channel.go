package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/db"
	"github.com/lalith-99/brokerchat/internal/models"
)

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

const channelColumns = `id, organization_id, name, slug, description, channel_type,
	is_default, is_archived, created_by_id, created_at, updated_at`

func scanChannel(row pgx.Row, ch *models.Channel) error {
	return row.Scan(
		&ch.ID,
		&ch.OrganizationID,
		&ch.Name,
		&ch.Slug,
		&ch.Description,
		&ch.Type,
		&ch.IsDefault,
		&ch.IsArchived,
		&ch.CreatedByID,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
}

func (s *ChannelStore) CreateWithOwner(ctx context.Context, in *models.Channel) (*models.Channel, error) {
	var ch models.Channel
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO channels (organization_id, name, slug, description, channel_type, is_default, created_by_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING ` + channelColumns
		row := tx.QueryRow(ctx, query,
			in.OrganizationID, in.Name, in.Slug, in.Description, in.Type, in.IsDefault, in.CreatedByID)
		if err := scanChannel(row, &ch); err != nil {
			return wrap("insert channel", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO channel_members (channel_id, user_id, role)
			VALUES ($1, $2, $3)`,
			ch.ID, ch.CreatedByID, models.RoleOwner)
		if err != nil {
			return wrap("insert owner", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, orgID, channelID uuid.UUID) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + `
		FROM channels
		WHERE id = $1 AND organization_id = $2`

	var ch models.Channel
	if err := scanChannel(s.pool.QueryRow(ctx, query, channelID, orgID), &ch); err != nil {
		return nil, wrap("get channel", err)
	}
	return &ch, nil
}

func (s *ChannelStore) Update(ctx context.Context, in *models.Channel) (*models.Channel, error) {
	query := `
		UPDATE channels
		SET name = $3, description = $4, is_archived = $5, updated_at = now()
		WHERE id = $1 AND organization_id = $2
		RETURNING ` + channelColumns

	var ch models.Channel
	row := s.pool.QueryRow(ctx, query, in.ID, in.OrganizationID, in.Name, in.Description, in.IsArchived)
	if err := scanChannel(row, &ch); err != nil {
		return nil, wrap("update channel", err)
	}
	return &ch, nil
}

func (s *ChannelStore) ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]models.ChannelSummary, error) {
	// LEFT JOIN on the caller's own membership: public channels they never
	// joined come back with a NULL role.
	query := `
		SELECT c.id, c.organization_id, c.name, c.slug, c.description, c.channel_type,
			c.is_default, c.is_archived, c.created_by_id, c.created_at, c.updated_at,
			m.role, m.muted_until,
			(SELECT count(*) FROM messages msg WHERE msg.channel_id = c.id)
		FROM channels c
		LEFT JOIN channel_members m ON m.channel_id = c.id AND m.user_id = $2
		WHERE c.organization_id = $1
			AND NOT c.is_archived
			AND (c.channel_type = 'PUBLIC' OR m.user_id IS NOT NULL)
		ORDER BY c.is_default DESC, c.name ASC`

	rows, err := s.pool.Query(ctx, query, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.ChannelSummary, 0)
	for rows.Next() {
		var cs models.ChannelSummary
		if err := rows.Scan(
			&cs.ID,
			&cs.OrganizationID,
			&cs.Name,
			&cs.Slug,
			&cs.Description,
			&cs.Type,
			&cs.IsDefault,
			&cs.IsArchived,
			&cs.CreatedByID,
			&cs.CreatedAt,
			&cs.UpdatedAt,
			&cs.MyRole,
			&cs.MutedUntil,
			&cs.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}
