package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/models"
)

type ReactionStore struct {
	pool *pgxpool.Pool
}

func NewReactionStore(pool *pgxpool.Pool) *ReactionStore {
	return &ReactionStore{pool: pool}
}

func (s *ReactionStore) Add(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) error {
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, messageID, userID, emoji); err != nil {
		return wrap("add reaction", err)
	}
	return nil
}

func (s *ReactionStore) Remove(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) error {
	query := `
		DELETE FROM message_reactions
		WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

	if _, err := s.pool.Exec(ctx, query, messageID, userID, emoji); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}

func (s *ReactionStore) List(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at, user_id`

	rows, err := s.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]models.Reaction, 0)
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}

type ReadStore struct {
	pool *pgxpool.Pool
}

func NewReadStore(pool *pgxpool.Pool) *ReadStore {
	return &ReadStore{pool: pool}
}

func (s *ReadStore) MarkRead(ctx context.Context, orgID uuid.UUID, messageIDs []int64, userID uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	// Receipts are insert-only; a repeated id is skipped, never updated.
	// Selecting through messages drops ids that do not exist or belong to
	// another organization instead of failing the whole batch on the
	// foreign key.
	query := `
		INSERT INTO message_reads (message_id, user_id)
		SELECT id, $3 FROM messages WHERE id = ANY($1) AND organization_id = $2
		ON CONFLICT (message_id, user_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, messageIDs, orgID, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *ReadStore) MarkScopeRead(ctx context.Context, scope models.Scope, userID uuid.UUID) error {
	query := `
		INSERT INTO message_reads (message_id, user_id)
		SELECT id, $2 FROM messages
		WHERE ` + scopeColumn(scope) + ` = $1 AND sender_id <> $2
		ON CONFLICT (message_id, user_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, scope.ID(), userID); err != nil {
		return fmt.Errorf("mark scope read: %w", err)
	}
	return nil
}

func (s *ReadStore) UnreadCount(ctx context.Context, scope models.Scope, userID uuid.UUID) (int, error) {
	query := `
		SELECT count(*) FROM messages m
		WHERE m.` + scopeColumn(scope) + ` = $1
			AND m.sender_id <> $2
			AND NOT m.is_deleted
			AND NOT EXISTS (
				SELECT 1 FROM message_reads r
				WHERE r.message_id = m.id AND r.user_id = $2
			)`

	var n int
	if err := s.pool.QueryRow(ctx, query, scope.ID(), userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}
