package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/db"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type ConversationStore struct {
	pool *pgxpool.Pool
}

func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

const conversationColumns = `id, organization_id, name, is_group, created_by_id,
	entity_type, entity_id, created_at, updated_at`

func scanConversation(row pgx.Row, c *models.Conversation) error {
	return row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.IsGroup,
		&c.CreatedByID,
		&c.EntityType,
		&c.EntityID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func (s *ConversationStore) GetOrCreateDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Conversation, bool, error) {
	key := repository.DirectKey(orgID, userA, userB)

	var (
		conv    models.Conversation
		created bool
	)
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Why INSERT ... ON CONFLICT instead of SELECT, then INSERT?
		//   - Two agents opening a DM with each other at the same moment
		//     would both see "no row" and both insert. A check-then-create
		//     needs SERIALIZABLE or an explicit lock to be safe.
		//   - dm_key is the sorted pair, so (a, b) and (b, a) land on the
		//     same key. The partial unique index on it makes the loser's
		//     insert wait for the winner's commit and then do nothing.
		//   - RETURNING is empty for the loser, which is the signal to read
		//     the winner's row inside the same transaction.
		//   - Leaving a DM sets dm_key to NULL, and the index skips NULLs,
		//     so the pair can start over later.
		insert := `
			INSERT INTO conversations (organization_id, is_group, created_by_id, dm_key)
			VALUES ($1, false, $2, $3)
			ON CONFLICT (dm_key) WHERE dm_key IS NOT NULL DO NOTHING
			RETURNING ` + conversationColumns
		err := scanConversation(tx.QueryRow(ctx, insert, orgID, userA, key), &conv)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, pgx.ErrNoRows):
			sel := `SELECT ` + conversationColumns + ` FROM conversations WHERE dm_key = $1`
			if err := scanConversation(tx.QueryRow(ctx, sel, key), &conv); err != nil {
				return wrap("select direct conversation", err)
			}
			return nil
		default:
			return wrap("insert direct conversation", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2), ($1, $3)`,
			conv.ID, userA, userB)
		if err != nil {
			return wrap("insert direct participants", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

func (s *ConversationStore) CreateGroup(ctx context.Context, in *models.Conversation, participantIDs []uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO conversations (organization_id, name, is_group, created_by_id, entity_type, entity_id)
			VALUES ($1, $2, true, $3, $4, $5)
			RETURNING ` + conversationColumns
		row := tx.QueryRow(ctx, insert, in.OrganizationID, in.Name, in.CreatedByID, in.EntityType, in.EntityID)
		if err := scanConversation(row, &conv); err != nil {
			return wrap("insert group conversation", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`,
			conv.ID, participantIDs)
		if err != nil {
			return wrap("insert group participants", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationStore) GetByID(ctx context.Context, orgID, conversationID uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND organization_id = $2`

	var c models.Conversation
	if err := scanConversation(s.pool.QueryRow(ctx, query, conversationID, orgID), &c); err != nil {
		return nil, wrap("get conversation", err)
	}
	return &c, nil
}

func (s *ConversationStore) AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET left_at = NULL, joined_at = now()
		WHERE conversation_participants.left_at IS NOT NULL`

	if _, err := s.pool.Exec(ctx, query, conversationID, userID); err != nil {
		return wrap("add participant", err)
	}
	return nil
}

func (s *ConversationStore) Leave(ctx context.Context, conversationID, userID uuid.UUID) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE conversation_participants SET left_at = now()
			WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`,
			conversationID, userID)
		if err != nil {
			return wrap("leave conversation", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("leave conversation: %w", repository.ErrNotFound)
		}

		// A DM with a departed participant no longer counts as the live DM
		// for the pair.
		_, err = tx.Exec(ctx, `
			UPDATE conversations SET dm_key = NULL
			WHERE id = $1 AND NOT is_group`,
			conversationID)
		if err != nil {
			return wrap("release direct key", err)
		}
		return nil
	})
}

func (s *ConversationStore) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, conversationID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return exists, nil
}

func (s *ConversationStore) ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.organization_id, c.name, c.is_group, c.created_by_id,
			c.entity_type, c.entity_id, c.created_at, c.updated_at,
			ARRAY(
				SELECT p2.user_id FROM conversation_participants p2
				WHERE p2.conversation_id = c.id AND p2.left_at IS NULL
				ORDER BY p2.joined_at, p2.user_id
			),
			(
				SELECT count(*) FROM messages m
				WHERE m.conversation_id = c.id
					AND m.sender_id <> $2
					AND NOT m.is_deleted
					AND NOT EXISTS (
						SELECT 1 FROM message_reads r
						WHERE r.message_id = m.id AND r.user_id = $2
					)
			)
		FROM conversations c
		JOIN conversation_participants p
			ON p.conversation_id = c.id AND p.user_id = $2 AND p.left_at IS NULL
		WHERE c.organization_id = $1
		ORDER BY c.updated_at DESC, c.id`

	rows, err := s.pool.Query(ctx, query, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var cs models.ConversationSummary
		if err := rows.Scan(
			&cs.ID,
			&cs.OrganizationID,
			&cs.Name,
			&cs.IsGroup,
			&cs.CreatedByID,
			&cs.EntityType,
			&cs.EntityID,
			&cs.CreatedAt,
			&cs.UpdatedAt,
			&cs.ParticipantIDs,
			&cs.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		index[cs.ID] = len(summaries)
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	if len(summaries) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, 0, len(summaries))
	for _, cs := range summaries {
		ids = append(ids, cs.ID)
	}
	last, err := s.lastMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range last {
		if at, ok := index[last[i].Scope.ID()]; ok {
			summaries[at].LastMessage = &last[i]
		}
	}
	return summaries, nil
}

// lastMessages returns the newest top-level message of each conversation.
func (s *ConversationStore) lastMessages(ctx context.Context, conversationIDs []uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT DISTINCT ON (conversation_id) ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ANY($1) AND parent_id IS NULL
		ORDER BY conversation_id, created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("last messages: %w", err)
	}
	return collectMessages(rows)
}
