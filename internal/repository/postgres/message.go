package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/db"
	"github.com/lalith-99/brokerchat/internal/models"
	"github.com/lalith-99/brokerchat/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const messageColumns = `id, organization_id, sender_id, channel_id, conversation_id,
	content, content_type, parent_id, thread_count, is_edited, edited_at,
	is_deleted, deleted_at, created_at`

func scanMessage(row pgx.Row, m *models.Message) error {
	var channelID, conversationID *uuid.UUID
	if err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.SenderID,
		&channelID,
		&conversationID,
		&m.Content,
		&m.ContentType,
		&m.ParentID,
		&m.ThreadCount,
		&m.IsEdited,
		&m.EditedAt,
		&m.IsDeleted,
		&m.DeletedAt,
		&m.CreatedAt,
	); err != nil {
		return err
	}
	scope, err := models.ScopeFrom(channelID, conversationID)
	if err != nil {
		return fmt.Errorf("message %d: %w", m.ID, err)
	}
	m.Scope = scope
	return nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *MessageStore) Create(ctx context.Context, in repository.NewMessage) (*models.Message, error) {
	var msg models.Message
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO messages (organization_id, sender_id, channel_id, conversation_id, content, content_type, parent_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING ` + messageColumns
		row := tx.QueryRow(ctx, insert,
			in.OrganizationID,
			in.SenderID,
			in.Scope.ChannelIDPtr(),
			in.Scope.ConversationIDPtr(),
			in.Content,
			in.ContentType,
			in.ParentID,
		)
		if err := scanMessage(row, &msg); err != nil {
			return wrap("insert message", err)
		}

		// Everything that hangs off the new row goes out in one round trip.
		batch := &pgx.Batch{}
		for _, a := range in.Attachments {
			batch.Queue(`
				INSERT INTO message_attachments (message_id, file_name, file_size, file_type, url)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				msg.ID, a.FileName, a.FileSize, a.FileType, a.URL)
		}
		if len(in.MentionIDs) > 0 {
			batch.Queue(`
				INSERT INTO message_mentions (message_id, user_id)
				SELECT $1, unnest($2::uuid[])
				ON CONFLICT DO NOTHING`,
				msg.ID, in.MentionIDs)
		}
		if in.ParentID != nil {
			batch.Queue(`UPDATE messages SET thread_count = thread_count + 1 WHERE id = $1`, *in.ParentID)
		}
		if in.Scope.IsConversation() {
			batch.Queue(`UPDATE conversations SET updated_at = now() WHERE id = $1`, in.Scope.ID())
		}
		if batch.Len() == 0 {
			return nil
		}

		br := tx.SendBatch(ctx, batch)
		for _, a := range in.Attachments {
			a.MessageID = msg.ID
			if err := br.QueryRow().Scan(&a.ID); err != nil {
				br.Close()
				return wrap("insert attachment", err)
			}
			msg.Attachments = append(msg.Attachments, a)
		}
		for i := len(in.Attachments); i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return wrap("message side effects", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return nil, err
	}
	msg.MentionIDs = in.MentionIDs
	return &msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, orgID uuid.UUID, messageID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1 AND organization_id = $2`

	var m models.Message
	if err := scanMessage(s.pool.QueryRow(ctx, query, messageID, orgID), &m); err != nil {
		return nil, wrap("get message", err)
	}

	page := []models.Message{m}
	if err := loadAttachments(ctx, s.pool, page); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT user_id FROM message_mentions WHERE message_id = $1 ORDER BY user_id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	mentions, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan mentions: %w", err)
	}
	page[0].MentionIDs = mentions
	return &page[0], nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, messageID int64, content string, editedAt time.Time) (*models.Message, error) {
	query := `
		UPDATE messages SET content = $2, is_edited = true, edited_at = $3
		WHERE id = $1
		RETURNING ` + messageColumns

	var m models.Message
	if err := scanMessage(s.pool.QueryRow(ctx, query, messageID, content, editedAt), &m); err != nil {
		return nil, wrap("update message", err)
	}
	page := []models.Message{m}
	if err := loadAttachments(ctx, s.pool, page); err != nil {
		return nil, err
	}
	return &page[0], nil
}

func (s *MessageStore) SoftDelete(ctx context.Context, messageID int64, deletedAt time.Time) (*models.Message, error) {
	query := `
		UPDATE messages SET content = $2, is_deleted = true, deleted_at = $3
		WHERE id = $1
		RETURNING ` + messageColumns

	var m models.Message
	if err := scanMessage(s.pool.QueryRow(ctx, query, messageID, models.DeletedContent, deletedAt), &m); err != nil {
		return nil, wrap("delete message", err)
	}
	return &m, nil
}

func scopeColumn(scope models.Scope) string {
	if scope.IsChannel() {
		return "channel_id"
	}
	return "conversation_id"
}

func (s *MessageStore) ListTopLevel(ctx context.Context, scope models.Scope, before *repository.Cursor, limit int) ([]models.Message, error) {
	// Why (created_at, id) < ($2, $3) and not just created_at < $2?
	//   - Messages sent in the same transaction, or by two instances in
	//     the same microsecond, share a created_at. Comparing on time alone
	//     would either repeat them on the next page or skip them.
	//   - id breaks the tie, and the row comparison is one predicate that
	//     idx_messages_*_created (created_at DESC, id DESC) serves directly.
	//   - The ORDER BY uses the same two columns, so the last row of a
	//     page is exactly the cursor of the next one.
	var (
		query string
		args  []any
	)
	col := scopeColumn(scope)
	if before != nil {
		query = `SELECT ` + messageColumns + `
			FROM messages
			WHERE ` + col + ` = $1 AND parent_id IS NULL
				AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`
		args = []any{scope.ID(), before.CreatedAt, before.ID, limit}
	} else {
		query = `SELECT ` + messageColumns + `
			FROM messages
			WHERE ` + col + ` = $1 AND parent_id IS NULL
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		args = []any{scope.ID(), limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	if err := loadAttachments(ctx, s.pool, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MessageStore) ListReplies(ctx context.Context, parentID int64, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE parent_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	if err := loadAttachments(ctx, s.pool, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *MessageStore) Search(ctx context.Context, q repository.SearchQuery) ([]models.Message, error) {
	pattern := "%" + likeEscaper.Replace(q.Text) + "%"

	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE organization_id = $1 AND NOT is_deleted AND content ILIKE $2`
	args := []any{q.OrganizationID, pattern}
	if q.Scope != nil {
		query += ` AND ` + scopeColumn(*q.Scope) + ` = $3`
		args = append(args, q.Scope.ID())
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, q.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return collectMessages(rows)
}

// loadAttachments fills Attachments on every message in page with one query.
func loadAttachments(ctx context.Context, q querier, page []models.Message) error {
	if len(page) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(page))
	at := make(map[int64]int, len(page))
	for i, m := range page {
		ids = append(ids, m.ID)
		at[m.ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT id, message_id, file_name, file_size, file_type, url
		FROM message_attachments
		WHERE message_id = ANY($1)
		ORDER BY message_id, id`, ids)
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileName, &a.FileSize, &a.FileType, &a.URL); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		i := at[a.MessageID]
		page[i].Attachments = append(page[i].Attachments, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attachments: %w", err)
	}
	return nil
}
