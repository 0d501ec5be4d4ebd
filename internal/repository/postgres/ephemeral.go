package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/brokerchat/internal/models"
)

type TypingStore struct {
	pool *pgxpool.Pool
}

func NewTypingStore(pool *pgxpool.Pool) *TypingStore {
	return &TypingStore{pool: pool}
}

func (s *TypingStore) Upsert(ctx context.Context, scope models.Scope, userID uuid.UUID, expiresAt time.Time) error {
	query := `
		INSERT INTO typing_indicators (scope_kind, scope_id, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope_kind, scope_id, user_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`

	if _, err := s.pool.Exec(ctx, query, scope.Kind().String(), scope.ID(), userID, expiresAt); err != nil {
		return fmt.Errorf("upsert typing: %w", err)
	}
	return nil
}

func (s *TypingStore) Delete(ctx context.Context, scope models.Scope, userID uuid.UUID) error {
	query := `
		DELETE FROM typing_indicators
		WHERE scope_kind = $1 AND scope_id = $2 AND user_id = $3`

	if _, err := s.pool.Exec(ctx, query, scope.Kind().String(), scope.ID(), userID); err != nil {
		return fmt.Errorf("delete typing: %w", err)
	}
	return nil
}

func (s *TypingStore) ListActive(ctx context.Context, scope models.Scope, now time.Time) ([]models.TypingIndicator, error) {
	query := `
		SELECT user_id, expires_at FROM typing_indicators
		WHERE scope_kind = $1 AND scope_id = $2 AND expires_at > $3
		ORDER BY user_id`

	rows, err := s.pool.Query(ctx, query, scope.Kind().String(), scope.ID(), now)
	if err != nil {
		return nil, fmt.Errorf("list typing: %w", err)
	}
	defer rows.Close()

	out := make([]models.TypingIndicator, 0)
	for rows.Next() {
		t := models.TypingIndicator{Scope: scope}
		if err := rows.Scan(&t.UserID, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan typing: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate typing: %w", err)
	}
	return out, nil
}

func (s *TypingStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM typing_indicators WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge typing: %w", err)
	}
	return tag.RowsAffected(), nil
}

type PresenceStore struct {
	pool *pgxpool.Pool
}

func NewPresenceStore(pool *pgxpool.Pool) *PresenceStore {
	return &PresenceStore{pool: pool}
}

func (s *PresenceStore) Upsert(ctx context.Context, p models.UserPresence) (*models.UserPresence, error) {
	query := `
		INSERT INTO user_presence (user_id, status, status_message, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			status_message = EXCLUDED.status_message,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING user_id, status, status_message, last_seen_at`

	var out models.UserPresence
	err := s.pool.QueryRow(ctx, query, p.UserID, p.Status, p.StatusMessage, p.LastSeenAt).Scan(
		&out.UserID, &out.Status, &out.StatusMessage, &out.LastSeenAt)
	if err != nil {
		return nil, wrap("upsert presence", err)
	}
	return &out, nil
}

func (s *PresenceStore) TouchLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE user_presence SET last_seen_at = $2 WHERE user_id = $1`, userID, at); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

// MarkConnected runs when a socket opens. Why not Upsert? The user may
// have set BUSY or AWAY with a message by hand, and a new tab must not
// overwrite that. Only OFFLINE, the state a closed socket leaves behind,
// flips back to ONLINE. Doing it in one statement keeps two tabs opening
// at once from racing a read against a write.
func (s *PresenceStore) MarkConnected(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `
		INSERT INTO user_presence (user_id, status, last_seen_at)
		VALUES ($1, 'ONLINE', $2)
		ON CONFLICT (user_id) DO UPDATE SET
			status = CASE WHEN user_presence.status = 'OFFLINE' THEN 'ONLINE' ELSE user_presence.status END,
			last_seen_at = EXCLUDED.last_seen_at`

	if _, err := s.pool.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("mark connected: %w", err)
	}
	return nil
}

func (s *PresenceStore) MarkDisconnected(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE user_presence SET status = 'OFFLINE', last_seen_at = $2 WHERE user_id = $1`
	if _, err := s.pool.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("mark disconnected: %w", err)
	}
	return nil
}

func (s *PresenceStore) ListOnline(ctx context.Context, userIDs []uuid.UUID, since time.Time) ([]models.UserPresence, error) {
	query := `
		SELECT user_id, status, status_message, last_seen_at
		FROM user_presence
		WHERE user_id = ANY($1) AND status <> 'OFFLINE' AND last_seen_at >= $2
		ORDER BY user_id`

	rows, err := s.pool.Query(ctx, query, userIDs, since)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	defer rows.Close()

	out := make([]models.UserPresence, 0)
	for rows.Next() {
		var p models.UserPresence
		if err := rows.Scan(&p.UserID, &p.Status, &p.StatusMessage, &p.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence: %w", err)
	}
	return out, nil
}
