package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/jengzang/runtrack-go/internal/models"
)

// OutboxRepository stores run payloads that still have to reach the runs API
type OutboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db, now: time.Now}
}

// Enqueue stores a payload for later delivery. Enqueueing the same session
// twice replaces the stored payload and resets its retry state.
func (r *OutboxRepository) Enqueue(ctx context.Context, sessionID string, payload *models.RunPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode run payload: %w", err)
	}

	query := `
		INSERT INTO run_outbox (session_id, payload, attempts, last_error, next_attempt_at)
		VALUES (?, ?, 0, '', 0)
		ON CONFLICT(session_id) DO UPDATE SET
			payload = excluded.payload,
			attempts = 0,
			last_error = '',
			next_attempt_at = 0
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID, body); err != nil {
		return fmt.Errorf("failed to enqueue run %s: %w", sessionID, err)
	}
	return nil
}

// Due returns up to limit entries whose retry time has come, oldest first
func (r *OutboxRepository) Due(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	query := `
		SELECT id, session_id, payload, attempts, last_error, next_attempt_at, created_at
		FROM run_outbox
		WHERE next_attempt_at <= ?
		ORDER BY id
		LIMIT ?
	`
	return r.query(ctx, query, r.now().Unix(), limit)
}

// List returns up to limit queued entries regardless of retry time
func (r *OutboxRepository) List(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	query := `
		SELECT id, session_id, payload, attempts, last_error, next_attempt_at, created_at
		FROM run_outbox
		ORDER BY id
		LIMIT ?
	`
	return r.query(ctx, query, limit)
}

func (r *OutboxRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	entries := []models.OutboxEntry{}
	for rows.Next() {
		var e models.OutboxEntry
		if err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&e.Payload,
			&e.Attempts,
			&e.LastError,
			&e.NextAttemptAt,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// MarkSent removes a delivered entry
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM run_outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete outbox entry %d: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one after retryIn
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, cause error, retryIn time.Duration) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	query := `
		UPDATE run_outbox
		SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
		WHERE id = ?
	`
	next := r.now().Add(retryIn).Unix()
	if _, err := r.db.ExecContext(ctx, query, msg, next, id); err != nil {
		return fmt.Errorf("failed to update outbox entry %d: %w", id, err)
	}
	return nil
}

// Count returns the number of queued entries
func (r *OutboxRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
