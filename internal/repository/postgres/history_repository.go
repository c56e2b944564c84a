package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/dialburst/internal/repository"
)

// HistoryRepository implements repository.HistoryRepository on Postgres.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository builds the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureSchema creates the audit tables if they do not exist.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS call_batches (
			id UUID PRIMARY KEY,
			session_token TEXT NOT NULL,
			mode TEXT NOT NULL,
			destinations INT NOT NULL,
			requested_calls INT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			cancelled BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS call_attempts (
			call_id UUID NOT NULL,
			batch_id UUID NOT NULL,
			destination TEXT NOT NULL,
			provider_call_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS call_attempts_occurred_at_idx
			ON call_attempts (occurred_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: ensure schema: %w", err)
		}
	}
	return nil
}

// RecordBatchStarted inserts the batch row.
func (r *HistoryRepository) RecordBatchStarted(ctx context.Context, batch repository.BatchRecord) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO call_batches
		(id, session_token, mode, destinations, requested_calls, started_at, cancelled)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		batch.ID, batch.SessionToken, batch.Mode, batch.Destinations, batch.RequestedCalls, batch.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record batch: %w", err)
	}
	return nil
}

// RecordBatchFinished closes out the batch row.
func (r *HistoryRepository) RecordBatchFinished(ctx context.Context, batchID uuid.UUID, cancelled bool, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE call_batches SET completed_at = $2, cancelled = $3 WHERE id = $1`,
		batchID, completedAt, cancelled,
	)
	if err != nil {
		return fmt.Errorf("history: finish batch: %w", err)
	}
	return nil
}

// RecordAttempt appends one attempt outcome row.
func (r *HistoryRepository) RecordAttempt(ctx context.Context, attempt repository.AttemptRecord) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO call_attempts
		(call_id, batch_id, destination, provider_call_id, status, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.CallID, attempt.BatchID, attempt.Destination, attempt.ProviderCallID,
		attempt.Status, attempt.Message, attempt.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("history: record attempt: %w", err)
	}
	return nil
}

// ListRecentAttempts returns the most recent attempt rows.
func (r *HistoryRepository) ListRecentAttempts(ctx context.Context, limit int) ([]repository.AttemptRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []repository.AttemptRecord
	err := r.db.SelectContext(ctx, &rows, `SELECT call_id, batch_id, destination, provider_call_id, status, message, occurred_at
		FROM call_attempts ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list attempts: %w", err)
	}
	return rows, nil
}
