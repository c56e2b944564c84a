package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/acme/dialburst/pkg/errors"
)

// ErrNotFound indicates the entity was not located.
var ErrNotFound = apperrors.ErrNotFound

// BatchRecord is the audit row for one accepted batch.
type BatchRecord struct {
	ID             uuid.UUID  `db:"id"`
	SessionToken   string     `db:"session_token"`
	Mode           string     `db:"mode"`
	Destinations   int        `db:"destinations"`
	RequestedCalls int        `db:"requested_calls"`
	StartedAt      time.Time  `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	Cancelled      bool       `db:"cancelled"`
}

// AttemptRecord is the audit row for one call attempt outcome.
type AttemptRecord struct {
	CallID         uuid.UUID `db:"call_id"`
	BatchID        uuid.UUID `db:"batch_id"`
	Destination    string    `db:"destination"`
	ProviderCallID string    `db:"provider_call_id"`
	Status         string    `db:"status"`
	Message        string    `db:"message"`
	OccurredAt     time.Time `db:"occurred_at"`
}

// HistoryRepository persists the batch and call-attempt audit log.
type HistoryRepository interface {
	RecordBatchStarted(ctx context.Context, batch BatchRecord) error
	RecordBatchFinished(ctx context.Context, batchID uuid.UUID, cancelled bool, completedAt time.Time) error
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListRecentAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
}
