package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoopHistory discards all writes. Used when Postgres is not configured;
// the live status channel is unaffected.
type NoopHistory struct{}

func (NoopHistory) RecordBatchStarted(ctx context.Context, batch BatchRecord) error { return nil }

func (NoopHistory) RecordBatchFinished(ctx context.Context, batchID uuid.UUID, cancelled bool, completedAt time.Time) error {
	return nil
}

func (NoopHistory) RecordAttempt(ctx context.Context, attempt AttemptRecord) error { return nil }

func (NoopHistory) ListRecentAttempts(ctx context.Context, limit int) ([]AttemptRecord, error) {
	return nil, nil
}
