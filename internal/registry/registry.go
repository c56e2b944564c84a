package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/dialburst/internal/domain"
	apperrors "github.com/acme/dialburst/pkg/errors"
)

// ErrNotFound indicates the call record was not located (or was evicted).
var ErrNotFound = apperrors.ErrNotFound

// Store keeps CallRecords for the webhook handler to correlate against.
// Implementations evict records a fixed interval after they reach a
// terminal status, so a long-running process does not accumulate them
// without bound.
type Store interface {
	// Create inserts a new record keyed by its local call id.
	Create(ctx context.Context, record *domain.CallRecord) error
	// Get returns the record for a local call id.
	Get(ctx context.Context, callID uuid.UUID) (*domain.CallRecord, error)
	// GetByProviderID returns the record the provider call id is attached to.
	GetByProviderID(ctx context.Context, providerCallID string) (*domain.CallRecord, error)
	// AttachProviderID indexes the record under the provider's call id.
	AttachProviderID(ctx context.Context, callID uuid.UUID, providerCallID string) error
	// UpdateStatus sets the record's status and display message. Moving to
	// a terminal status starts the eviction clock.
	UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus, message string) error
}
