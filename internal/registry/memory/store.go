package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/dialburst/internal/domain"
	"github.com/acme/dialburst/internal/registry"
)

type entry struct {
	record    domain.CallRecord
	expiresAt time.Time // zero until terminal
}

// Store is an in-memory call record store with time-based eviction of
// terminal records.
type Store struct {
	terminalTTL time.Duration
	now         func() time.Time

	mu         sync.Mutex
	records    map[uuid.UUID]*entry
	byProvider map[string]uuid.UUID
}

// NewStore creates a store evicting terminal records after terminalTTL.
func NewStore(terminalTTL time.Duration) *Store {
	if terminalTTL <= 0 {
		terminalTTL = time.Hour
	}
	return &Store{
		terminalTTL: terminalTTL,
		now:         time.Now,
		records:     make(map[uuid.UUID]*entry),
		byProvider:  make(map[string]uuid.UUID),
	}
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, record *domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	if _, exists := s.records[record.CallID]; exists {
		return fmt.Errorf("registry: duplicate call id %s", record.CallID)
	}
	s.records[record.CallID] = &entry{record: *record}
	return nil
}

// Get returns a copy of the record for a local call id.
func (s *Store) Get(ctx context.Context, callID uuid.UUID) (*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[callID]
	if !ok || s.expiredLocked(e) {
		return nil, registry.ErrNotFound
	}
	record := e.record
	return &record, nil
}

// GetByProviderID returns a copy of the record for a provider call id.
func (s *Store) GetByProviderID(ctx context.Context, providerCallID string) (*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	callID, ok := s.byProvider[providerCallID]
	if !ok {
		return nil, registry.ErrNotFound
	}
	e, ok := s.records[callID]
	if !ok || s.expiredLocked(e) {
		return nil, registry.ErrNotFound
	}
	record := e.record
	return &record, nil
}

// AttachProviderID indexes the record under the provider call id.
func (s *Store) AttachProviderID(ctx context.Context, callID uuid.UUID, providerCallID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[callID]
	if !ok || s.expiredLocked(e) {
		return registry.ErrNotFound
	}
	e.record.ProviderCallID = providerCallID
	e.record.UpdatedAt = s.now().UTC()
	s.byProvider[providerCallID] = callID
	return nil
}

// UpdateStatus mutates the record, arming eviction on terminal statuses.
func (s *Store) UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[callID]
	if !ok || s.expiredLocked(e) {
		return registry.ErrNotFound
	}
	e.record.Status = status
	e.record.Message = message
	e.record.UpdatedAt = s.now().UTC()
	if status.Terminal() {
		e.expiresAt = s.now().Add(s.terminalTTL)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

func (s *Store) expiredLocked(e *entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// purgeLocked drops expired terminal records. Called on writes so the map
// stays bounded without a background goroutine.
func (s *Store) purgeLocked() {
	for id, e := range s.records {
		if s.expiredLocked(e) {
			if e.record.ProviderCallID != "" {
				delete(s.byProvider, e.record.ProviderCallID)
			}
			delete(s.records, id)
		}
	}
}
