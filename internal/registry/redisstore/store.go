package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/acme/dialburst/internal/domain"
	"github.com/acme/dialburst/internal/registry"
)

// liveTTL bounds records that never reach a terminal status, e.g. when the
// provider stops sending webhooks for a call.
const liveTTL = 24 * time.Hour

// Store keeps call records in Redis, relying on key TTLs for eviction.
type Store struct {
	client      *redis.Client
	terminalTTL time.Duration
}

// NewStore creates a Redis-backed store.
func NewStore(client *redis.Client, terminalTTL time.Duration) *Store {
	if terminalTTL <= 0 {
		terminalTTL = time.Hour
	}
	return &Store{client: client, terminalTTL: terminalTTL}
}

func recordKey(callID uuid.UUID) string {
	return "dialburst:call:" + callID.String()
}

func providerKey(providerCallID string) string {
	return "dialburst:provider:" + providerCallID
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, record *domain.CallRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("registry: marshal record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, recordKey(record.CallID), value, liveTTL).Result()
	if err != nil {
		return fmt.Errorf("registry: create: %w", err)
	}
	if !ok {
		return fmt.Errorf("registry: duplicate call id %s", record.CallID)
	}
	return nil
}

// Get returns the record for a local call id.
func (s *Store) Get(ctx context.Context, callID uuid.UUID) (*domain.CallRecord, error) {
	return s.fetch(ctx, recordKey(callID))
}

// GetByProviderID resolves the provider index then fetches the record.
func (s *Store) GetByProviderID(ctx context.Context, providerCallID string) (*domain.CallRecord, error) {
	id, err := s.client.Get(ctx, providerKey(providerCallID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("registry: provider lookup: %w", err)
	}
	callID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("registry: corrupt provider index: %w", err)
	}
	return s.Get(ctx, callID)
}

// AttachProviderID stores the provider index and updates the record.
func (s *Store) AttachProviderID(ctx context.Context, callID uuid.UUID, providerCallID string) error {
	record, err := s.Get(ctx, callID)
	if err != nil {
		return err
	}
	record.ProviderCallID = providerCallID
	record.UpdatedAt = time.Now().UTC()
	if err := s.save(ctx, record, liveTTL); err != nil {
		return err
	}
	if err := s.client.Set(ctx, providerKey(providerCallID), callID.String(), liveTTL).Err(); err != nil {
		return fmt.Errorf("registry: set provider index: %w", err)
	}
	return nil
}

// UpdateStatus mutates the record; terminal statuses shorten the TTL so the
// record (and its provider index) age out.
func (s *Store) UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus, message string) error {
	record, err := s.Get(ctx, callID)
	if err != nil {
		return err
	}
	record.Status = status
	record.Message = message
	record.UpdatedAt = time.Now().UTC()

	ttl := liveTTL
	if status.Terminal() {
		ttl = s.terminalTTL
	}
	if err := s.save(ctx, record, ttl); err != nil {
		return err
	}
	if record.ProviderCallID != "" {
		if err := s.client.Expire(ctx, providerKey(record.ProviderCallID), ttl).Err(); err != nil {
			return fmt.Errorf("registry: expire provider index: %w", err)
		}
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, key string) (*domain.CallRecord, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("registry: get: %w", err)
	}
	record := new(domain.CallRecord)
	if err := json.Unmarshal(value, record); err != nil {
		return nil, fmt.Errorf("registry: unmarshal record: %w", err)
	}
	return record, nil
}

func (s *Store) save(ctx context.Context, record *domain.CallRecord, ttl time.Duration) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("registry: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(record.CallID), value, ttl).Err(); err != nil {
		return fmt.Errorf("registry: save: %w", err)
	}
	return nil
}
