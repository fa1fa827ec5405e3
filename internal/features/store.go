package features

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("features: record not found")

// Store persists feature records. Upsert is last-write-wins: storing a
// record for an existing (entity_type, entity_id, version) key replaces
// the previous payload unconditionally.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, entityType, entityID, version string) (*Record, error)
	Delete(ctx context.Context, entityType, entityID, version string) error
	Close() error
}

type memKey struct {
	entityType string
	entityID   string
	version    string
}

// MemoryStore is an in-process Store used as a cache and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[memKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[memKey]Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	if rec.Version == "" {
		rec.Version = FeatureSetVersion
	}
	rec.UpdatedAt = time.Now().UTC()
	payload := make([]byte, len(rec.Payload))
	copy(payload, rec.Payload)
	rec.Payload = payload

	s.mu.Lock()
	s.recs[memKey{rec.EntityType, rec.EntityID, rec.Version}] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, entityType, entityID, version string) (*Record, error) {
	if version == "" {
		version = FeatureSetVersion
	}
	s.mu.RLock()
	rec, ok := s.recs[memKey{entityType, entityID, version}]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	out.Payload = make([]byte, len(rec.Payload))
	copy(out.Payload, rec.Payload)
	return &out, nil
}

func (s *MemoryStore) Delete(_ context.Context, entityType, entityID, version string) error {
	if version == "" {
		version = FeatureSetVersion
	}
	s.mu.Lock()
	delete(s.recs, memKey{entityType, entityID, version})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}
