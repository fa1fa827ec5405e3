package features

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMemoryStoreUpsertLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := Record{EntityType: EntityEvent, EntityID: "e1", Payload: []byte(`{"v":1}`)}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := Record{EntityType: EntityEvent, EntityID: "e1", Payload: []byte(`{"v":2}`)}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, EntityEvent, "e1", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Payload) != `{"v":2}` {
		t.Errorf("expected last write to win, got %s", got.Payload)
	}
	if got.Version != FeatureSetVersion {
		t.Errorf("expected default version %q, got %q", FeatureSetVersion, got.Version)
	}
	if s.Len() != 1 {
		t.Errorf("upsert must replace, not duplicate: %d records", s.Len())
	}
}

func TestMemoryStoreKeying(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	recs := []Record{
		{EntityType: EntityEvent, EntityID: "x", Payload: []byte("a")},
		{EntityType: EntityUser, EntityID: "x", Payload: []byte("b")},
		{EntityType: EntityEvent, EntityID: "x", Version: "v2", Payload: []byte("c")},
	}
	for _, r := range recs {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("distinct (type, id, version) keys must not collide: %d records", s.Len())
	}

	got, err := s.Get(ctx, EntityEvent, "x", "v2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Payload) != "c" {
		t.Errorf("wrong record for versioned key: %s", got.Payload)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), EntityQuery, "missing", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := Record{EntityType: EntityUser, EntityID: "u1", Payload: []byte("{}")}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete(ctx, EntityUser, "u1", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, EntityUser, "u1", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStorePayloadIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	payload := []byte(`{"v":1}`)
	if err := s.Upsert(ctx, Record{EntityType: EntityEvent, EntityID: "e", Payload: payload}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	payload[2] = 'x' // caller mutation must not leak into the store

	got, err := s.Get(ctx, EntityEvent, "e", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Payload) != `{"v":1}` {
		t.Errorf("stored payload was mutated: %s", got.Payload)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	ef := EventFeatures{EventID: "e1", Sector: "Energy", ImpactScore: 0.8, SourceCount: 3}
	payload, _ := json.Marshal(ef)

	if err := s.Upsert(ctx, Record{EntityType: EntityEvent, EntityID: "e1", Payload: payload}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Overwrite with new features.
	ef.ImpactScore = 0.9
	payload, _ = json.Marshal(ef)
	if err := s.Upsert(ctx, Record{EntityType: EntityEvent, EntityID: "e1", Payload: payload}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.Get(ctx, EntityEvent, "e1", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var decoded EventFeatures
	if err := json.Unmarshal(got.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.ImpactScore != 0.9 {
		t.Errorf("expected last write to win, got impact %v", decoded.ImpactScore)
	}

	if _, err := s.Get(ctx, EntityEvent, "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
