package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists feature records in SQLite.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenSQLite creates a SQLiteStore at the given path, creating the
// table if it does not exist. Uses WAL mode for file-based databases.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so all pooled connections see the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS feature_records (
			entity_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			version     TEXT NOT NULL,
			payload     BLOB NOT NULL,
			updated_at  TIMESTAMP NOT NULL,
			PRIMARY KEY (entity_type, entity_id, version)
		)
	`)
	return err
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	if rec.Version == "" {
		rec.Version = FeatureSetVersion
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_records (entity_type, entity_id, version, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id, version)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, rec.EntityType, rec.EntityID, rec.Version, rec.Payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert feature record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, entityType, entityID, version string) (*Record, error) {
	if version == "" {
		version = FeatureSetVersion
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := Record{EntityType: entityType, EntityID: entityID, Version: version}
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, updated_at FROM feature_records
		WHERE entity_type = ? AND entity_id = ? AND version = ?
	`, entityType, entityID, version).Scan(&rec.Payload, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feature record: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, entityType, entityID, version string) error {
	if version == "" {
		version = FeatureSetVersion
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM feature_records
		WHERE entity_type = ? AND entity_id = ? AND version = ?
	`, entityType, entityID, version)
	if err != nil {
		return fmt.Errorf("delete feature record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
