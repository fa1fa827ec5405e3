package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists feature records in PostgreSQL. Connection
// pooling and concurrency are handled by database/sql.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to PostgreSQL with the given DSN and creates
// the feature table if it does not exist.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("features: empty postgres dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS feature_records (
			entity_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			version     TEXT NOT NULL,
			payload     JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (entity_type, entity_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feature_records_updated ON feature_records(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init feature table: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	if rec.Version == "" {
		rec.Version = FeatureSetVersion
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_records (entity_type, entity_id, version, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, entity_id, version)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, rec.EntityType, rec.EntityID, rec.Version, rec.Payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert feature record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, entityType, entityID, version string) (*Record, error) {
	if version == "" {
		version = FeatureSetVersion
	}
	rec := Record{EntityType: entityType, EntityID: entityID, Version: version}
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, updated_at FROM feature_records
		WHERE entity_type = $1 AND entity_id = $2 AND version = $3
	`, entityType, entityID, version).Scan(&rec.Payload, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feature record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, entityType, entityID, version string) error {
	if version == "" {
		version = FeatureSetVersion
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM feature_records
		WHERE entity_type = $1 AND entity_id = $2 AND version = $3
	`, entityType, entityID, version)
	if err != nil {
		return fmt.Errorf("delete feature record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
