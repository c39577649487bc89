// Package postgres provides the Postgres-backed record sink.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edwarddgao/historium/internal/catalog"
)

// schemaVersion tags every stored record body.
const schemaVersion = "1.0"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for record rows.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store upserts canonical records into Postgres. The target table keys on
// (source_id, original_id); repeated upserts replace the record body and
// refresh the timestamp, so persistence is idempotent.
//
// Expected schema:
//
//	CREATE TABLE artworks (
//	    source_id   TEXT NOT NULL,
//	    original_id TEXT NOT NULL,
//	    record      JSONB NOT NULL,
//	    version     TEXT NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (source_id, original_id)
//	);
type Store struct {
	pool  execCloser
	table string
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "artworks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		pool:  pool,
		table: table,
	}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for testing).
func NewStoreWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "artworks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Upsert writes one record, replacing any existing row with the same
// (source_id, original_id) key.
func (s *Store) Upsert(ctx context.Context, record *catalog.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.Source.ID == "" || record.Source.OriginalID == "" {
		return fmt.Errorf("record key (source id, original id) is required")
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source_id,
	original_id,
	record,
	version,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5
)
ON CONFLICT (source_id, original_id) DO UPDATE SET
	record = EXCLUDED.record,
	version = EXCLUDED.version,
	updated_at = EXCLUDED.updated_at`, s.table)

	args := []any{
		record.Source.ID,
		record.Source.OriginalID,
		body,
		schemaVersion,
		record.LastUpdated,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return catalog.Transient("upsert record", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
