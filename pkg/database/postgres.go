// Package database owns the Postgres pool backing the suggestion store and
// the schema it expects.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SuggestionsTable is the table Create, ListNear and Count operate on.
const SuggestionsTable = "suggestions"

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS suggestions (
		id VARCHAR(64) PRIMARY KEY,
		lat DOUBLE PRECISION NOT NULL CHECK (lat BETWEEN -90 AND 90),
		lng DOUBLE PRECISION NOT NULL CHECK (lng BETWEEN -180 AND 180),
		properties JSONB NOT NULL DEFAULT '{}'::jsonb,
		api_version VARCHAR(10) NOT NULL,
		ip_hash VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// ListNear filters on a lat/lng bounding box
	`CREATE INDEX IF NOT EXISTS idx_suggestions_lat_lng ON suggestions(lat, lng)`,
	`CREATE INDEX IF NOT EXISTS idx_suggestions_created_at ON suggestions(created_at DESC)`,
}

var teardown = []string{
	`DROP TABLE IF EXISTS suggestions CASCADE`,
}

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Migrate creates the suggestions table and its indexes. The optional
// callback sees each statement after it succeeds.
func Migrate(ctx context.Context, db Execer, applied func(stmt string)) error {
	return execAll(ctx, db, schema, applied)
}

// Drop removes everything Migrate creates.
func Drop(ctx context.Context, db Execer, applied func(stmt string)) error {
	return execAll(ctx, db, teardown, applied)
}

func execAll(ctx context.Context, db Execer, stmts []string, applied func(string)) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", Summarize(stmt), err)
		}
		if applied != nil {
			applied(stmt)
		}
	}
	return nil
}

// Summarize shortens a statement to its first line for logs.
func Summarize(stmt string) string {
	line := strings.TrimSpace(stmt)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return strings.TrimSuffix(line, " (")
}

// PostgresDB owns the pgx connection pool for the suggestion store.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// PoolStats is the slice of pgxpool.Stat reported by the health endpoint.
type PoolStats struct {
	MaxConns      int32 `json:"maxConns"`
	TotalConns    int32 `json:"totalConns"`
	AcquiredConns int32 `json:"acquiredConns"`
	IdleConns     int32 `json:"idleConns"`
}

func (s PoolStats) String() string {
	return fmt.Sprintf("%d/%d connections in use, %d idle", s.AcquiredConns, s.MaxConns, s.IdleConns)
}

// NewPoolConfig parses databaseURL and applies the pool limits the
// suggestion store runs with.
func NewPoolConfig(databaseURL string) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute
	config.ConnConfig.ConnectTimeout = 5 * time.Second
	// poolers in transaction mode reject named prepared statements
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	return config, nil
}

// NewPostgresDB opens a pool, pings it and, when migrate is set, applies the
// schema so a fresh database can take writes immediately.
func NewPostgresDB(ctx context.Context, databaseURL string, migrate bool) (*PostgresDB, error) {
	config, err := NewPoolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if migrate {
		if err := Migrate(ctx, pool, nil); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health pings the database and reports pool usage alongside.
func (db *PostgresDB) Health(ctx context.Context) (PoolStats, error) {
	return db.Stats(), db.Pool.Ping(ctx)
}

// Stats snapshots pool usage.
func (db *PostgresDB) Stats() PoolStats {
	s := db.Pool.Stat()
	return PoolStats{
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
	}
}
