// Package postgres persists watcher state in a Postgres table keyed by watcher name.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and the state row.
type Config struct {
	DSN             string
	Table           string
	Name            string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store reads and writes one state row.
type Store struct {
	pool  pool
	table string
	name  string
}

// New connects to Postgres and ensures the state table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("state.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table, cfg.Name)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table, name string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "watcher_state"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if name == "" {
		return nil, fmt.Errorf("watcher name is required")
	}
	return &Store{pool: p, table: table, name: name}, nil
}

// EnsureSchema creates the state table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name        TEXT PRIMARY KEY,
	seen_ids    BIGINT[] NOT NULL DEFAULT '{}',
	initialized BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Load reads the state row. A missing row is the zero state.
func (s *Store) Load(ctx context.Context) (state.State, error) {
	query := fmt.Sprintf(`SELECT seen_ids, initialized, updated_at FROM %s WHERE name = $1`, s.table)
	var st state.State
	err := s.pool.QueryRow(ctx, query, s.name).Scan(&st.SeenIDs, &st.Initialized, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.State{}, nil
	}
	if err != nil {
		return state.State{}, fmt.Errorf("select state %q: %w", s.name, err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

// Save upserts the state row.
func (s *Store) Save(ctx context.Context, st state.State) error {
	ids := st.SeenIDs
	if ids == nil {
		ids = []int64{}
	}
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (name, seen_ids, initialized, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
	seen_ids = EXCLUDED.seen_ids,
	initialized = EXCLUDED.initialized,
	updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.name, ids, st.Initialized, updated); err != nil {
		return fmt.Errorf("upsert state %q: %w", s.name, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
