// Package postgres provides a PostgreSQL implementation of
// storage.GrantStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-dev/gatehouse/pkg/storage"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrateOnStart  bool
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
}

// Store is a PostgreSQL-backed grant store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.GrantStore at compile time.
var _ storage.GrantStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, the schema is applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// RolesFor returns the roles granted to principal.
func (s *Store) RolesFor(ctx context.Context, principal string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role FROM role_grants WHERE principal = $1 ORDER BY role
	`, principal)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grant rows: %w", err)
	}
	return roles, nil
}

// Grant records role grants for principal. Existing grants are kept.
func (s *Store) Grant(ctx context.Context, principal string, roles ...string) error {
	for _, role := range roles {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO role_grants (principal, role)
			VALUES ($1, $2)
			ON CONFLICT (principal, role) DO NOTHING
		`, principal, role)
		if err != nil {
			return fmt.Errorf("inserting grant %s/%s: %w", principal, role, err)
		}
	}
	return nil
}

// Revoke removes a role grant for principal.
func (s *Store) Revoke(ctx context.Context, principal, role string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM role_grants WHERE principal = $1 AND role = $2
	`, principal, role)
	if err != nil {
		return fmt.Errorf("deleting grant %s/%s: %w", principal, role, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
