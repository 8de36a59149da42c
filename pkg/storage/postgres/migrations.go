package postgres

import (
	"context"
	"fmt"
)

// schema holds the grant table definition. Kept as a single idempotent
// statement; versioned migrations are overkill for one table.
const schema = `
CREATE TABLE IF NOT EXISTS role_grants (
	principal  TEXT NOT NULL,
	role       TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (principal, role)
);

CREATE INDEX IF NOT EXISTS idx_role_grants_principal ON role_grants (principal);
`

// migrate applies the schema.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
