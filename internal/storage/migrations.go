package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the three definition tables.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS device_data_definitions (
			id           TEXT PRIMARY KEY,
			developer_id TEXT NOT NULL,
			product_id   TEXT NOT NULL,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			data_schema  JSONB NOT NULL,
			openable     BOOLEAN NOT NULL DEFAULT false,
			version      INT NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_device_defs_scope
			ON device_data_definitions (developer_id, product_id);

		CREATE INDEX IF NOT EXISTS idx_device_defs_open
			ON device_data_definitions (developer_id) WHERE openable;

		CREATE TABLE IF NOT EXISTS developer_data_definitions (
			id           TEXT PRIMARY KEY,
			developer_id TEXT NOT NULL,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			data_schema  JSONB NOT NULL,
			openable     BOOLEAN NOT NULL DEFAULT false,
			version      INT NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_developer_defs_scope
			ON developer_data_definitions (developer_id);

		CREATE TABLE IF NOT EXISTS platform_data_definitions (
			id              TEXT PRIMARY KEY,
			product_type_id TEXT NOT NULL,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			data_schema     JSONB NOT NULL,
			openable        BOOLEAN NOT NULL DEFAULT false,
			version         INT NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_platform_defs_scope
			ON platform_data_definitions (product_type_id);
	`

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate definition tables: %w", err)
	}
	return nil
}
