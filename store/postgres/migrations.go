package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS vesting_schedules (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL DEFAULT '',
		duration_months  INTEGER NOT NULL,
		frequency_months INTEGER NOT NULL,
		cliff_months     INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS vesting_grants (
		id            TEXT PRIMARY KEY,
		holder_id     TEXT NOT NULL,
		schedule_id   TEXT REFERENCES vesting_schedules(id),
		trigger_kind  TEXT NOT NULL,
		granted       BIGINT NOT NULL,
		vested        BIGINT NOT NULL DEFAULT 0,
		unvested      BIGINT NOT NULL DEFAULT 0,
		exercised     BIGINT NOT NULL DEFAULT 0,
		forfeited     BIGINT NOT NULL DEFAULT 0,
		period_start  TIMESTAMPTZ NOT NULL,
		period_end    TIMESTAMPTZ NOT NULL,
		metadata      JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_vesting_grants_holder
		ON vesting_grants (holder_id)`,

	`CREATE TABLE IF NOT EXISTS vesting_events (
		id            TEXT PRIMARY KEY,
		grant_id      TEXT NOT NULL REFERENCES vesting_grants(id),
		vest_date     TIMESTAMPTZ NOT NULL,
		shares        BIGINT NOT NULL,
		status        TEXT NOT NULL,
		cancel_reason TEXT NOT NULL DEFAULT '',
		processed_at  TIMESTAMPTZ,
		cancelled_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_vesting_events_due
		ON vesting_events (grant_id, status, vest_date)`,

	`CREATE TABLE IF NOT EXISTS vesting_transactions (
		id             TEXT PRIMARY KEY,
		grant_id       TEXT NOT NULL REFERENCES vesting_grants(id),
		event_id       TEXT NOT NULL,
		payment_id     TEXT,
		kind           TEXT NOT NULL,
		shares         BIGINT NOT NULL,
		snap_granted   BIGINT NOT NULL,
		snap_vested    BIGINT NOT NULL,
		snap_unvested  BIGINT NOT NULL,
		snap_exercised BIGINT NOT NULL,
		snap_forfeited BIGINT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_vesting_transactions_event
		ON vesting_transactions (event_id)`,

	`CREATE INDEX IF NOT EXISTS idx_vesting_transactions_grant
		ON vesting_transactions (grant_id, created_at)`,
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS vesting_schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM vesting_schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vesting_schema_migrations (version) VALUES ($1)`, i+1); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d: record: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", i+1, err)
		}
	}
	return nil
}
