package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations run in order; each entry is applied once and recorded in
// vesting_schema_migrations.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS vesting_schedules (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL DEFAULT '',
		duration_months  INTEGER NOT NULL,
		frequency_months INTEGER NOT NULL,
		cliff_months     INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS vesting_grants (
		id            TEXT PRIMARY KEY,
		holder_id     TEXT NOT NULL,
		schedule_id   TEXT REFERENCES vesting_schedules(id),
		trigger_kind  TEXT NOT NULL,
		granted       INTEGER NOT NULL,
		vested        INTEGER NOT NULL DEFAULT 0,
		unvested      INTEGER NOT NULL DEFAULT 0,
		exercised     INTEGER NOT NULL DEFAULT 0,
		forfeited     INTEGER NOT NULL DEFAULT 0,
		period_start  TEXT NOT NULL,
		period_end    TEXT NOT NULL,
		metadata      TEXT NOT NULL DEFAULT '{}',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_vesting_grants_holder
		ON vesting_grants (holder_id)`,

	`CREATE TABLE IF NOT EXISTS vesting_events (
		id            TEXT PRIMARY KEY,
		grant_id      TEXT NOT NULL REFERENCES vesting_grants(id),
		vest_date     TEXT NOT NULL,
		shares        INTEGER NOT NULL,
		status        TEXT NOT NULL,
		cancel_reason TEXT NOT NULL DEFAULT '',
		processed_at  TEXT,
		cancelled_at  TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_vesting_events_due
		ON vesting_events (grant_id, status, vest_date)`,

	`CREATE TABLE IF NOT EXISTS vesting_transactions (
		id             TEXT PRIMARY KEY,
		grant_id       TEXT NOT NULL REFERENCES vesting_grants(id),
		event_id       TEXT NOT NULL,
		payment_id     TEXT,
		kind           TEXT NOT NULL,
		shares         INTEGER NOT NULL,
		snap_granted   INTEGER NOT NULL,
		snap_vested    INTEGER NOT NULL,
		snap_unvested  INTEGER NOT NULL,
		snap_exercised INTEGER NOT NULL,
		snap_forfeited INTEGER NOT NULL,
		created_at     TEXT NOT NULL
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
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
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
		if _, err := tx.ExecContext(ctx, `INSERT INTO vesting_schema_migrations (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d: record: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", i+1, err)
		}
	}
	return nil
}
