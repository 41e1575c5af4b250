// Package sqlite implements store.Store over SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	vesting "github.com/xraph/vesting"
	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	vestingstore "github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// compile-time interface check
var _ vestingstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a SQLite store at path. Per-connection pragmas enable WAL,
// foreign keys, and a busy timeout; a single connection keeps SQLite's
// one-writer model from surfacing SQLITE_BUSY to callers.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vesting/sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{db: db}, nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("%w: %v", vesting.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Grant Store ====================

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	m := toGrantRow(g)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO vesting_grants (
  id, holder_id, schedule_id, trigger_kind,
  granted, vested, unvested, exercised, forfeited,
  period_start, period_end, metadata, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.HolderID, m.ScheduleID(), m.Trigger,
		m.Granted, m.Vested, m.Unvested, m.Exercised, m.Forfeited,
		m.PeriodStart, m.PeriodEnd, m.Metadata, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	row := s.db.QueryRowContext(ctx, grantSelect+` WHERE id = ?`, grantID.String())
	g, err := scanGrant(row)
	if err != nil {
		if isNoRows(err) {
			return nil, vesting.ErrGrantNotFound
		}
		return nil, fmt.Errorf("vesting/sqlite: get grant: %w", err)
	}
	return g, nil
}

func (s *Store) ListGrants(ctx context.Context, holderID string, opts grant.ListOpts) ([]*grant.Grant, error) {
	q := grantSelect + ` WHERE holder_id = ?`
	args := []any{holderID}

	if opts.Trigger != "" {
		q += ` AND trigger_kind = ?`
		args = append(args, string(opts.Trigger))
	}
	q += ` ORDER BY created_at ASC`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vesting/sqlite: list grants: %w", err)
	}
	defer rows.Close()

	var result []*grant.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("vesting/sqlite: list grants: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) ListGrantIDsWithDueEvents(ctx context.Context, asOf time.Time) ([]id.GrantID, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT grant_id FROM vesting_events
WHERE status = ? AND vest_date <= ?
ORDER BY grant_id ASC`,
		string(event.StatusPending), fmtTime(asOf),
	)
	if err != nil {
		return nil, fmt.Errorf("vesting/sqlite: list due grants: %w", err)
	}
	defer rows.Close()

	var result []id.GrantID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		gid, err := id.ParseGrantID(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, gid)
	}
	return result, rows.Err()
}

// ==================== Schedule Store ====================

func (s *Store) CreateSchedule(ctx context.Context, sched *schedule.Schedule) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO vesting_schedules (
  id, name, duration_months, frequency_months, cliff_months, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sched.ID.String(), sched.Name,
		sched.DurationMonths, sched.FrequencyMonths, sched.CliffMonths,
		fmtTime(sched.CreatedAt), fmtTime(sched.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: create schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, duration_months, frequency_months, cliff_months, created_at, updated_at
FROM vesting_schedules WHERE id = ?`, scheduleID.String())

	sched, err := scanSchedule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, vesting.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("vesting/sqlite: get schedule: %w", err)
	}
	return sched, nil
}

// ==================== Event Store ====================

func (s *Store) CreateEvents(ctx context.Context, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", vesting.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, ev := range events {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", vesting.ErrTransactionFailed, err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, grantID id.GrantID) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelect+` WHERE grant_id = ? ORDER BY vest_date ASC`, grantID.String())
	if err != nil {
		return nil, fmt.Errorf("vesting/sqlite: list events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (s *Store) CountEvents(ctx context.Context, grantID id.GrantID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vesting_events WHERE grant_id = ?`, grantID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("vesting/sqlite: count events: %w", err)
	}
	return count, nil
}

// ==================== Ledger Store ====================

func (s *Store) ListTransactions(ctx context.Context, grantID id.GrantID) ([]*transaction.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, txnSelect+` WHERE grant_id = ? ORDER BY created_at ASC, id ASC`, grantID.String())
	if err != nil {
		return nil, fmt.Errorf("vesting/sqlite: list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ==================== Realization ====================

func (s *Store) RealizeGrant(ctx context.Context, grantID id.GrantID, fn func(ctx context.Context, tx vestingstore.RealizeTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", vesting.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	// Touch the grant row first: SQLite has no row locks, so this takes
	// the database write lock for the whole batch, keeping the upcoming
	// counter read from interleaving with another writer.
	res, err := tx.ExecContext(ctx, `UPDATE vesting_grants SET updated_at = updated_at WHERE id = ?`, grantID.String())
	if err != nil {
		return fmt.Errorf("%w: lock grant: %v", vesting.ErrTransactionFailed, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return vesting.ErrGrantNotFound
	}

	if err := fn(ctx, &realizeTx{tx: tx, grantID: grantID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", vesting.ErrTransactionFailed, err)
	}
	return nil
}

// realizeTx implements store.RealizeTx over one SQLite transaction.
type realizeTx struct {
	tx      *sql.Tx
	grantID id.GrantID
}

func (r *realizeTx) Grant(ctx context.Context) (*grant.Grant, error) {
	row := r.tx.QueryRowContext(ctx, grantSelect+` WHERE id = ?`, r.grantID.String())
	g, err := scanGrant(row)
	if err != nil {
		if isNoRows(err) {
			return nil, vesting.ErrGrantNotFound
		}
		return nil, fmt.Errorf("vesting/sqlite: realize grant read: %w", err)
	}
	return g, nil
}

func (r *realizeTx) PendingEventsDue(ctx context.Context, asOf time.Time) ([]*event.Event, error) {
	rows, err := r.tx.QueryContext(ctx, eventSelect+`
WHERE grant_id = ? AND status = ? AND vest_date <= ?
ORDER BY vest_date ASC`,
		r.grantID.String(), string(event.StatusPending), fmtTime(asOf),
	)
	if err != nil {
		return nil, fmt.Errorf("vesting/sqlite: due events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *realizeTx) InsertEvent(ctx context.Context, ev *event.Event) error {
	return insertEvent(ctx, r.tx, ev)
}

func (r *realizeTx) MarkEventProcessed(ctx context.Context, eventID id.EventID, at time.Time) error {
	res, err := r.tx.ExecContext(ctx, `
UPDATE vesting_events SET status = ?, processed_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		string(event.StatusProcessed), fmtTime(at), fmtTime(at),
		eventID.String(), string(event.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: mark processed: %w", err)
	}
	return requireTransition(res)
}

func (r *realizeTx) MarkEventCancelled(ctx context.Context, eventID id.EventID, reason event.CancelReason, at time.Time) error {
	res, err := r.tx.ExecContext(ctx, `
UPDATE vesting_events SET status = ?, cancel_reason = ?, cancelled_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		string(event.StatusCancelled), string(reason), fmtTime(at), fmtTime(at),
		eventID.String(), string(event.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: mark cancelled: %w", err)
	}
	return requireTransition(res)
}

func (r *realizeTx) AppendTransaction(ctx context.Context, txn *transaction.Transaction) error {
	m := toTransactionRow(txn)
	_, err := r.tx.ExecContext(ctx, `
INSERT INTO vesting_transactions (
  id, grant_id, event_id, payment_id, kind, shares,
  snap_granted, snap_vested, snap_unvested, snap_exercised, snap_forfeited,
  created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.GrantID, m.EventID, m.PaymentID(), m.Kind, m.Shares,
		m.SnapGranted, m.SnapVested, m.SnapUnvested, m.SnapExercised, m.SnapForfeited,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: append transaction: %w", err)
	}
	return nil
}

func (r *realizeTx) UpdateGrantCounters(ctx context.Context, vested, unvested types.Shares) error {
	_, err := r.tx.ExecContext(ctx, `
UPDATE vesting_grants SET vested = ?, unvested = ?, updated_at = ? WHERE id = ?`,
		vested.Int64(), unvested.Int64(), fmtTime(time.Now().UTC()), r.grantID.String(),
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: update counters: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, ev *event.Event) error {
	m := toEventRow(ev)
	_, err := db.ExecContext(ctx, `
INSERT INTO vesting_events (
  id, grant_id, vest_date, shares, status, cancel_reason,
  processed_at, cancelled_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.GrantID, m.VestDate, m.Shares, m.Status, m.CancelReason,
		m.ProcessedAt, m.CancelledAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("vesting/sqlite: insert event: %w", err)
	}
	return nil
}

// requireTransition maps a zero-row UPDATE to the terminal-event error:
// the status guard in the WHERE clause means the row either does not
// exist or already left pending.
func requireTransition(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return vesting.ErrEventTerminal
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
