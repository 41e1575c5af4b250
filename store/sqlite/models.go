package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// timeLayout is the canonical column format for all timestamps. The
// fractional part is fixed-width so lexical order equals chronological
// order, which the date comparisons and ledger ORDER BY rely on.
// RFC3339Nano would trim trailing zeros and break that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ==================== Grants ====================

const grantSelect = `
SELECT id, holder_id, schedule_id, trigger_kind,
       granted, vested, unvested, exercised, forfeited,
       period_start, period_end, metadata, created_at, updated_at
FROM vesting_grants`

type grantRow struct {
	ID          string
	HolderID    string
	ScheduleRaw sql.NullString
	Trigger     string
	Granted     int64
	Vested      int64
	Unvested    int64
	Exercised   int64
	Forfeited   int64
	PeriodStart string
	PeriodEnd   string
	Metadata    string
	CreatedAt   string
	UpdatedAt   string
}

// ScheduleID returns the nullable schedule reference for binding.
func (m *grantRow) ScheduleID() any {
	if !m.ScheduleRaw.Valid || m.ScheduleRaw.String == "" {
		return nil
	}
	return m.ScheduleRaw.String
}

func toGrantRow(g *grant.Grant) *grantRow {
	meta := "{}"
	if len(g.Metadata) > 0 {
		if b, err := json.Marshal(g.Metadata); err == nil {
			meta = string(b)
		}
	}

	m := &grantRow{
		ID:          g.ID.String(),
		HolderID:    g.HolderID,
		Trigger:     string(g.Trigger),
		Granted:     g.GrantedShares.Int64(),
		Vested:      g.VestedShares.Int64(),
		Unvested:    g.UnvestedShares.Int64(),
		Exercised:   g.ExercisedShares.Int64(),
		Forfeited:   g.ForfeitedShares.Int64(),
		PeriodStart: fmtTime(g.PeriodStart),
		PeriodEnd:   fmtTime(g.PeriodEnd),
		Metadata:    meta,
		CreatedAt:   fmtTime(g.CreatedAt),
		UpdatedAt:   fmtTime(g.UpdatedAt),
	}
	if !g.ScheduleID.IsNil() {
		m.ScheduleRaw = sql.NullString{String: g.ScheduleID.String(), Valid: true}
	}
	return m
}

func scanGrant(row rowScanner) (*grant.Grant, error) {
	var m grantRow
	err := row.Scan(
		&m.ID, &m.HolderID, &m.ScheduleRaw, &m.Trigger,
		&m.Granted, &m.Vested, &m.Unvested, &m.Exercised, &m.Forfeited,
		&m.PeriodStart, &m.PeriodEnd, &m.Metadata, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fromGrantRow(&m)
}

func fromGrantRow(m *grantRow) (*grant.Grant, error) {
	gid, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("grant row %q: %w", m.ID, err)
	}

	g := &grant.Grant{
		ID:              gid,
		HolderID:        m.HolderID,
		Trigger:         grant.TriggerKind(m.Trigger),
		GrantedShares:   types.Shares(m.Granted),
		VestedShares:    types.Shares(m.Vested),
		UnvestedShares:  types.Shares(m.Unvested),
		ExercisedShares: types.Shares(m.Exercised),
		ForfeitedShares: types.Shares(m.Forfeited),
	}

	if m.ScheduleRaw.Valid && m.ScheduleRaw.String != "" {
		sid, err := id.ParseScheduleID(m.ScheduleRaw.String)
		if err != nil {
			return nil, fmt.Errorf("grant row %q schedule: %w", m.ID, err)
		}
		g.ScheduleID = sid
	}

	if g.PeriodStart, err = parseTime(m.PeriodStart); err != nil {
		return nil, err
	}
	if g.PeriodEnd, err = parseTime(m.PeriodEnd); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(m.UpdatedAt); err != nil {
		return nil, err
	}

	if m.Metadata != "" && m.Metadata != "{}" {
		if err := json.Unmarshal([]byte(m.Metadata), &g.Metadata); err != nil {
			return nil, fmt.Errorf("grant row %q metadata: %w", m.ID, err)
		}
	}
	return g, nil
}

// ==================== Schedules ====================

func scanSchedule(row rowScanner) (*schedule.Schedule, error) {
	var (
		rowID, name          string
		duration, freq, clif int
		createdAt, updatedAt string
	)
	if err := row.Scan(&rowID, &name, &duration, &freq, &clif, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sid, err := id.ParseScheduleID(rowID)
	if err != nil {
		return nil, fmt.Errorf("schedule row %q: %w", rowID, err)
	}

	result := &schedule.Schedule{
		ID:              sid,
		Name:            name,
		DurationMonths:  duration,
		FrequencyMonths: freq,
		CliffMonths:     clif,
	}
	if result.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if result.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return result, nil
}

// ==================== Events ====================

const eventSelect = `
SELECT id, grant_id, vest_date, shares, status, cancel_reason,
       processed_at, cancelled_at, created_at, updated_at
FROM vesting_events`

type eventRow struct {
	ID           string
	GrantID      string
	VestDate     string
	Shares       int64
	Status       string
	CancelReason string
	ProcessedAt  sql.NullString
	CancelledAt  sql.NullString
	CreatedAt    string
	UpdatedAt    string
}

func toEventRow(ev *event.Event) *eventRow {
	m := &eventRow{
		ID:           ev.ID.String(),
		GrantID:      ev.GrantID.String(),
		VestDate:     fmtTime(ev.Date),
		Shares:       ev.Shares.Int64(),
		Status:       string(ev.Status),
		CancelReason: string(ev.CancelReason),
		CreatedAt:    fmtTime(ev.CreatedAt),
		UpdatedAt:    fmtTime(ev.UpdatedAt),
	}
	if ev.ProcessedAt != nil {
		m.ProcessedAt = sql.NullString{String: fmtTime(*ev.ProcessedAt), Valid: true}
	}
	if ev.CancelledAt != nil {
		m.CancelledAt = sql.NullString{String: fmtTime(*ev.CancelledAt), Valid: true}
	}
	return m
}

func collectEvents(rows *sql.Rows) ([]*event.Event, error) {
	var result []*event.Event
	for rows.Next() {
		var m eventRow
		err := rows.Scan(
			&m.ID, &m.GrantID, &m.VestDate, &m.Shares, &m.Status, &m.CancelReason,
			&m.ProcessedAt, &m.CancelledAt, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		ev, err := fromEventRow(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func fromEventRow(m *eventRow) (*event.Event, error) {
	eid, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("event row %q: %w", m.ID, err)
	}
	gid, err := id.ParseGrantID(m.GrantID)
	if err != nil {
		return nil, fmt.Errorf("event row %q grant: %w", m.ID, err)
	}

	ev := &event.Event{
		ID:           eid,
		GrantID:      gid,
		Shares:       types.Shares(m.Shares),
		Status:       event.Status(m.Status),
		CancelReason: event.CancelReason(m.CancelReason),
	}
	if ev.Date, err = parseTime(m.VestDate); err != nil {
		return nil, err
	}
	if ev.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	if ev.UpdatedAt, err = parseTime(m.UpdatedAt); err != nil {
		return nil, err
	}
	if m.ProcessedAt.Valid {
		t, err := parseTime(m.ProcessedAt.String)
		if err != nil {
			return nil, err
		}
		ev.ProcessedAt = &t
	}
	if m.CancelledAt.Valid {
		t, err := parseTime(m.CancelledAt.String)
		if err != nil {
			return nil, err
		}
		ev.CancelledAt = &t
	}
	return ev, nil
}

// ==================== Transactions ====================

const txnSelect = `
SELECT id, grant_id, event_id, payment_id, kind, shares,
       snap_granted, snap_vested, snap_unvested, snap_exercised, snap_forfeited,
       created_at
FROM vesting_transactions`

type transactionRow struct {
	ID            string
	GrantID       string
	EventID       string
	PaymentRaw    sql.NullString
	Kind          string
	Shares        int64
	SnapGranted   int64
	SnapVested    int64
	SnapUnvested  int64
	SnapExercised int64
	SnapForfeited int64
	CreatedAt     string
}

// PaymentID returns the nullable payment reference for binding.
func (m *transactionRow) PaymentID() any {
	if !m.PaymentRaw.Valid || m.PaymentRaw.String == "" {
		return nil
	}
	return m.PaymentRaw.String
}

func toTransactionRow(t *transaction.Transaction) *transactionRow {
	m := &transactionRow{
		ID:            t.ID.String(),
		GrantID:       t.GrantID.String(),
		EventID:       t.EventID.String(),
		Kind:          string(t.Kind),
		Shares:        t.Shares.Int64(),
		SnapGranted:   t.Snapshot.Granted.Int64(),
		SnapVested:    t.Snapshot.Vested.Int64(),
		SnapUnvested:  t.Snapshot.Unvested.Int64(),
		SnapExercised: t.Snapshot.Exercised.Int64(),
		SnapForfeited: t.Snapshot.Forfeited.Int64(),
		CreatedAt:     fmtTime(t.CreatedAt),
	}
	if !t.PaymentID.IsNil() {
		m.PaymentRaw = sql.NullString{String: t.PaymentID.String(), Valid: true}
	}
	return m
}

func collectTransactions(rows *sql.Rows) ([]*transaction.Transaction, error) {
	var result []*transaction.Transaction
	for rows.Next() {
		var m transactionRow
		err := rows.Scan(
			&m.ID, &m.GrantID, &m.EventID, &m.PaymentRaw, &m.Kind, &m.Shares,
			&m.SnapGranted, &m.SnapVested, &m.SnapUnvested, &m.SnapExercised, &m.SnapForfeited,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		txn, err := fromTransactionRow(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, txn)
	}
	return result, rows.Err()
}

func fromTransactionRow(m *transactionRow) (*transaction.Transaction, error) {
	tid, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("transaction row %q: %w", m.ID, err)
	}
	gid, err := id.ParseGrantID(m.GrantID)
	if err != nil {
		return nil, fmt.Errorf("transaction row %q grant: %w", m.ID, err)
	}
	eid, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("transaction row %q event: %w", m.ID, err)
	}

	txn := &transaction.Transaction{
		ID:      tid,
		GrantID: gid,
		EventID: eid,
		Kind:    transaction.Kind(m.Kind),
		Shares:  types.Shares(m.Shares),
		Snapshot: transaction.Snapshot{
			Granted:   types.Shares(m.SnapGranted),
			Vested:    types.Shares(m.SnapVested),
			Unvested:  types.Shares(m.SnapUnvested),
			Exercised: types.Shares(m.SnapExercised),
			Forfeited: types.Shares(m.SnapForfeited),
		},
	}
	if m.PaymentRaw.Valid && m.PaymentRaw.String != "" {
		pid, err := id.ParsePaymentID(m.PaymentRaw.String)
		if err != nil {
			return nil, fmt.Errorf("transaction row %q payment: %w", m.ID, err)
		}
		txn.PaymentID = pid
	}
	if txn.CreatedAt, err = parseTime(m.CreatedAt); err != nil {
		return nil, err
	}
	txn.UpdatedAt = txn.CreatedAt
	return txn, nil
}
