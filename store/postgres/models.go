package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("vesting/postgres: encode metadata: %w", err)
	}
	return b, nil
}

func scanGrant(row rowScanner) (*grant.Grant, error) {
	var (
		rawID, holderID, trigger                          string
		scheduleRaw                                       sql.NullString
		granted, vested, unvested, exercised, forfeited   int64
		periodStart, periodEnd, createdAt, updatedAt      time.Time
		meta                                              []byte
	)
	err := row.Scan(
		&rawID, &holderID, &scheduleRaw, &trigger,
		&granted, &vested, &unvested, &exercised, &forfeited,
		&periodStart, &periodEnd, &meta, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	gid, err := id.ParseGrantID(rawID)
	if err != nil {
		return nil, fmt.Errorf("grant row %q: %w", rawID, err)
	}

	g := &grant.Grant{
		ID:              gid,
		HolderID:        holderID,
		Trigger:         grant.TriggerKind(trigger),
		GrantedShares:   types.Shares(granted),
		VestedShares:    types.Shares(vested),
		UnvestedShares:  types.Shares(unvested),
		ExercisedShares: types.Shares(exercised),
		ForfeitedShares: types.Shares(forfeited),
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
	}
	g.CreatedAt = createdAt
	g.UpdatedAt = updatedAt

	if scheduleRaw.Valid && scheduleRaw.String != "" {
		sid, err := id.ParseScheduleID(scheduleRaw.String)
		if err != nil {
			return nil, fmt.Errorf("grant row %q schedule: %w", rawID, err)
		}
		g.ScheduleID = sid
	}
	if len(meta) > 0 && string(meta) != "{}" {
		if err := json.Unmarshal(meta, &g.Metadata); err != nil {
			return nil, fmt.Errorf("grant row %q metadata: %w", rawID, err)
		}
	}
	return g, nil
}

func collectEvents(rows *sql.Rows) ([]*event.Event, error) {
	var result []*event.Event
	for rows.Next() {
		var (
			rawID, rawGrant, status, cancelReason        string
			vestDate, createdAt, updatedAt               time.Time
			shares                                       int64
			processedAt, cancelledAt                     sql.NullTime
		)
		err := rows.Scan(
			&rawID, &rawGrant, &vestDate, &shares, &status, &cancelReason,
			&processedAt, &cancelledAt, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}

		eid, err := id.ParseEventID(rawID)
		if err != nil {
			return nil, fmt.Errorf("event row %q: %w", rawID, err)
		}
		gid, err := id.ParseGrantID(rawGrant)
		if err != nil {
			return nil, fmt.Errorf("event row %q grant: %w", rawID, err)
		}

		ev := &event.Event{
			ID:           eid,
			GrantID:      gid,
			Date:         vestDate,
			Shares:       types.Shares(shares),
			Status:       event.Status(status),
			CancelReason: event.CancelReason(cancelReason),
		}
		ev.CreatedAt = createdAt
		ev.UpdatedAt = updatedAt
		if processedAt.Valid {
			t := processedAt.Time
			ev.ProcessedAt = &t
		}
		if cancelledAt.Valid {
			t := cancelledAt.Time
			ev.CancelledAt = &t
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func collectTransactions(rows *sql.Rows) ([]*transaction.Transaction, error) {
	var result []*transaction.Transaction
	for rows.Next() {
		var (
			rawID, rawGrant, rawEvent, kind                                       string
			paymentRaw                                                            sql.NullString
			shares, snapGranted, snapVested, snapUnvested, snapExer, snapForfeit  int64
			createdAt                                                             time.Time
		)
		err := rows.Scan(
			&rawID, &rawGrant, &rawEvent, &paymentRaw, &kind, &shares,
			&snapGranted, &snapVested, &snapUnvested, &snapExer, &snapForfeit,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		tid, err := id.ParseTransactionID(rawID)
		if err != nil {
			return nil, fmt.Errorf("transaction row %q: %w", rawID, err)
		}
		gid, err := id.ParseGrantID(rawGrant)
		if err != nil {
			return nil, fmt.Errorf("transaction row %q grant: %w", rawID, err)
		}
		eid, err := id.ParseEventID(rawEvent)
		if err != nil {
			return nil, fmt.Errorf("transaction row %q event: %w", rawID, err)
		}

		txn := &transaction.Transaction{
			ID:      tid,
			GrantID: gid,
			EventID: eid,
			Kind:    transaction.Kind(kind),
			Shares:  types.Shares(shares),
			Snapshot: transaction.Snapshot{
				Granted:   types.Shares(snapGranted),
				Vested:    types.Shares(snapVested),
				Unvested:  types.Shares(snapUnvested),
				Exercised: types.Shares(snapExer),
				Forfeited: types.Shares(snapForfeit),
			},
		}
		txn.CreatedAt = createdAt
		txn.UpdatedAt = createdAt
		if paymentRaw.Valid && paymentRaw.String != "" {
			pid, err := id.ParsePaymentID(paymentRaw.String)
			if err != nil {
				return nil, fmt.Errorf("transaction row %q payment: %w", rawID, err)
			}
			txn.PaymentID = pid
		}
		result = append(result, txn)
	}
	return result, rows.Err()
}
