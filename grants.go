package vesting

import (
	"context"
	"fmt"

	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// ──────────────────────────────────────────────────
// Grant Management
// ──────────────────────────────────────────────────

// CreateGrant creates a new equity grant. Counters start fully
// unvested: unvested equals the granted total, everything else zero.
func (e *Engine) CreateGrant(ctx context.Context, g *grant.Grant) error {
	if g.HolderID == "" {
		return fmt.Errorf("%w: holder id is required", ErrInvalidInput)
	}
	if !g.GrantedShares.IsPositive() {
		return fmt.Errorf("%w: granted shares must be positive", ErrInvalidInput)
	}
	switch g.Trigger {
	case grant.TriggerScheduled, grant.TriggerInvoicePaid:
	default:
		return fmt.Errorf("%w: unknown trigger kind %q", ErrInvalidInput, g.Trigger)
	}
	if g.Trigger == grant.TriggerScheduled && g.ScheduleID.IsNil() {
		return fmt.Errorf("%w: scheduled grants require a schedule", ErrNoScheduleRef)
	}

	if g.ID.IsNil() {
		g.ID = id.NewGrantID()
	}
	g.Entity = types.NewEntity()

	// A grant created with zero counters starts fully unvested. Callers
	// migrating existing awards may supply counters; they must balance.
	if g.VestedShares.IsZero() && g.UnvestedShares.IsZero() &&
		g.ExercisedShares.IsZero() && g.ForfeitedShares.IsZero() {
		g.UnvestedShares = g.GrantedShares
	}
	if !g.CountersConsistent() {
		return ErrCounterInvariant
	}

	if err := e.store.CreateGrant(ctx, g); err != nil {
		return err
	}

	e.logger.Info("grant created",
		"grant_id", g.ID,
		"holder_id", g.HolderID,
		"granted", g.GrantedShares,
		"trigger", g.Trigger,
	)

	e.plugins.EmitGrantCreated(ctx, g)
	return nil
}

// GetGrant retrieves a grant by ID.
func (e *Engine) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	return e.store.GetGrant(ctx, grantID)
}

// ListGrants lists a holder's grants.
func (e *Engine) ListGrants(ctx context.Context, holderID string, opts grant.ListOpts) ([]*grant.Grant, error) {
	return e.store.ListGrants(ctx, holderID, opts)
}

// ──────────────────────────────────────────────────
// Schedule Management
// ──────────────────────────────────────────────────

// CreateVestingSchedule creates a reusable schedule definition.
func (e *Engine) CreateVestingSchedule(ctx context.Context, s *schedule.Schedule) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	if s.ID.IsNil() {
		s.ID = id.NewScheduleID()
	}
	s.Entity = types.NewEntity()

	return e.store.CreateSchedule(ctx, s)
}

// GetVestingSchedule retrieves a schedule by ID.
func (e *Engine) GetVestingSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Schedule, error) {
	return e.store.GetSchedule(ctx, scheduleID)
}

// ──────────────────────────────────────────────────
// Schedule Generation
// ──────────────────────────────────────────────────

// GenerateSchedule divides a grant's shares across its schedule and
// persists the resulting pending events. It is a one-shot operation: a
// grant that already has events is rejected. Grants vesting on payment
// triggers have no calendar to lay out and return no events.
func (e *Engine) GenerateSchedule(ctx context.Context, grantID id.GrantID) ([]*event.Event, error) {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.CountEvents(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: grant %s has %d events", ErrScheduleExists, grantID, existing)
	}

	if g.Trigger != grant.TriggerScheduled {
		e.logger.Debug("skipping schedule generation for non-calendar grant",
			"grant_id", grantID,
			"trigger", g.Trigger,
		)
		return nil, nil
	}
	if g.ScheduleID.IsNil() {
		return nil, fmt.Errorf("%w: grant %s", ErrNoScheduleRef, grantID)
	}

	sched, err := e.store.GetSchedule(ctx, g.ScheduleID)
	if err != nil {
		return nil, err
	}
	if err := sched.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	tranches := schedule.Generate(g.GrantedShares, g.PeriodStart, sched)
	if len(tranches) == 0 {
		// Per-tranche share count rounded to zero. Nothing to lay out;
		// the grant keeps its counters and no events are written.
		e.logger.Warn("schedule produced no tranches",
			"grant_id", grantID,
			"granted", g.GrantedShares,
			"tranche_count", sched.TrancheCount(),
		)
		return nil, nil
	}

	events := make([]*event.Event, 0, len(tranches))
	for _, t := range tranches {
		events = append(events, &event.Event{
			Entity:  types.NewEntity(),
			ID:      id.NewEventID(),
			GrantID: grantID,
			Date:    t.Date,
			Shares:  t.Shares,
			Status:  event.StatusPending,
		})
	}

	if err := e.store.CreateEvents(ctx, events); err != nil {
		return nil, err
	}

	e.logger.Info("vesting schedule generated",
		"grant_id", grantID,
		"events", len(events),
		"granted", g.GrantedShares,
	)

	e.plugins.EmitScheduleGenerated(ctx, grantID.String(), len(events))
	return events, nil
}

// ──────────────────────────────────────────────────
// Ledger Access
// ──────────────────────────────────────────────────

// ListTransactions returns a grant's ledger rows in chronological order.
func (e *Engine) ListTransactions(ctx context.Context, grantID id.GrantID) ([]*transaction.Transaction, error) {
	return e.store.ListTransactions(ctx, grantID)
}

// ListEvents returns a grant's vesting events ordered by vest date.
func (e *Engine) ListEvents(ctx context.Context, grantID id.GrantID) ([]*event.Event, error) {
	return e.store.ListEvents(ctx, grantID)
}

// VerifyLedger replays a grant's ledger and checks that every
// running-balance snapshot follows from its predecessor and the row's
// share delta. The first break is reported.
func (e *Engine) VerifyLedger(ctx context.Context, grantID id.GrantID) error {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return err
	}

	txns, err := e.store.ListTransactions(ctx, grantID)
	if err != nil {
		return err
	}

	prev := transaction.Snapshot{
		Granted:  g.GrantedShares,
		Unvested: g.GrantedShares,
	}
	for _, txn := range txns {
		if !txn.Follows(prev) {
			return fmt.Errorf("%w: transaction %s does not follow prior snapshot", ErrLedgerMismatch, txn.ID)
		}
		prev = txn.Snapshot
	}

	if prev.Vested != g.VestedShares || prev.Unvested != g.UnvestedShares {
		return fmt.Errorf("%w: grant counters diverge from ledger tail", ErrLedgerMismatch)
	}
	return nil
}
