package vesting

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// RealizeResult reports the outcome of one grant's realization batch.
type RealizeResult struct {
	GrantID      id.GrantID
	Transactions []*transaction.Transaction
	Cancelled    []*event.Event
}

// Processed returns the number of events that vested.
func (r *RealizeResult) Processed() int { return len(r.Transactions) }

// Empty reports whether the batch touched nothing.
func (r *RealizeResult) Empty() bool {
	return len(r.Transactions) == 0 && len(r.Cancelled) == 0
}

// SweepResult aggregates a full calendar sweep across grants.
type SweepResult struct {
	Grants    int
	Processed int
	Cancelled int
	Failed    int
}

// ──────────────────────────────────────────────────
// Calendar realization
// ──────────────────────────────────────────────────

// RealizeDueEventsForGrant realizes every pending event due at or
// before asOf for one grant. The whole batch runs under the grant's
// exclusive lock: counters are read once, events are walked in vest
// date order against local running counters, and the updated counters
// are flushed in a single write before commit. An event whose shares
// exceed the remaining unvested balance is cancelled in place; this is
// a recorded outcome, not an error, and never aborts the batch.
func (e *Engine) RealizeDueEventsForGrant(ctx context.Context, grantID id.GrantID, asOf time.Time) (*RealizeResult, error) {
	result := &RealizeResult{GrantID: grantID}

	err := e.store.RealizeGrant(ctx, grantID, func(ctx context.Context, tx store.RealizeTx) error {
		g, err := tx.Grant(ctx)
		if err != nil {
			return err
		}
		if !g.CountersConsistent() {
			return fmt.Errorf("%w: grant %s", ErrCounterInvariant, grantID)
		}

		due, err := tx.PendingEventsDue(ctx, asOf)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		return e.realizeBatch(ctx, tx, g, due, transaction.KindScheduledVesting, id.PaymentID{}, result)
	})
	if err != nil {
		return nil, err
	}

	e.emitRealized(ctx, result)
	return result, nil
}

// RealizePaymentTriggeredEvent vests shares on a grant in response to a
// paid invoice. The event is synthesized at call time rather than laid
// out in advance, then realized under the same lock, counter, and
// cancellation rules as calendar events.
func (e *Engine) RealizePaymentTriggeredEvent(ctx context.Context, grantID id.GrantID, paymentID id.PaymentID, shares types.Shares) (*RealizeResult, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("%w: shares must be positive", ErrInvalidInput)
	}

	result := &RealizeResult{GrantID: grantID}

	err := e.store.RealizeGrant(ctx, grantID, func(ctx context.Context, tx store.RealizeTx) error {
		g, err := tx.Grant(ctx)
		if err != nil {
			return err
		}
		if g.Trigger != grant.TriggerInvoicePaid {
			return fmt.Errorf("%w: grant %s vests on %s", ErrTriggerMismatch, grantID, g.Trigger)
		}
		if !g.CountersConsistent() {
			return fmt.Errorf("%w: grant %s", ErrCounterInvariant, grantID)
		}

		ev := &event.Event{
			Entity:  types.NewEntity(),
			ID:      id.NewEventID(),
			GrantID: grantID,
			Date:    e.now(),
			Shares:  shares,
			Status:  event.StatusPending,
		}
		if err := tx.InsertEvent(ctx, ev); err != nil {
			return err
		}

		return e.realizeBatch(ctx, tx, g, []*event.Event{ev}, transaction.KindVestingPostInvoicePayment, paymentID, result)
	})
	if err != nil {
		return nil, err
	}

	e.emitRealized(ctx, result)
	return result, nil
}

// realizeBatch walks due events against local running counters and
// stages the outcome on the open realization transaction. Counters are
// flushed once, after the walk, and only when something vested.
func (e *Engine) realizeBatch(ctx context.Context, tx store.RealizeTx, g *grant.Grant, due []*event.Event, kind transaction.Kind, paymentID id.PaymentID, result *RealizeResult) error {
	vested := g.VestedShares
	unvested := g.UnvestedShares
	now := e.now()

	for _, ev := range due {
		if unvested < ev.Shares {
			if err := tx.MarkEventCancelled(ctx, ev.ID, event.CancelInsufficientShares, now); err != nil {
				return err
			}
			cancelled := *ev
			cancelled.Status = event.StatusCancelled
			cancelled.CancelReason = event.CancelInsufficientShares
			at := now
			cancelled.CancelledAt = &at
			result.Cancelled = append(result.Cancelled, &cancelled)
			continue
		}

		vested = vested.Add(ev.Shares)
		unvested = unvested.Subtract(ev.Shares)

		txn := &transaction.Transaction{
			Entity:    types.NewEntity(),
			ID:        id.NewTransactionID(),
			GrantID:   g.ID,
			EventID:   ev.ID,
			PaymentID: paymentID,
			Kind:      kind,
			Shares:    ev.Shares,
			Snapshot: transaction.Snapshot{
				Granted:   g.GrantedShares,
				Vested:    vested,
				Unvested:  unvested,
				Exercised: g.ExercisedShares,
				Forfeited: g.ForfeitedShares,
			},
		}
		if err := tx.AppendTransaction(ctx, txn); err != nil {
			return err
		}
		if err := tx.MarkEventProcessed(ctx, ev.ID, now); err != nil {
			return err
		}
		result.Transactions = append(result.Transactions, txn)
	}

	if len(result.Transactions) > 0 {
		if err := tx.UpdateGrantCounters(ctx, vested, unvested); err != nil {
			return err
		}
	}
	return nil
}

// emitRealized notifies plugins after a realization batch commits.
func (e *Engine) emitRealized(ctx context.Context, result *RealizeResult) {
	if result.Empty() {
		return
	}

	e.logger.Info("events realized",
		"grant_id", result.GrantID,
		"processed", result.Processed(),
		"cancelled", len(result.Cancelled),
	)

	for _, ev := range result.Cancelled {
		e.plugins.EmitEventCancelled(ctx, result.GrantID.String(), ev.ID.String(), string(ev.CancelReason))
	}
	e.plugins.EmitEventsRealized(ctx, result)
}

// ──────────────────────────────────────────────────
// Calendar sweep
// ──────────────────────────────────────────────────

// RealizeDueEvents sweeps every grant holding pending events due at or
// before asOf. Each grant is realized independently; transient store
// failures are retried with exponential backoff, and one grant's
// failure never blocks the rest of the sweep.
func (e *Engine) RealizeDueEvents(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	start := time.Now()

	grantIDs, err := e.store.ListGrantIDsWithDueEvents(ctx, asOf)
	if err != nil {
		return nil, err
	}

	sweep := &SweepResult{Grants: len(grantIDs)}

	for _, gid := range grantIDs {
		result, err := e.realizeWithRetry(ctx, gid, asOf)
		if err != nil {
			sweep.Failed++
			e.logger.Error("grant realization failed",
				"grant_id", gid,
				"error", err,
			)
			continue
		}
		sweep.Processed += result.Processed()
		sweep.Cancelled += len(result.Cancelled)
	}

	elapsed := time.Since(start)
	e.logger.Info("calendar sweep completed",
		"grants", sweep.Grants,
		"processed", sweep.Processed,
		"cancelled", sweep.Cancelled,
		"failed", sweep.Failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	e.plugins.EmitSweepCompleted(ctx, sweep.Grants, sweep.Processed, sweep.Cancelled, elapsed)
	return sweep, nil
}

// realizeWithRetry retries one grant's realization on retryable store
// errors. Invariant violations and not-found errors fail immediately.
func (e *Engine) realizeWithRetry(ctx context.Context, grantID id.GrantID, asOf time.Time) (*RealizeResult, error) {
	op := func() (*RealizeResult, error) {
		result, err := e.RealizeDueEventsForGrant(ctx, grantID, asOf)
		if err != nil {
			if IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return result, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(e.sweepRetries),
	)
}
