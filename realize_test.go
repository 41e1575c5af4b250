package vesting_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	vesting "github.com/xraph/vesting"
	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/store/memory"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// seedEvents writes pending events directly, bypassing schedule
// generation, so tests can shape scarcity scenarios.
func seedEvents(t *testing.T, st interface {
	CreateEvents(ctx context.Context, events []*event.Event) error
}, grantID id.GrantID, shares []types.Shares, firstDue time.Time) []*event.Event {
	t.Helper()

	events := make([]*event.Event, 0, len(shares))
	for i, n := range shares {
		events = append(events, &event.Event{
			Entity:  types.NewEntity(),
			ID:      id.NewEventID(),
			GrantID: grantID,
			Date:    firstDue.AddDate(0, i, 0),
			Shares:  n,
			Status:  event.StatusPending,
		})
	}
	if err := st.CreateEvents(context.Background(), events); err != nil {
		t.Fatalf("CreateEvents failed: %v", err)
	}
	return events
}

func TestRealizeDueEventsForGrant(t *testing.T) {
	asOf := testStart.AddDate(0, 3, 0)
	e, _ := newTestEngine(t, asOf)
	sched := createSchedule(t, e, 12, 1, 0)

	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		ScheduleID:    sched.ID,
		Trigger:       grant.TriggerScheduled,
		GrantedShares: 1200,
		PeriodStart:   testStart,
	})
	if _, err := e.GenerateSchedule(context.Background(), g.ID); err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	result, err := e.RealizeDueEventsForGrant(context.Background(), g.ID, asOf)
	if err != nil {
		t.Fatalf("RealizeDueEventsForGrant failed: %v", err)
	}
	if result.Processed() != 3 {
		t.Fatalf("expected 3 processed events, got %d", result.Processed())
	}
	if len(result.Cancelled) != 0 {
		t.Errorf("expected no cancellations, got %d", len(result.Cancelled))
	}

	// Counters reflect the whole batch.
	stored, err := e.GetGrant(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if stored.VestedShares != 300 {
		t.Errorf("vested: got %d, want 300", stored.VestedShares)
	}
	if stored.UnvestedShares != 900 {
		t.Errorf("unvested: got %d, want 900", stored.UnvestedShares)
	}

	// Snapshots step monotonically.
	txns, err := e.ListTransactions(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
	for i, txn := range txns {
		if txn.Kind != transaction.KindScheduledVesting {
			t.Errorf("transaction %d: kind %q, want scheduled vesting", i, txn.Kind)
		}
		want := types.Shares(int64(100 * (i + 1)))
		if txn.Snapshot.Vested != want {
			t.Errorf("transaction %d: snapshot vested %d, want %d", i, txn.Snapshot.Vested, want)
		}
	}

	if err := e.VerifyLedger(context.Background(), g.ID); err != nil {
		t.Errorf("VerifyLedger failed: %v", err)
	}
}

func TestRealizeIsIdempotentAcrossSweeps(t *testing.T) {
	asOf := testStart.AddDate(0, 6, 0)
	e, _ := newTestEngine(t, asOf)
	sched := createSchedule(t, e, 12, 1, 0)

	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		ScheduleID:    sched.ID,
		Trigger:       grant.TriggerScheduled,
		GrantedShares: 1200,
		PeriodStart:   testStart,
	})
	if _, err := e.GenerateSchedule(context.Background(), g.ID); err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	first, err := e.RealizeDueEventsForGrant(context.Background(), g.ID, asOf)
	if err != nil {
		t.Fatalf("first realization failed: %v", err)
	}
	if first.Processed() != 6 {
		t.Fatalf("expected 6 processed events, got %d", first.Processed())
	}

	second, err := e.RealizeDueEventsForGrant(context.Background(), g.ID, asOf)
	if err != nil {
		t.Fatalf("second realization failed: %v", err)
	}
	if !second.Empty() {
		t.Errorf("re-realization should touch nothing, processed %d cancelled %d",
			second.Processed(), len(second.Cancelled))
	}

	txns, err := e.ListTransactions(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txns) != 6 {
		t.Errorf("ledger grew on re-realization: %d rows", len(txns))
	}
}

func TestRealizeInsufficientSharesCancelsEvent(t *testing.T) {
	asOf := testStart.AddDate(0, 2, 0)
	e, st := newTestEngine(t, asOf)
	sched := createSchedule(t, e, 12, 1, 0)

	// Grant holds 50 unvested shares; seeded events demand 30 then 40.
	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		ScheduleID:    sched.ID,
		Trigger:       grant.TriggerScheduled,
		GrantedShares: 50,
		PeriodStart:   testStart,
	})
	seeded := seedEvents(t, st, g.ID, []types.Shares{30, 40}, testStart.AddDate(0, 1, 0))

	result, err := e.RealizeDueEventsForGrant(context.Background(), g.ID, asOf)
	if err != nil {
		t.Fatalf("RealizeDueEventsForGrant failed: %v", err)
	}
	if result.Processed() != 1 {
		t.Fatalf("expected 1 processed event, got %d", result.Processed())
	}
	if len(result.Cancelled) != 1 {
		t.Fatalf("expected 1 cancelled event, got %d", len(result.Cancelled))
	}
	if result.Cancelled[0].CancelReason != event.CancelInsufficientShares {
		t.Errorf("cancel reason: got %q", result.Cancelled[0].CancelReason)
	}

	stored, err := e.GetGrant(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if stored.VestedShares != 30 {
		t.Errorf("vested: got %d, want 30", stored.VestedShares)
	}
	if stored.UnvestedShares != 20 {
		t.Errorf("unvested: got %d, want 20", stored.UnvestedShares)
	}

	// Cancellation is terminal: re-realizing never revives the event.
	again, err := e.RealizeDueEventsForGrant(context.Background(), g.ID, asOf)
	if err != nil {
		t.Fatalf("re-realization failed: %v", err)
	}
	if !again.Empty() {
		t.Error("cancelled event was picked up again")
	}

	events, err := e.ListEvents(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	statuses := map[string]event.Status{}
	for _, ev := range events {
		statuses[ev.ID.String()] = ev.Status
	}
	if statuses[seeded[0].ID.String()] != event.StatusProcessed {
		t.Errorf("first event: status %q, want processed", statuses[seeded[0].ID.String()])
	}
	if statuses[seeded[1].ID.String()] != event.StatusCancelled {
		t.Errorf("second event: status %q, want cancelled", statuses[seeded[1].ID.String()])
	}

	if err := e.VerifyLedger(context.Background(), g.ID); err != nil {
		t.Errorf("VerifyLedger failed: %v", err)
	}
}

func TestRealizePaymentTriggeredEvent(t *testing.T) {
	e, _ := newTestEngine(t, testStart)

	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		Trigger:       grant.TriggerInvoicePaid,
		GrantedShares: 1000,
		PeriodStart:   testStart,
	})

	paymentID := id.NewPaymentID()
	result, err := e.RealizePaymentTriggeredEvent(context.Background(), g.ID, paymentID, 250)
	if err != nil {
		t.Fatalf("RealizePaymentTriggeredEvent failed: %v", err)
	}
	if result.Processed() != 1 {
		t.Fatalf("expected 1 processed event, got %d", result.Processed())
	}

	txn := result.Transactions[0]
	if txn.Kind != transaction.KindVestingPostInvoicePayment {
		t.Errorf("kind: got %q", txn.Kind)
	}
	if txn.PaymentID.String() != paymentID.String() {
		t.Errorf("payment ref: got %q, want %q", txn.PaymentID, paymentID)
	}

	stored, err := e.GetGrant(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if stored.VestedShares != 250 {
		t.Errorf("vested: got %d, want 250", stored.VestedShares)
	}
	if stored.UnvestedShares != 750 {
		t.Errorf("unvested: got %d, want 750", stored.UnvestedShares)
	}

	if err := e.VerifyLedger(context.Background(), g.ID); err != nil {
		t.Errorf("VerifyLedger failed: %v", err)
	}
}

func TestRealizePaymentTriggerMismatch(t *testing.T) {
	e, _ := newTestEngine(t, testStart)
	sched := createSchedule(t, e, 12, 1, 0)

	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		ScheduleID:    sched.ID,
		Trigger:       grant.TriggerScheduled,
		GrantedShares: 1000,
		PeriodStart:   testStart,
	})

	_, err := e.RealizePaymentTriggeredEvent(context.Background(), g.ID, id.NewPaymentID(), 100)
	if !errors.Is(err, vesting.ErrTriggerMismatch) {
		t.Errorf("expected ErrTriggerMismatch, got %v", err)
	}
}

func TestRealizePaymentInsufficientSharesCancels(t *testing.T) {
	e, _ := newTestEngine(t, testStart)

	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		Trigger:       grant.TriggerInvoicePaid,
		GrantedShares: 100,
		PeriodStart:   testStart,
	})

	// Demand exceeds the unvested balance: recorded as a cancellation,
	// not an error.
	result, err := e.RealizePaymentTriggeredEvent(context.Background(), g.ID, id.NewPaymentID(), 150)
	if err != nil {
		t.Fatalf("RealizePaymentTriggeredEvent failed: %v", err)
	}
	if result.Processed() != 0 {
		t.Errorf("expected no processed events, got %d", result.Processed())
	}
	if len(result.Cancelled) != 1 {
		t.Fatalf("expected 1 cancelled event, got %d", len(result.Cancelled))
	}

	stored, err := e.GetGrant(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if stored.UnvestedShares != 100 {
		t.Errorf("unvested should be untouched, got %d", stored.UnvestedShares)
	}
}

func TestRealizeDueEventsSweep(t *testing.T) {
	asOf := testStart.AddDate(0, 3, 0)
	e, _ := newTestEngine(t, asOf)
	sched := createSchedule(t, e, 12, 1, 0)

	for _, holder := range []string{"emp_1", "emp_2"} {
		g := createGrant(t, e, &grant.Grant{
			HolderID:      holder,
			ScheduleID:    sched.ID,
			Trigger:       grant.TriggerScheduled,
			GrantedShares: 1200,
			PeriodStart:   testStart,
		})
		if _, err := e.GenerateSchedule(context.Background(), g.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
	}

	sweep, err := e.RealizeDueEvents(context.Background(), asOf)
	if err != nil {
		t.Fatalf("RealizeDueEvents failed: %v", err)
	}
	if sweep.Grants != 2 {
		t.Errorf("grants: got %d, want 2", sweep.Grants)
	}
	if sweep.Processed != 6 {
		t.Errorf("processed: got %d, want 6", sweep.Processed)
	}
	if sweep.Failed != 0 {
		t.Errorf("failed: got %d, want 0", sweep.Failed)
	}

	// An immediate re-sweep finds nothing due.
	again, err := e.RealizeDueEvents(context.Background(), asOf)
	if err != nil {
		t.Fatalf("re-sweep failed: %v", err)
	}
	if again.Grants != 0 || again.Processed != 0 {
		t.Errorf("re-sweep touched %d grants, %d events", again.Grants, again.Processed)
	}
}

// flakyStore wraps the memory store and injects realization failures
// for chosen grants, to shape sweep retry and isolation scenarios.
type flakyStore struct {
	*memory.Store

	mu        sync.Mutex
	transient map[string]int  // remaining retryable failures per grant
	broken    map[string]bool // always fail, non-retryable
	attempts  map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		Store:     memory.New(),
		transient: map[string]int{},
		broken:    map[string]bool{},
		attempts:  map[string]int{},
	}
}

var errRowCorrupted = errors.New("grant row corrupted")

func (s *flakyStore) RealizeGrant(ctx context.Context, grantID id.GrantID, fn func(ctx context.Context, tx store.RealizeTx) error) error {
	key := grantID.String()

	s.mu.Lock()
	s.attempts[key]++
	if s.broken[key] {
		s.mu.Unlock()
		return errRowCorrupted
	}
	if s.transient[key] > 0 {
		s.transient[key]--
		s.mu.Unlock()
		return fmt.Errorf("%w: store briefly offline", vesting.ErrTransactionFailed)
	}
	s.mu.Unlock()

	return s.Store.RealizeGrant(ctx, grantID, fn)
}

func TestRealizeDueEventsSweepIsolatesFailures(t *testing.T) {
	asOf := testStart.AddDate(0, 1, 0)

	st := newFlakyStore()
	e := vesting.New(st,
		vesting.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vesting.WithSweepInterval(0),
		vesting.WithSweepRetries(2),
		vesting.WithClock(func() time.Time { return asOf }),
	)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	sched := createSchedule(t, e, 12, 1, 0)
	newGrant := func(holder string) *grant.Grant {
		g := createGrant(t, e, &grant.Grant{
			HolderID:      holder,
			ScheduleID:    sched.ID,
			Trigger:       grant.TriggerScheduled,
			GrantedShares: 1200,
			PeriodStart:   testStart,
		})
		if _, err := e.GenerateSchedule(context.Background(), g.ID); err != nil {
			t.Fatalf("GenerateSchedule failed: %v", err)
		}
		return g
	}

	healthy := newGrant("emp_1")
	shaky := newGrant("emp_2")
	corrupted := newGrant("emp_3")

	st.transient[shaky.ID.String()] = 1
	st.broken[corrupted.ID.String()] = true

	sweep, err := e.RealizeDueEvents(context.Background(), asOf)
	if err != nil {
		t.Fatalf("RealizeDueEvents failed: %v", err)
	}
	if sweep.Grants != 3 {
		t.Errorf("grants: got %d, want 3", sweep.Grants)
	}
	if sweep.Processed != 2 {
		t.Errorf("processed: got %d, want 2", sweep.Processed)
	}
	if sweep.Failed != 1 {
		t.Errorf("failed: got %d, want 1", sweep.Failed)
	}

	// A retryable failure gets a second attempt; a non-retryable one
	// fails immediately without burning the retry budget.
	if got := st.attempts[shaky.ID.String()]; got != 2 {
		t.Errorf("shaky grant attempts: got %d, want 2", got)
	}
	if got := st.attempts[corrupted.ID.String()]; got != 1 {
		t.Errorf("corrupted grant attempts: got %d, want 1", got)
	}
	if got := st.attempts[healthy.ID.String()]; got != 1 {
		t.Errorf("healthy grant attempts: got %d, want 1", got)
	}

	for _, g := range []*grant.Grant{healthy, shaky} {
		stored, err := e.GetGrant(context.Background(), g.ID)
		if err != nil {
			t.Fatalf("GetGrant failed: %v", err)
		}
		if stored.VestedShares != 100 {
			t.Errorf("%s: vested %d, want 100", stored.HolderID, stored.VestedShares)
		}
	}

	// The failed grant is untouched and self-heals on a later sweep.
	stored, err := e.GetGrant(context.Background(), corrupted.ID)
	if err != nil {
		t.Fatalf("GetGrant failed: %v", err)
	}
	if stored.VestedShares != 0 {
		t.Errorf("failed grant vested %d, want 0", stored.VestedShares)
	}

	st.mu.Lock()
	delete(st.broken, corrupted.ID.String())
	st.mu.Unlock()

	again, err := e.RealizeDueEvents(context.Background(), asOf)
	if err != nil {
		t.Fatalf("follow-up sweep failed: %v", err)
	}
	if again.Grants != 1 || again.Processed != 1 || again.Failed != 0 {
		t.Errorf("follow-up sweep: grants %d processed %d failed %d, want 1/1/0",
			again.Grants, again.Processed, again.Failed)
	}
}

func TestRealizeSweepRetriesExhaust(t *testing.T) {
	asOf := testStart.AddDate(0, 1, 0)

	st := newFlakyStore()
	e := vesting.New(st,
		vesting.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vesting.WithSweepInterval(0),
		vesting.WithSweepRetries(2),
		vesting.WithClock(func() time.Time { return asOf }),
	)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	sched := createSchedule(t, e, 12, 1, 0)
	g := createGrant(t, e, &grant.Grant{
		HolderID:      "emp_1",
		ScheduleID:    sched.ID,
		Trigger:       grant.TriggerScheduled,
		GrantedShares: 1200,
		PeriodStart:   testStart,
	})
	if _, err := e.GenerateSchedule(context.Background(), g.ID); err != nil {
		t.Fatalf("GenerateSchedule failed: %v", err)
	}

	// More transient failures than the retry budget allows.
	st.transient[g.ID.String()] = 5

	sweep, err := e.RealizeDueEvents(context.Background(), asOf)
	if err != nil {
		t.Fatalf("RealizeDueEvents failed: %v", err)
	}
	if sweep.Failed != 1 {
		t.Errorf("failed: got %d, want 1", sweep.Failed)
	}
	if sweep.Processed != 0 {
		t.Errorf("processed: got %d, want 0", sweep.Processed)
	}
	if got := st.attempts[g.ID.String()]; got != 2 {
		t.Errorf("attempts: got %d, want retry budget of 2", got)
	}
}

func TestRealizeUnknownGrant(t *testing.T) {
	e, _ := newTestEngine(t, testStart)

	_, err := e.RealizeDueEventsForGrant(context.Background(), id.NewGrantID(), testStart)
	if !vesting.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}
