// Package memory provides an in-memory store implementation, used in
// tests and embedded demos. Realization batches stage their mutations
// and apply them atomically on commit, mirroring the transactional
// semantics of the SQL backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	vesting "github.com/xraph/vesting"
	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/store"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	grants       map[string]*grant.Grant
	schedules    map[string]*schedule.Schedule
	events       map[string][]*event.Event             // keyed by grant ID
	transactions map[string][]*transaction.Transaction // keyed by grant ID, append order

	// grantLocks serializes realization batches per grant. Batches for
	// different grants proceed in parallel.
	lockMu     sync.Mutex
	grantLocks map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		grants:       make(map[string]*grant.Grant),
		schedules:    make(map[string]*schedule.Schedule),
		events:       make(map[string][]*event.Event),
		transactions: make(map[string][]*transaction.Transaction),
		grantLocks:   make(map[string]*sync.Mutex),
	}
}

// ==================== Grant Store ====================

func (s *Store) CreateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[g.ID.String()]; exists {
		return vesting.ErrAlreadyExists
	}
	cp := *g
	s.grants[g.ID.String()] = &cp
	return nil
}

func (s *Store) GetGrant(_ context.Context, grantID id.GrantID) (*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.grants[grantID.String()]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, vesting.ErrGrantNotFound
}

func (s *Store) ListGrants(_ context.Context, holderID string, opts grant.ListOpts) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*grant.Grant, 0)
	for _, g := range s.grants {
		if g.HolderID == holderID {
			if opts.Trigger == "" || g.Trigger == opts.Trigger {
				cp := *g
				result = append(result, &cp)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) ListGrantIDsWithDueEvents(_ context.Context, asOf time.Time) ([]id.GrantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]id.GrantID, 0)
	for key, events := range s.events {
		for _, ev := range events {
			if ev.DueBy(asOf) {
				gid, err := id.ParseGrantID(key)
				if err != nil {
					return nil, err
				}
				result = append(result, gid)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result, nil
}

// ==================== Schedule Store ====================

func (s *Store) CreateSchedule(_ context.Context, sched *schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[sched.ID.String()]; exists {
		return vesting.ErrAlreadyExists
	}
	cp := *sched
	s.schedules[sched.ID.String()] = &cp
	return nil
}

func (s *Store) GetSchedule(_ context.Context, scheduleID id.ScheduleID) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sched, ok := s.schedules[scheduleID.String()]; ok {
		cp := *sched
		return &cp, nil
	}
	return nil, vesting.ErrScheduleNotFound
}

// ==================== Event Store ====================

func (s *Store) CreateEvents(_ context.Context, events []*event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		key := ev.GrantID.String()
		cp := *ev
		s.events[key] = append(s.events[key], &cp)
	}
	return nil
}

func (s *Store) ListEvents(_ context.Context, grantID id.GrantID) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[grantID.String()]
	result := make([]*event.Event, 0, len(stored))
	for _, ev := range stored {
		cp := *ev
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (s *Store) CountEvents(_ context.Context, grantID id.GrantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.events[grantID.String()]), nil
}

// ==================== Ledger Store ====================

func (s *Store) ListTransactions(_ context.Context, grantID id.GrantID) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.transactions[grantID.String()]
	result := make([]*transaction.Transaction, 0, len(stored))
	for _, txn := range stored {
		cp := *txn
		result = append(result, &cp)
	}
	return result, nil
}

// ==================== Realization ====================

func (s *Store) RealizeGrant(ctx context.Context, grantID id.GrantID, fn func(ctx context.Context, tx store.RealizeTx) error) error {
	lock := s.grantLock(grantID)
	lock.Lock()
	defer lock.Unlock()

	tx := &realizeTx{
		s:         s,
		grantID:   grantID,
		processed: make(map[string]time.Time),
		cancelled: make(map[string]cancellation),
	}

	if err := fn(ctx, tx); err != nil {
		// Staged mutations are discarded: nothing was applied.
		return err
	}

	tx.commit()
	return nil
}

func (s *Store) grantLock(grantID id.GrantID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	key := grantID.String()
	if lock, ok := s.grantLocks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.grantLocks[key] = lock
	return lock
}

type cancellation struct {
	reason event.CancelReason
	at     time.Time
}

// realizeTx stages all mutations of one realization batch. commit applies
// them under the store mutex; abandoning the tx leaves the store intact.
type realizeTx struct {
	s       *Store
	grantID id.GrantID

	inserted  []*event.Event
	processed map[string]time.Time
	cancelled map[string]cancellation
	appended  []*transaction.Transaction

	countersSet bool
	vested      types.Shares
	unvested    types.Shares
}

func (tx *realizeTx) Grant(_ context.Context) (*grant.Grant, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	g, ok := tx.s.grants[tx.grantID.String()]
	if !ok {
		return nil, vesting.ErrGrantNotFound
	}
	cp := *g
	return &cp, nil
}

func (tx *realizeTx) PendingEventsDue(_ context.Context, asOf time.Time) ([]*event.Event, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	result := make([]*event.Event, 0)
	for _, ev := range tx.s.events[tx.grantID.String()] {
		if ev.DueBy(asOf) {
			cp := *ev
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (tx *realizeTx) InsertEvent(_ context.Context, ev *event.Event) error {
	cp := *ev
	tx.inserted = append(tx.inserted, &cp)
	return nil
}

func (tx *realizeTx) MarkEventProcessed(_ context.Context, eventID id.EventID, at time.Time) error {
	if err := tx.checkTransitionable(eventID); err != nil {
		return err
	}
	tx.processed[eventID.String()] = at
	return nil
}

func (tx *realizeTx) MarkEventCancelled(_ context.Context, eventID id.EventID, reason event.CancelReason, at time.Time) error {
	if err := tx.checkTransitionable(eventID); err != nil {
		return err
	}
	tx.cancelled[eventID.String()] = cancellation{reason: reason, at: at}
	return nil
}

func (tx *realizeTx) AppendTransaction(_ context.Context, txn *transaction.Transaction) error {
	cp := *txn
	tx.appended = append(tx.appended, &cp)
	return nil
}

func (tx *realizeTx) UpdateGrantCounters(_ context.Context, vested, unvested types.Shares) error {
	tx.countersSet = true
	tx.vested = vested
	tx.unvested = unvested
	return nil
}

// checkTransitionable verifies the event exists and is still pending,
// counting both stored state and mutations staged earlier in this batch.
func (tx *realizeTx) checkTransitionable(eventID id.EventID) error {
	key := eventID.String()
	if _, dup := tx.processed[key]; dup {
		return vesting.ErrEventTerminal
	}
	if _, dup := tx.cancelled[key]; dup {
		return vesting.ErrEventTerminal
	}
	for _, ev := range tx.inserted {
		if ev.ID.String() == key {
			return nil
		}
	}

	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	for _, ev := range tx.s.events[tx.grantID.String()] {
		if ev.ID.String() == key {
			if ev.IsTerminal() {
				return vesting.ErrEventTerminal
			}
			return nil
		}
	}
	return vesting.ErrEventNotFound
}

func (tx *realizeTx) commit() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	key := tx.grantID.String()

	for _, ev := range tx.inserted {
		tx.s.events[key] = append(tx.s.events[key], ev)
	}

	for _, ev := range tx.s.events[key] {
		evKey := ev.ID.String()
		if at, ok := tx.processed[evKey]; ok {
			ev.Status = event.StatusProcessed
			processedAt := at
			ev.ProcessedAt = &processedAt
			ev.Touch()
		}
		if c, ok := tx.cancelled[evKey]; ok {
			ev.Status = event.StatusCancelled
			ev.CancelReason = c.reason
			cancelledAt := c.at
			ev.CancelledAt = &cancelledAt
			ev.Touch()
		}
	}

	tx.s.transactions[key] = append(tx.s.transactions[key], tx.appended...)

	if tx.countersSet {
		if g, ok := tx.s.grants[key]; ok {
			g.VestedShares = tx.vested
			g.UnvestedShares = tx.unvested
			g.Touch()
		}
	}
}

// ==================== Store management ====================

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
