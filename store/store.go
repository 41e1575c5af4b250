package store

import (
	"context"
	"time"

	"github.com/xraph/vesting/event"
	"github.com/xraph/vesting/grant"
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/transaction"
	"github.com/xraph/vesting/types"
)

// Store is the unified storage interface for all vesting entities.
// Instead of embedding sub-interfaces, all methods are declared
// explicitly to avoid naming conflicts.
//
// The transactions table is append-only: no implementation may issue
// update or delete statements against it.
type Store interface {
	// Grant methods
	CreateGrant(ctx context.Context, g *grant.Grant) error
	GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error)
	ListGrants(ctx context.Context, holderID string, opts grant.ListOpts) ([]*grant.Grant, error)

	// ListGrantIDsWithDueEvents returns the IDs of every grant holding at
	// least one pending event dated on or before asOf. Candidate
	// selection for the calendar sweep.
	ListGrantIDsWithDueEvents(ctx context.Context, asOf time.Time) ([]id.GrantID, error)

	// Schedule methods
	CreateSchedule(ctx context.Context, s *schedule.Schedule) error
	GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Schedule, error)

	// Event methods
	CreateEvents(ctx context.Context, events []*event.Event) error
	ListEvents(ctx context.Context, grantID id.GrantID) ([]*event.Event, error)
	CountEvents(ctx context.Context, grantID id.GrantID) (int, error)

	// Ledger methods
	ListTransactions(ctx context.Context, grantID id.GrantID) ([]*transaction.Transaction, error)

	// RealizeGrant runs fn inside one storage transaction holding an
	// exclusive lock scoped to the grant. Two batches for the same grant
	// never interleave; batches for different grants run independently.
	// If fn or any RealizeTx operation returns an error the whole batch
	// rolls back: no counter update, ledger row, or status change
	// survives a partial failure.
	RealizeGrant(ctx context.Context, grantID id.GrantID, fn func(ctx context.Context, tx RealizeTx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// RealizeTx is the view of a store available inside one realization
// batch. Implementations back it with a database transaction; the
// in-memory store stages mutations and applies them on commit.
type RealizeTx interface {
	// Grant returns the batch's grant, locked for the remainder of the
	// transaction. Callers must invoke Grant before any mutation so the
	// lock covers the counter read.
	Grant(ctx context.Context) (*grant.Grant, error)

	// PendingEventsDue returns the grant's pending events dated on or
	// before asOf, ordered ascending by date.
	PendingEventsDue(ctx context.Context, asOf time.Time) ([]*event.Event, error)

	// InsertEvent stores a synthesized event (payment-triggered path).
	InsertEvent(ctx context.Context, ev *event.Event) error

	MarkEventProcessed(ctx context.Context, eventID id.EventID, at time.Time) error
	MarkEventCancelled(ctx context.Context, eventID id.EventID, reason event.CancelReason, at time.Time) error

	AppendTransaction(ctx context.Context, txn *transaction.Transaction) error

	// UpdateGrantCounters persists the batch's final vested/unvested
	// values. Called at most once per batch.
	UpdateGrantCounters(ctx context.Context, vested, unvested types.Shares) error
}
