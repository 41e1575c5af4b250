// Package event defines vesting events: the scheduled tranches of a
// grant, each moving through a pending → processed | cancelled lifecycle.
package event

import (
	"time"

	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/types"
)

// Status is the lifecycle state of a vesting event. Processed and
// cancelled are terminal; an event never reopens.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusCancelled Status = "cancelled"
)

// CancelReason records why a pending event was cancelled instead of
// processed.
type CancelReason string

const (
	// CancelInsufficientShares marks an event whose share count exceeded
	// the grant's remaining unvested balance at realization time. This is
	// a recorded business outcome, not an error.
	CancelInsufficientShares CancelReason = "insufficient_shares_available"
)

// Event is one vesting tranche belonging to one grant.
type Event struct {
	types.Entity
	ID      id.EventID   `json:"id"`
	GrantID id.GrantID   `json:"grant_id"`
	Date    time.Time    `json:"date"`
	Shares  types.Shares `json:"shares"`
	Status  Status       `json:"status"`

	CancelReason CancelReason `json:"cancel_reason,omitempty"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
	CancelledAt  *time.Time   `json:"cancelled_at,omitempty"`
}

// IsTerminal reports whether the event has reached a final status.
func (e *Event) IsTerminal() bool {
	return e.Status == StatusProcessed || e.Status == StatusCancelled
}

// DueBy reports whether a pending event is due on or before asOf.
func (e *Event) DueBy(asOf time.Time) bool {
	return e.Status == StatusPending && !e.Date.After(asOf)
}
