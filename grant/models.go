// Package grant defines the equity grant aggregate: one award of options
// or shares to one holder, with its running share counters.
package grant

import (
	"time"

	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/types"
)

// TriggerKind determines how a grant's shares vest.
type TriggerKind string

const (
	// TriggerScheduled vests on a calendar schedule derived from the
	// grant's vesting schedule definition.
	TriggerScheduled TriggerKind = "scheduled"

	// TriggerInvoicePaid vests upon linked invoice payments completing.
	// Grants of this kind carry no pre-generated events; each completed
	// payment supplies the event to realize.
	TriggerInvoicePaid TriggerKind = "invoice_paid"
)

// Grant is one equity award. The core numbers (granted shares, period,
// trigger kind, schedule reference) are immutable after creation; the
// vested/unvested counters are mutated exclusively by the realizer.
type Grant struct {
	types.Entity
	ID         id.GrantID    `json:"id"`
	HolderID   string        `json:"holder_id"`
	ScheduleID id.ScheduleID `json:"schedule_id,omitempty"`
	Trigger    TriggerKind   `json:"trigger"`

	GrantedShares   types.Shares `json:"granted_shares"`
	VestedShares    types.Shares `json:"vested_shares"`
	UnvestedShares  types.Shares `json:"unvested_shares"`
	ExercisedShares types.Shares `json:"exercised_shares"`
	ForfeitedShares types.Shares `json:"forfeited_shares"`

	PeriodStart time.Time         `json:"period_start"`
	PeriodEnd   time.Time         `json:"period_end"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CountersConsistent reports whether the share counters respect the grant
// invariant: vested + unvested + exercised + forfeited never exceeds the
// total granted, and no counter is negative.
func (g *Grant) CountersConsistent() bool {
	if g.VestedShares.IsNegative() || g.UnvestedShares.IsNegative() ||
		g.ExercisedShares.IsNegative() || g.ForfeitedShares.IsNegative() {
		return false
	}
	accounted := types.Sum(g.VestedShares, g.UnvestedShares, g.ExercisedShares, g.ForfeitedShares)
	return accounted <= g.GrantedShares
}

// Outstanding returns the shares not yet accounted for by any counter.
func (g *Grant) Outstanding() types.Shares {
	return g.GrantedShares -
		types.Sum(g.VestedShares, g.UnvestedShares, g.ExercisedShares, g.ForfeitedShares)
}

// ListOpts filters grant listings.
type ListOpts struct {
	Trigger TriggerKind
	Limit   int
	Offset  int
}
