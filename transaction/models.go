// Package transaction defines the append-only equity grant ledger: one
// immutable audit row per realized vesting event, each carrying a full
// running-balance snapshot of the grant's counters.
package transaction

import (
	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/types"
)

// Kind identifies which trigger path realized the event.
type Kind string

const (
	KindScheduledVesting          Kind = "scheduled_vesting"
	KindVestingPostInvoicePayment Kind = "vesting_post_invoice_payment"
)

// Snapshot is the grant's complete counter state as of immediately after
// one ledger row. Row N's snapshot must equal row N-1's snapshot plus
// row N's delta: the ledger is a verifiable running balance, not just a
// list of deltas.
type Snapshot struct {
	Granted   types.Shares `json:"granted"`
	Vested    types.Shares `json:"vested"`
	Unvested  types.Shares `json:"unvested"`
	Exercised types.Shares `json:"exercised"`
	Forfeited types.Shares `json:"forfeited"`
}

// Transaction is one ledger row. Rows are written exactly once per
// realized event and never updated or deleted.
type Transaction struct {
	types.Entity
	ID        id.TransactionID `json:"id"`
	GrantID   id.GrantID       `json:"grant_id"`
	EventID   id.EventID       `json:"event_id"`
	PaymentID id.PaymentID     `json:"payment_id,omitempty"`
	Kind      Kind             `json:"kind"`

	// Shares is the vested-share delta this row records.
	Shares types.Shares `json:"shares"`

	// Snapshot is the grant's counters immediately after this row.
	Snapshot Snapshot `json:"snapshot"`
}

// Follows reports whether this row's snapshot is consistent with prev
// plus this row's delta. Pass the zero Snapshot for the first row check
// against the grant's pre-vesting state.
func (t *Transaction) Follows(prev Snapshot) bool {
	return t.Snapshot.Granted == prev.Granted &&
		t.Snapshot.Vested == prev.Vested.Add(t.Shares) &&
		t.Snapshot.Unvested == prev.Unvested.Subtract(t.Shares) &&
		t.Snapshot.Exercised == prev.Exercised &&
		t.Snapshot.Forfeited == prev.Forfeited
}
