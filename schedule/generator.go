package schedule

import (
	"time"

	"github.com/xraph/vesting/types"
)

// Tranche is one (date, share count) unit of a generated vesting plan.
type Tranche struct {
	Date   time.Time    `json:"date"`
	Shares types.Shares `json:"shares"`
}

// Generate derives the ordered tranche plan for totalShares vesting from
// periodStart under schedule s. It is a pure function: no I/O, no clock.
//
// Tranche i (1-based) is dated periodStart + i*frequency months. Every
// tranche receives floor(totalShares/count) shares except the last, which
// absorbs the exact remainder so the plan always sums to totalShares.
// When the schedule has a cliff, all tranches dated on or before the
// cliff date collapse into a single tranche at the cliff date carrying
// their combined shares; tranches after the cliff are untouched.
//
// Returns nil when floor(totalShares/count) is zero: a grant too small to
// tranche produces no plan and is left fully unvested by the caller.
func Generate(totalShares types.Shares, periodStart time.Time, s *Schedule) []Tranche {
	count := s.TrancheCount()

	parts := totalShares.Split(count)
	if parts == nil {
		return nil
	}

	tranches := make([]Tranche, count)
	for i := range parts {
		tranches[i] = Tranche{
			Date:   periodStart.AddDate(0, (i+1)*s.FrequencyMonths, 0),
			Shares: parts[i],
		}
	}

	if s.CliffMonths > 0 {
		tranches = collapseCliff(tranches, periodStart.AddDate(0, s.CliffMonths, 0))
	}

	return tranches
}

// collapseCliff replaces every tranche dated on or before cliffDate with
// a single tranche at cliffDate carrying their combined shares. Tranches
// strictly after the cliff keep their own dates. Shares that would have
// vested piecemeal before the cliff legally vest only once it passes.
func collapseCliff(tranches []Tranche, cliffDate time.Time) []Tranche {
	var combined types.Shares
	after := tranches[:0:0]

	for _, t := range tranches {
		if t.Date.After(cliffDate) {
			after = append(after, t)
		} else {
			combined = combined.Add(t.Shares)
		}
	}

	if combined.IsZero() {
		return after
	}

	result := make([]Tranche, 0, len(after)+1)
	result = append(result, Tranche{Date: cliffDate, Shares: combined})
	return append(result, after...)
}
