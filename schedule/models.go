// Package schedule defines reusable vesting schedule definitions and the
// pure tranche generator that derives dated vesting events from them.
package schedule

import (
	"fmt"

	"github.com/xraph/vesting/id"
	"github.com/xraph/vesting/types"
)

// Schedule is a reusable vesting definition. Immutable once referenced by
// a grant.
type Schedule struct {
	types.Entity
	ID   id.ScheduleID `json:"id"`
	Name string        `json:"name"`

	// DurationMonths is the total vesting duration.
	DurationMonths int `json:"duration_months"`

	// FrequencyMonths is the spacing between tranches.
	FrequencyMonths int `json:"frequency_months"`

	// CliffMonths is the initial period during which no shares vest.
	// Zero means no cliff.
	CliffMonths int `json:"cliff_months"`
}

// Validate checks that the schedule parameters can produce a tranche plan.
func (s *Schedule) Validate() error {
	if s.DurationMonths <= 0 {
		return fmt.Errorf("schedule: duration must be positive, got %d", s.DurationMonths)
	}
	if s.FrequencyMonths <= 0 {
		return fmt.Errorf("schedule: frequency must be positive, got %d", s.FrequencyMonths)
	}
	if s.FrequencyMonths > s.DurationMonths {
		return fmt.Errorf("schedule: frequency %d exceeds duration %d", s.FrequencyMonths, s.DurationMonths)
	}
	if s.CliffMonths < 0 {
		return fmt.Errorf("schedule: cliff must not be negative, got %d", s.CliffMonths)
	}
	return nil
}

// TrancheCount returns the number of tranches the schedule divides a
// grant into (integer division, per the vesting contract).
func (s *Schedule) TrancheCount() int {
	return s.DurationMonths / s.FrequencyMonths
}
