package schedule_test

import (
	"testing"
	"time"

	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/types"
)

var start = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func sumTranches(tranches []schedule.Tranche) types.Shares {
	var total types.Shares
	for _, t := range tranches {
		total = total.Add(t.Shares)
	}
	return total
}

func TestGenerateEvenSplit(t *testing.T) {
	s := &schedule.Schedule{DurationMonths: 48, FrequencyMonths: 1}
	tranches := schedule.Generate(4800, start, s)

	if len(tranches) != 48 {
		t.Fatalf("expected 48 tranches, got %d", len(tranches))
	}
	for i, tr := range tranches {
		if tr.Shares != 100 {
			t.Errorf("tranche %d: expected 100 shares, got %d", i, tr.Shares)
		}
		want := start.AddDate(0, i+1, 0)
		if !tr.Date.Equal(want) {
			t.Errorf("tranche %d: expected date %v, got %v", i, want, tr.Date)
		}
	}
	if got := sumTranches(tranches); got != 4800 {
		t.Errorf("tranches sum to %d, want 4800", got)
	}
}

func TestGenerateRemainderAbsorbedByLastTranche(t *testing.T) {
	tests := []struct {
		name     string
		total    types.Shares
		duration int
		freq     int
		want     []types.Shares
	}{
		{"100 over 3", 100, 36, 12, []types.Shares{33, 33, 34}},
		{"10 over 4", 10, 48, 12, []types.Shares{2, 2, 2, 4}},
		{"7 over 2", 7, 24, 12, []types.Shares{3, 4}},
		{"exact split", 300, 36, 12, []types.Shares{100, 100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &schedule.Schedule{DurationMonths: tt.duration, FrequencyMonths: tt.freq}
			tranches := schedule.Generate(tt.total, start, s)

			if len(tranches) != len(tt.want) {
				t.Fatalf("expected %d tranches, got %d", len(tt.want), len(tranches))
			}
			for i, want := range tt.want {
				if tranches[i].Shares != want {
					t.Errorf("tranche %d: expected %d shares, got %d", i, want, tranches[i].Shares)
				}
			}
			if got := sumTranches(tranches); got != tt.total {
				t.Errorf("tranches sum to %d, want %d", got, tt.total)
			}
		})
	}
}

func TestGenerateTooSmallToTranche(t *testing.T) {
	// 5 shares over 12 tranches: floor(5/12) is zero, no plan.
	s := &schedule.Schedule{DurationMonths: 12, FrequencyMonths: 1}
	if tranches := schedule.Generate(5, start, s); tranches != nil {
		t.Errorf("expected nil plan, got %d tranches", len(tranches))
	}
}

func TestGenerateCliffCollapse(t *testing.T) {
	// 48 monthly tranches with a 12-month cliff: the first 12 collapse
	// into one tranche at the cliff date.
	s := &schedule.Schedule{DurationMonths: 48, FrequencyMonths: 1, CliffMonths: 12}
	tranches := schedule.Generate(4800, start, s)

	if len(tranches) != 37 {
		t.Fatalf("expected 37 tranches, got %d", len(tranches))
	}

	cliffDate := start.AddDate(0, 12, 0)
	if !tranches[0].Date.Equal(cliffDate) {
		t.Errorf("cliff tranche date: expected %v, got %v", cliffDate, tranches[0].Date)
	}
	if tranches[0].Shares != 1200 {
		t.Errorf("cliff tranche: expected 1200 shares, got %d", tranches[0].Shares)
	}

	// First post-cliff tranche keeps its own date and share count.
	if want := start.AddDate(0, 13, 0); !tranches[1].Date.Equal(want) {
		t.Errorf("post-cliff tranche date: expected %v, got %v", want, tranches[1].Date)
	}
	if tranches[1].Shares != 100 {
		t.Errorf("post-cliff tranche: expected 100 shares, got %d", tranches[1].Shares)
	}

	if got := sumTranches(tranches); got != 4800 {
		t.Errorf("tranches sum to %d, want 4800", got)
	}
}

func TestGenerateCliffCoversEntireSchedule(t *testing.T) {
	// Cliff at or beyond the last tranche date collapses everything into
	// a single tranche.
	s := &schedule.Schedule{DurationMonths: 12, FrequencyMonths: 3, CliffMonths: 12}
	tranches := schedule.Generate(400, start, s)

	if len(tranches) != 1 {
		t.Fatalf("expected 1 tranche, got %d", len(tranches))
	}
	if !tranches[0].Date.Equal(start.AddDate(0, 12, 0)) {
		t.Errorf("unexpected cliff date %v", tranches[0].Date)
	}
	if tranches[0].Shares != 400 {
		t.Errorf("expected all 400 shares at cliff, got %d", tranches[0].Shares)
	}
}

func TestGenerateCliffBetweenTranches(t *testing.T) {
	// Quarterly tranches with a 4-month cliff: only the first quarterly
	// tranche (month 3) falls inside the cliff.
	s := &schedule.Schedule{DurationMonths: 12, FrequencyMonths: 3, CliffMonths: 4}
	tranches := schedule.Generate(400, start, s)

	if len(tranches) != 4 {
		t.Fatalf("expected 4 tranches, got %d", len(tranches))
	}
	if !tranches[0].Date.Equal(start.AddDate(0, 4, 0)) {
		t.Errorf("cliff tranche date: got %v", tranches[0].Date)
	}
	if tranches[0].Shares != 100 {
		t.Errorf("cliff tranche: expected 100 shares, got %d", tranches[0].Shares)
	}
	if !tranches[1].Date.Equal(start.AddDate(0, 6, 0)) {
		t.Errorf("second tranche date: got %v", tranches[1].Date)
	}
}

func TestScheduleValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       schedule.Schedule
		wantErr bool
	}{
		{"valid", schedule.Schedule{DurationMonths: 48, FrequencyMonths: 1}, false},
		{"valid with cliff", schedule.Schedule{DurationMonths: 48, FrequencyMonths: 1, CliffMonths: 12}, false},
		{"zero duration", schedule.Schedule{DurationMonths: 0, FrequencyMonths: 1}, true},
		{"zero frequency", schedule.Schedule{DurationMonths: 48, FrequencyMonths: 0}, true},
		{"frequency exceeds duration", schedule.Schedule{DurationMonths: 6, FrequencyMonths: 12}, true},
		{"negative cliff", schedule.Schedule{DurationMonths: 48, FrequencyMonths: 1, CliffMonths: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTrancheCount(t *testing.T) {
	tests := []struct {
		duration, freq, want int
	}{
		{48, 1, 48},
		{48, 12, 4},
		{36, 12, 3},
		{13, 12, 1}, // truncating division
	}

	for _, tt := range tests {
		s := &schedule.Schedule{DurationMonths: tt.duration, FrequencyMonths: tt.freq}
		if got := s.TrancheCount(); got != tt.want {
			t.Errorf("TrancheCount(%d/%d) = %d, want %d", tt.duration, tt.freq, got, tt.want)
		}
	}
}
