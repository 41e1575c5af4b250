package types_test

import (
	"testing"

	"github.com/xraph/vesting/types"
)

func TestSharesArithmetic(t *testing.T) {
	a := types.Shares(100)
	b := types.Shares(40)

	if got := a.Add(b); got != 140 {
		t.Errorf("Add: got %d, want 140", got)
	}
	if got := a.Subtract(b); got != 60 {
		t.Errorf("Subtract: got %d, want 60", got)
	}
	if !types.Shares(0).IsZero() {
		t.Error("IsZero: zero shares should be zero")
	}
	if !a.IsPositive() {
		t.Error("IsPositive: 100 should be positive")
	}
	if !b.Subtract(a).IsNegative() {
		t.Error("IsNegative: 40-100 should be negative")
	}
}

func TestSharesSplit(t *testing.T) {
	tests := []struct {
		name  string
		total types.Shares
		n     int
		want  []types.Shares
	}{
		{"even", 100, 4, []types.Shares{25, 25, 25, 25}},
		{"remainder to last", 100, 3, []types.Shares{33, 33, 34}},
		{"single part", 100, 1, []types.Shares{100}},
		{"per-part zero", 2, 3, nil},
		{"zero parts", 100, 0, nil},
		{"negative parts", 100, -1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.total.Split(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("Split(%d, %d): got %v, want %v", tt.total, tt.n, got, tt.want)
			}
			var sum types.Shares
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("part %d: got %d, want %d", i, got[i], tt.want[i])
				}
				sum = sum.Add(got[i])
			}
			if len(got) > 0 && sum != tt.total {
				t.Errorf("parts sum to %d, want %d", sum, tt.total)
			}
		})
	}
}

func TestSum(t *testing.T) {
	if got := types.Sum(10, 20, 30); got != 60 {
		t.Errorf("Sum: got %d, want 60", got)
	}
	if got := types.Sum(); got != 0 {
		t.Errorf("Sum(): got %d, want 0", got)
	}
}
