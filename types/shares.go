// Package types provides common types used across the vesting engine.
package types

import "fmt"

// Shares is a count of equity shares. All share math is integer-only —
// fractional shares never exist, so any division must account for its
// remainder explicitly (see Split).
type Shares int64

// Count creates a Shares value from an integer.
func Count(n int64) Shares { return Shares(n) }

// Add adds two share counts.
func (s Shares) Add(other Shares) Shares { return s + other }

// Subtract subtracts another share count.
func (s Shares) Subtract(other Shares) Shares { return s - other }

// IsZero returns true if the count is zero.
func (s Shares) IsZero() bool { return s == 0 }

// IsPositive returns true if the count is greater than zero.
func (s Shares) IsPositive() bool { return s > 0 }

// IsNegative returns true if the count is less than zero.
func (s Shares) IsNegative() bool { return s < 0 }

// Int64 returns the count as a plain int64.
func (s Shares) Int64() int64 { return int64(s) }

// String returns the count as a decimal string.
func (s Shares) String() string { return fmt.Sprintf("%d", int64(s)) }

// Split divides the count into n parts that sum exactly to s. Every part
// receives floor(s/n) shares and the last part absorbs the remainder, so
// no shares are lost or double-counted. Returns nil when n <= 0 or when
// floor(s/n) is zero — a count too small to split n ways yields no parts
// rather than zero-share parts.
func (s Shares) Split(n int) []Shares {
	if n <= 0 {
		return nil
	}

	per := s / Shares(n)
	if per == 0 {
		return nil
	}

	parts := make([]Shares, n)
	var assigned Shares
	for i := 0; i < n-1; i++ {
		parts[i] = per
		assigned += per
	}
	parts[n-1] = s - assigned
	return parts
}

// Sum calculates the sum of multiple share counts.
func Sum(values ...Shares) Shares {
	var total Shares
	for _, v := range values {
		total += v
	}
	return total
}
