// Package mathx holds the numeric helpers shared by the ledger components:
// 2-decimal rounding, clamping, time bucketing, and the seeded hash-to-[0,1)
// generator behind APY and quote estimation.
package mathx

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round2 rounds to 2 decimal places, half away from zero. All monetary and
// point values in the system pass through this.
func Round2(value float64) float64 {
	f, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return f
}

// Clamp restricts value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// FloorToMinutes floors t to the start of its n-minute bucket.
func FloorToMinutes(t time.Time, minutes int) time.Time {
	bucket := time.Duration(minutes) * time.Minute
	return t.Truncate(bucket)
}

// DeterministicNumber maps a seed string to [0, 1). The generator is a plain
// 31-multiplier rolling hash over the seed bytes, reduced modulo 2^32 and
// scaled by 2^32-1. Identical seeds always produce identical values, which is
// what makes APY buckets and quote windows reproducible in tests.
func DeterministicNumber(seed string) float64 {
	var hash uint32
	for i := 0; i < len(seed); i++ {
		hash = hash*31 + uint32(seed[i])
	}
	return float64(hash) / 4294967295
}
