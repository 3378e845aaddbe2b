package service

import "math"

// roundPercentage computes percent of base in minor units, rounding half up.
func roundPercentage(base int64, percent int) int64 {
	raw := float64(base) * float64(percent) / 100.0
	return int64(math.Floor(raw + 0.5))
}
