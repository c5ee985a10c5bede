package crawler

import "math"

// Discount returns the percentage taken off oldPrice, rounded to two decimals.
// oldPrice must be positive.
func Discount(oldPrice, newPrice float64) float64 {
	return round2(100 - (100*newPrice)/oldPrice)
}

// round2 rounds half to even, so 0.125 becomes 0.12
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
