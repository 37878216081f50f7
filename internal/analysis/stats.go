package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// sampleStats returns the mean and the sample standard deviation (n-1
// denominator). A single value has zero deviation; no values yield zeros.
func sampleStats(values []float64) (mean, stddev float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)
	if n == 1 {
		return mean, 0
	}

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}

// median of amounts; zero for an empty input. The input is not reordered.
func median(amounts []decimal.Decimal) decimal.Decimal {
	n := len(amounts)
	if n == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, n)
	copy(sorted, amounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

// safeDiv divides a by b, returning zero when b is zero.
func safeDiv(a decimal.Decimal, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// relativeChange is (to - from) / from, zero when from is zero.
func relativeChange(from, to decimal.Decimal) float64 {
	if from.IsZero() {
		return 0
	}
	return to.Sub(from).Div(from).InexactFloat64()
}

func toFloats(amounts []decimal.Decimal) []float64 {
	out := make([]float64, len(amounts))
	for i, a := range amounts {
		out[i] = a.InexactFloat64()
	}
	return out
}
