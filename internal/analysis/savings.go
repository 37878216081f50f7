package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for simulations over an unknown category or a
// reduction outside [0, 100].
var ErrInvalidInput = errors.New("invalid input")

// daysPerMonth normalizes the ledger period to a month.
const daysPerMonth = 30

// SavingsProjection is the outcome of a hypothetical category reduction.
type SavingsProjection struct {
	Category         string
	ReductionPercent float64
	CurrentSpending  decimal.Decimal // category total over the ledger period
	PotentialSavings decimal.Decimal // over the ledger period
	MonthlySavings   decimal.Decimal
	AnnualSavings    decimal.Decimal // MonthlySavings * 12
	NewCategoryTotal decimal.Decimal
	DaysSpanned      int
}

// Simulate projects the savings of cutting a category by reductionPercent.
// The period total is normalized to 30 days using the ledger span; a zero
// span yields zero monthly savings.
func Simulate(s Summary, category string, reductionPercent float64) (SavingsProjection, error) {
	if math.IsNaN(reductionPercent) || reductionPercent < 0 || reductionPercent > 100 {
		return SavingsProjection{}, fmt.Errorf("%w: reduction percent %v outside [0, 100]", ErrInvalidInput, reductionPercent)
	}

	cat, ok := s.Category(category)
	if !ok {
		return SavingsProjection{}, fmt.Errorf("%w: category %q not found in ledger", ErrInvalidInput, category)
	}

	pct := decimal.NewFromFloat(reductionPercent)
	potential := cat.Total.Mul(pct).Div(decimal.NewFromInt(100))

	monthly := decimal.Zero
	if days := s.Overview.DaysSpanned; days > 0 {
		monthly = potential.Mul(decimal.NewFromInt(daysPerMonth)).Div(decimal.NewFromInt(int64(days)))
	}

	return SavingsProjection{
		Category:         cat.Category,
		ReductionPercent: reductionPercent,
		CurrentSpending:  cat.Total,
		PotentialSavings: potential,
		MonthlySavings:   monthly,
		AnnualSavings:    monthly.Mul(decimal.NewFromInt(12)),
		NewCategoryTotal: cat.Total.Sub(potential),
		DaysSpanned:      s.Overview.DaysSpanned,
	}, nil
}
