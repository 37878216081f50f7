package ledger

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrEmptyCategory     = errors.New("empty category")
	ErrDateOutOfRange    = errors.New("date out of range")
)

// earliestDate is the lower bound for a plausible transaction date.
var earliestDate = civil.Date{Year: 1900, Month: 1, Day: 1}

// Transaction is one spending record of the ledger.
// Amounts are always positive: the ledger only tracks money going out.
type Transaction struct {
	Date     civil.Date      // calendar date, no time of day
	Category string          // label as loaded (already normalized by the loader)
	Amount   decimal.Decimal // > 0
	Note     string          // optional free text, may be empty
}

// Validate performs the range checks the engine relies on. latest is the
// last acceptable date (today plus the configured horizon).
func (t Transaction) Validate(latest civil.Date) error {
	if !t.Date.IsValid() || t.Date.Before(earliestDate) {
		return fmt.Errorf("%w: %s", ErrDateOutOfRange, t.Date)
	}
	if t.Date.After(latest) {
		return fmt.Errorf("%w: %s is after %s", ErrDateOutOfRange, t.Date, latest)
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveAmount, t.Amount.String())
	}
	return nil
}

// HasNote reports whether the transaction carries a non-blank note.
func (t Transaction) HasNote() bool {
	return strings.TrimSpace(t.Note) != ""
}
