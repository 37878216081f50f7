// Package ledger holds the validated, read-only set of transactions one
// analysis session works on.
package ledger

import (
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Ledger is an immutable, load-ordered sequence of transactions.
// It is built once with New and never modified afterwards; accessors return
// copies so callers cannot reach the backing slice.
type Ledger struct {
	txs        []Transaction
	start, end civil.Date
	categories []string
}

// Rejected describes an input row New refused to admit.
type Rejected struct {
	Index       int // position in the input slice
	Transaction Transaction
	Err         error
}

type options struct {
	today       civil.Date
	horizonDays int
}

// Option customizes ledger construction.
type Option func(*options)

// WithHorizon allows transactions dated up to days after today.
func WithHorizon(days int) Option {
	return func(o *options) {
		if days > 0 {
			o.horizonDays = days
		}
	}
}

// WithToday overrides the reference date used for the future-date check.
func WithToday(d civil.Date) Option {
	return func(o *options) {
		o.today = d
	}
}

// New builds a ledger from already-validated transactions, re-checking the
// ranges the engine depends on. Rows failing the checks are returned as
// Rejected and left out; the input slice is not modified.
func New(txs []Transaction, opts ...Option) (*Ledger, []Rejected) {
	o := options{today: civil.DateOf(time.Now())}
	for _, opt := range opts {
		opt(&o)
	}
	latest := o.today.AddDays(o.horizonDays)

	l := &Ledger{txs: make([]Transaction, 0, len(txs))}
	var rejected []Rejected
	seen := make(map[string]bool)

	for i, tx := range txs {
		if err := tx.Validate(latest); err != nil {
			rejected = append(rejected, Rejected{Index: i, Transaction: tx, Err: err})
			continue
		}

		if len(l.txs) == 0 || tx.Date.Before(l.start) {
			l.start = tx.Date
		}
		if len(l.txs) == 0 || tx.Date.After(l.end) {
			l.end = tx.Date
		}
		if !seen[tx.Category] {
			seen[tx.Category] = true
			l.categories = append(l.categories, tx.Category)
		}
		l.txs = append(l.txs, tx)
	}

	sort.Strings(l.categories)
	return l, rejected
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.txs)
}

// IsEmpty reports whether the ledger has no transactions.
func (l *Ledger) IsEmpty() bool {
	return l.Len() == 0
}

// At returns the i-th transaction in load order.
func (l *Ledger) At(i int) Transaction {
	return l.txs[i]
}

// Transactions returns a copy of all transactions in load order.
func (l *Ledger) Transactions() []Transaction {
	if l == nil {
		return nil
	}
	out := make([]Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// Categories returns the distinct categories sorted by name.
func (l *Ledger) Categories() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.categories))
	copy(out, l.categories)
	return out
}

// Has reports whether any transaction belongs to category.
func (l *Ledger) Has(category string) bool {
	if l == nil {
		return false
	}
	i := sort.SearchStrings(l.categories, category)
	return i < len(l.categories) && l.categories[i] == category
}

// DateRange returns the first and last transaction dates. ok is false for an
// empty ledger.
func (l *Ledger) DateRange() (start, end civil.Date, ok bool) {
	if l.IsEmpty() {
		return civil.Date{}, civil.Date{}, false
	}
	return l.start, l.end, true
}

// DaysSpanned counts calendar days from the first to the last transaction,
// both inclusive. An empty ledger spans zero days.
func (l *Ledger) DaysSpanned() int {
	if l.IsEmpty() {
		return 0
	}
	return l.end.DaysSince(l.start) + 1
}

// Notes returns the non-blank notes in load order.
func (l *Ledger) Notes() []string {
	if l == nil {
		return nil
	}
	var notes []string
	for _, tx := range l.txs {
		if tx.HasNote() {
			notes = append(notes, strings.TrimSpace(tx.Note))
		}
	}
	return notes
}
