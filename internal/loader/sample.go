package loader

import (
	"math/rand/v2"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/financegpt/internal/ledger"
)

type amountRange struct {
	name     string
	min, max float64
}

// sampleCategories lists typical spending ranges per category.
var sampleCategories = []amountRange{
	{"Groceries", 20, 150},
	{"Dining", 15, 80},
	{"Transport", 5, 50},
	{"Entertainment", 10, 100},
	{"Shopping", 25, 200},
	{"Utilities", 50, 300},
	{"Healthcare", 20, 200},
	{"Gas", 30, 80},
	{"Coffee", 3, 15},
}

var sampleNotes = []string{
	"Regular purchase", "Special occasion", "Bulk buy",
	"Emergency", "Planned expense", "Impulse buy",
}

// weekendBoost applies to Dining and Entertainment on Saturdays and Sundays.
const weekendBoost = 1.3

// SampleOptions controls GenerateSample.
type SampleOptions struct {
	Seed    uint64
	Records int        // default 200
	End     civil.Date // last possible date; required
	Days    int        // span ending at End; default 182
}

// GenerateSample builds a synthetic ledger: random dates over the span,
// uniform amounts within each category's range, a weekend boost for going
// out, and a note on roughly 30% of rows. The same options always produce
// the same rows, sorted by date.
func GenerateSample(opts SampleOptions) []ledger.Transaction {
	if opts.Records <= 0 {
		opts.Records = 200
	}
	if opts.Days <= 0 {
		opts.Days = 182
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	start := opts.End.AddDays(-(opts.Days - 1))

	txs := make([]ledger.Transaction, 0, opts.Records)
	for i := 0; i < opts.Records; i++ {
		date := start.AddDays(rng.IntN(opts.Days))
		cat := sampleCategories[rng.IntN(len(sampleCategories))]

		amount := cat.min + rng.Float64()*(cat.max-cat.min)
		if wd := date.In(time.UTC).Weekday(); (wd == time.Saturday || wd == time.Sunday) &&
			(cat.name == "Dining" || cat.name == "Entertainment") {
			amount *= weekendBoost
		}

		var note string
		if rng.Float64() < 0.3 {
			note = sampleNotes[rng.IntN(len(sampleNotes))]
		}

		txs = append(txs, ledger.Transaction{
			Date:     date,
			Category: cat.name,
			Amount:   decimal.NewFromFloat(amount).Round(2),
			Note:     note,
		})
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs
}
