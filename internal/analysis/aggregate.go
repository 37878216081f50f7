// Package analysis computes descriptive statistics, spending patterns and
// savings projections over a ledger. Every function here is pure: the same
// ledger always yields the same values, and nothing is formatted for display.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/financegpt/internal/ledger"
)

// Overview holds the headline numbers of a ledger.
type Overview struct {
	Total          decimal.Decimal
	Count          int
	AvgTransaction decimal.Decimal
	AvgDaily       decimal.Decimal // Total / DaysSpanned
	DaysSpanned    int             // first to last date, inclusive
	Start          civil.Date
	End            civil.Date
	Median         decimal.Decimal
	StdDev         float64 // sample standard deviation of amounts
}

// CategorySummary aggregates one category.
type CategorySummary struct {
	Category string
	Total    decimal.Decimal
	Count    int
	Percent  float64 // share of the grand total, 0-100
	Average  decimal.Decimal
	StdDev   float64
}

// WeekdayTotal aggregates transactions falling on one day of the week.
type WeekdayTotal struct {
	Weekday time.Weekday
	Total   decimal.Decimal
	Count   int
	Average decimal.Decimal // per transaction
}

// WeekendSplit compares Saturday/Sunday spending with the rest of the week.
// Daily means are taken over distinct dates that have spending.
type WeekendSplit struct {
	WeekendTotal     decimal.Decimal
	WeekdayTotal     decimal.Decimal
	WeekendDays      int
	WeekdayDays      int
	WeekendDailyMean decimal.Decimal
	WeekdayDailyMean decimal.Decimal
	Ratio            float64 // WeekendDailyMean / WeekdayDailyMean, 0 when undefined
}

// MonthTotal aggregates one calendar month.
type MonthTotal struct {
	Year  int
	Month time.Month
	Total decimal.Decimal
	Count int
}

// Label renders the month as YYYY-MM.
func (m MonthTotal) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// WeekTotal aggregates one ISO week.
type WeekTotal struct {
	Year  int
	Week  int
	Total decimal.Decimal
	Count int
}

// DailyTotal is one point of the sparse daily series.
type DailyTotal struct {
	Date  civil.Date
	Total decimal.Decimal
}

// Rolling holds trailing averages of the daily series. A window is only
// filled when the series is longer than the window.
type Rolling struct {
	SevenDay  decimal.NullDecimal
	ThirtyDay decimal.NullDecimal
}

// Summary is the full Aggregator output.
type Summary struct {
	Empty      bool
	Overview   Overview
	Categories []CategorySummary // total desc, then name asc
	Weekdays   []WeekdayTotal    // Monday .. Sunday
	Weekend    WeekendSplit
	Months     []MonthTotal // chronological
	Weeks      []WeekTotal  // chronological
	Daily      []DailyTotal // ascending dates, one per date present
	Rolling    Rolling
}

// Category looks up the summary of a category by exact name.
func (s Summary) Category(name string) (CategorySummary, bool) {
	for _, c := range s.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategorySummary{}, false
}

// weekOrder lists weekdays Monday first.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func weekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// Aggregate computes the overview, category, weekday and time groupings of
// a ledger. An empty ledger yields a zeroed Summary with Empty set.
func Aggregate(l *ledger.Ledger) Summary {
	s := Summary{Weekdays: make([]WeekdayTotal, len(weekOrder))}
	for i, wd := range weekOrder {
		s.Weekdays[i] = WeekdayTotal{Weekday: wd}
	}

	if l.IsEmpty() {
		s.Empty = true
		return s
	}

	txs := l.Transactions()
	s.Overview = overview(l, txs)
	s.Categories = categories(txs, s.Overview.Total)
	s.Daily = daily(txs)
	s.Weekend = weekendSplit(s.Daily)
	s.Months = months(txs)
	s.Weeks = weeks(txs)
	s.Rolling = rolling(s.Daily)

	for _, tx := range txs {
		idx := (int(weekdayOf(tx.Date)) + 6) % 7 // Monday = 0
		s.Weekdays[idx].Total = s.Weekdays[idx].Total.Add(tx.Amount)
		s.Weekdays[idx].Count++
	}
	for i := range s.Weekdays {
		s.Weekdays[i].Average = safeDiv(s.Weekdays[i].Total, decimal.NewFromInt(int64(s.Weekdays[i].Count)))
	}

	return s
}

func overview(l *ledger.Ledger, txs []ledger.Transaction) Overview {
	amounts := make([]decimal.Decimal, len(txs))
	total := decimal.Zero
	for i, tx := range txs {
		amounts[i] = tx.Amount
		total = total.Add(tx.Amount)
	}

	start, end, _ := l.DateRange()
	days := l.DaysSpanned()
	_, sd := sampleStats(toFloats(amounts))

	return Overview{
		Total:          total,
		Count:          len(txs),
		AvgTransaction: safeDiv(total, decimal.NewFromInt(int64(len(txs)))),
		AvgDaily:       safeDiv(total, decimal.NewFromInt(int64(days))),
		DaysSpanned:    days,
		Start:          start,
		End:            end,
		Median:         median(amounts),
		StdDev:         sd,
	}
}

func categories(txs []ledger.Transaction, grand decimal.Decimal) []CategorySummary {
	amounts := make(map[string][]decimal.Decimal)
	for _, tx := range txs {
		amounts[tx.Category] = append(amounts[tx.Category], tx.Amount)
	}

	out := make([]CategorySummary, 0, len(amounts))
	for name, list := range amounts {
		total := decimal.Sum(list[0], list[1:]...)
		_, sd := sampleStats(toFloats(list))
		pct := 0.0
		if !grand.IsZero() {
			pct = total.Div(grand).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, CategorySummary{
			Category: name,
			Total:    total,
			Count:    len(list),
			Percent:  pct,
			Average:  total.Div(decimal.NewFromInt(int64(len(list)))),
			StdDev:   sd,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func daily(txs []ledger.Transaction) []DailyTotal {
	byDate := make(map[civil.Date]decimal.Decimal)
	for _, tx := range txs {
		byDate[tx.Date] = byDate[tx.Date].Add(tx.Amount)
	}

	out := make([]DailyTotal, 0, len(byDate))
	for d, total := range byDate {
		out = append(out, DailyTotal{Date: d, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func weekendSplit(series []DailyTotal) WeekendSplit {
	var w WeekendSplit
	for _, p := range series {
		if isWeekend(weekdayOf(p.Date)) {
			w.WeekendTotal = w.WeekendTotal.Add(p.Total)
			w.WeekendDays++
		} else {
			w.WeekdayTotal = w.WeekdayTotal.Add(p.Total)
			w.WeekdayDays++
		}
	}
	w.WeekendDailyMean = safeDiv(w.WeekendTotal, decimal.NewFromInt(int64(w.WeekendDays)))
	w.WeekdayDailyMean = safeDiv(w.WeekdayTotal, decimal.NewFromInt(int64(w.WeekdayDays)))
	if !w.WeekdayDailyMean.IsZero() {
		w.Ratio = w.WeekendDailyMean.Div(w.WeekdayDailyMean).InexactFloat64()
	}
	return w
}

func months(txs []ledger.Transaction) []MonthTotal {
	type key struct {
		year  int
		month time.Month
	}
	byMonth := make(map[key]*MonthTotal)
	for _, tx := range txs {
		k := key{tx.Date.Year, tx.Date.Month}
		m, ok := byMonth[k]
		if !ok {
			m = &MonthTotal{Year: k.year, Month: k.month}
			byMonth[k] = m
		}
		m.Total = m.Total.Add(tx.Amount)
		m.Count++
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

func weeks(txs []ledger.Transaction) []WeekTotal {
	type key struct{ year, week int }
	byWeek := make(map[key]*WeekTotal)
	for _, tx := range txs {
		y, w := tx.Date.In(time.UTC).ISOWeek()
		k := key{y, w}
		wt, ok := byWeek[k]
		if !ok {
			wt = &WeekTotal{Year: y, Week: w}
			byWeek[k] = wt
		}
		wt.Total = wt.Total.Add(tx.Amount)
		wt.Count++
	}

	out := make([]WeekTotal, 0, len(byWeek))
	for _, w := range byWeek {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Week < out[j].Week
	})
	return out
}

func rolling(series []DailyTotal) Rolling {
	var r Rolling
	if len(series) > 7 {
		r.SevenDay = decimal.NewNullDecimal(trailingMean(series, 7))
	}
	if len(series) > 30 {
		r.ThirtyDay = decimal.NewNullDecimal(trailingMean(series, 30))
	}
	return r
}

func trailingMean(series []DailyTotal, window int) decimal.Decimal {
	tail := series[len(series)-window:]
	sum := decimal.Zero
	for _, p := range tail {
		sum = sum.Add(p.Total)
	}
	return sum.Div(decimal.NewFromInt(int64(window)))
}
