package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/financegpt/internal/ledger"
)

// Default detection thresholds.
const (
	DefaultSkewThreshold   = 0.20
	DefaultTrendThreshold  = 0.10
	DefaultOutlierK        = 2.0
	DefaultMinOutlierCount = 3
	DefaultHighVarianceTop = 3
)

// DetectorConfig tunes pattern detection. Zero fields take the defaults.
type DetectorConfig struct {
	// SkewThreshold is the relative difference between weekend and weekday
	// daily means above which a skew is reported.
	SkewThreshold float64
	// TrendThreshold is the relative month-over-month change below which two
	// months count as flat.
	TrendThreshold float64
	// OutlierK is the number of sample standard deviations above the category
	// mean an amount must exceed to be flagged.
	OutlierK float64
	// MinOutlierCount exempts categories with fewer transactions.
	MinOutlierCount int
	// HighVarianceTop caps the high-variance category list.
	HighVarianceTop int
}

// DefaultDetectorConfig returns the documented defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		SkewThreshold:   DefaultSkewThreshold,
		TrendThreshold:  DefaultTrendThreshold,
		OutlierK:        DefaultOutlierK,
		MinOutlierCount: DefaultMinOutlierCount,
		HighVarianceTop: DefaultHighVarianceTop,
	}
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	d := DefaultDetectorConfig()
	if c.SkewThreshold > 0 {
		d.SkewThreshold = c.SkewThreshold
	}
	if c.TrendThreshold > 0 {
		d.TrendThreshold = c.TrendThreshold
	}
	if c.OutlierK > 0 {
		d.OutlierK = c.OutlierK
	}
	if c.MinOutlierCount > 0 {
		d.MinOutlierCount = c.MinOutlierCount
	}
	if c.HighVarianceTop > 0 {
		d.HighVarianceTop = c.HighVarianceTop
	}
	return d
}

// SkewSide names the part of the week that spends more.
type SkewSide string

const (
	SkewWeekend SkewSide = "weekend"
	SkewWeekday SkewSide = "weekday"
)

// Skew reports a weekend/weekday imbalance of mean daily spending.
type Skew struct {
	Side             SkewSide
	WeekendDailyMean decimal.Decimal
	WeekdayDailyMean decimal.Decimal
	RelativeDiff     float64 // (weekend - weekday) / weekday
}

// TrendDirection classifies a month-over-month change.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// MonthChange compares two consecutive months of the series.
type MonthChange struct {
	From      MonthTotal
	To        MonthTotal
	Change    float64 // relative change, (to - from) / from
	Direction TrendDirection
}

// Trend summarizes the month series. Direction follows the most recent pair.
type Trend struct {
	Direction      TrendDirection
	MonthOverMonth float64
	Changes        []MonthChange
}

// OutlierFlag marks a transaction far above its category's typical amount.
type OutlierFlag struct {
	Index       int // position in the ledger
	Transaction ledger.Transaction
	ZScore      float64
	Mean        float64
	StdDev      float64
	Threshold   float64 // Mean + K*StdDev
	Reason      string
}

// CategoryVariance ranks categories by spread of their amounts.
type CategoryVariance struct {
	Category string
	StdDev   float64
}

// OutlierRule records the rule the outlier flags were produced with.
type OutlierRule struct {
	K        float64
	MinCount int
}

// Patterns is the PatternDetector output. Nil/empty fields mean the pattern
// was not observed.
type Patterns struct {
	WeekendSkew  *Skew
	Trend        *Trend
	Outliers     []OutlierFlag
	OutlierRule  OutlierRule
	HighVariance []CategoryVariance
}

// Pattern is a named, human readable finding.
type Pattern struct {
	Name        string
	Description string
}

// Named lists detected patterns in a fixed order.
func (p Patterns) Named() []Pattern {
	var out []Pattern
	if s := p.WeekendSkew; s != nil {
		out = append(out, Pattern{
			Name: "weekend_skew",
			Description: fmt.Sprintf("weekend days average %.1f%% %s per day than weekdays",
				math.Abs(s.RelativeDiff)*100, moreOrLess(s)),
		})
	}
	if t := p.Trend; t != nil {
		out = append(out, Pattern{
			Name:        "monthly_trend",
			Description: fmt.Sprintf("spending is %s (%+.1f%% month over month)", t.Direction, t.MonthOverMonth*100),
		})
	}
	if n := len(p.Outliers); n > 0 {
		out = append(out, Pattern{
			Name:        "outliers",
			Description: fmt.Sprintf("%d transaction(s) above category mean + %.1f standard deviations", n, p.OutlierRule.K),
		})
	}
	return out
}

func moreOrLess(s *Skew) string {
	if s.Side == SkewWeekend {
		return "more"
	}
	return "less"
}

// Detector derives patterns from an aggregated ledger.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector; zero config fields take the defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (d *Detector) Config() DetectorConfig {
	return d.cfg
}

// Detect runs all detectors. It never fails: finding nothing is a valid
// result.
func (d *Detector) Detect(s Summary, l *ledger.Ledger) Patterns {
	p := Patterns{OutlierRule: OutlierRule{K: d.cfg.OutlierK, MinCount: d.cfg.MinOutlierCount}}
	if s.Empty || l.IsEmpty() {
		return p
	}

	p.WeekendSkew = d.weekendSkew(s.Weekend)
	p.Trend = d.monthlyTrend(s.Months)
	p.Outliers = d.outliers(l)
	p.HighVariance = d.highVariance(s.Categories)
	return p
}

func (d *Detector) weekendSkew(w WeekendSplit) *Skew {
	if w.WeekendDays == 0 || w.WeekdayDays == 0 || w.WeekdayDailyMean.IsZero() {
		return nil
	}

	rel := relativeChange(w.WeekdayDailyMean, w.WeekendDailyMean)
	if math.Abs(rel) <= d.cfg.SkewThreshold {
		return nil
	}

	side := SkewWeekend
	if rel < 0 {
		side = SkewWeekday
	}
	return &Skew{
		Side:             side,
		WeekendDailyMean: w.WeekendDailyMean,
		WeekdayDailyMean: w.WeekdayDailyMean,
		RelativeDiff:     rel,
	}
}

func (d *Detector) monthlyTrend(months []MonthTotal) *Trend {
	if len(months) < 2 {
		return nil
	}

	t := &Trend{Changes: make([]MonthChange, 0, len(months)-1)}
	for i := 1; i < len(months); i++ {
		change := relativeChange(months[i-1].Total, months[i].Total)
		t.Changes = append(t.Changes, MonthChange{
			From:      months[i-1],
			To:        months[i],
			Change:    change,
			Direction: d.classify(change),
		})
	}

	last := t.Changes[len(t.Changes)-1]
	t.Direction = last.Direction
	t.MonthOverMonth = last.Change
	return t
}

func (d *Detector) classify(change float64) TrendDirection {
	switch {
	case change > d.cfg.TrendThreshold:
		return TrendIncreasing
	case change < -d.cfg.TrendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// outliers flags amounts above mean + K*stddev of their category, using the
// sample standard deviation. Sparse categories are skipped.
func (d *Detector) outliers(l *ledger.Ledger) []OutlierFlag {
	byCategory := make(map[string][]int)
	for i := 0; i < l.Len(); i++ {
		c := l.At(i).Category
		byCategory[c] = append(byCategory[c], i)
	}

	var flags []OutlierFlag
	for category, idx := range byCategory {
		if len(idx) < d.cfg.MinOutlierCount {
			continue
		}

		values := make([]float64, len(idx))
		for j, i := range idx {
			values[j] = l.At(i).Amount.InexactFloat64()
		}
		mean, sd := sampleStats(values)
		if sd == 0 {
			continue
		}

		threshold := mean + d.cfg.OutlierK*sd
		for j, i := range idx {
			if values[j] <= threshold {
				continue
			}
			tx := l.At(i)
			flags = append(flags, OutlierFlag{
				Index:       i,
				Transaction: tx,
				ZScore:      (values[j] - mean) / sd,
				Mean:        mean,
				StdDev:      sd,
				Threshold:   threshold,
				Reason: fmt.Sprintf("%s amount %s exceeds %s threshold %.2f (mean %.2f + %.1f x sd %.2f)",
					tx.Date, tx.Amount.StringFixed(2), category, threshold, mean, d.cfg.OutlierK, sd),
			})
		}
	}

	sort.Slice(flags, func(i, j int) bool { return flags[i].Index < flags[j].Index })
	return flags
}

func (d *Detector) highVariance(cats []CategorySummary) []CategoryVariance {
	var out []CategoryVariance
	for _, c := range cats {
		if c.Count < 2 || c.StdDev == 0 {
			continue
		}
		out = append(out, CategoryVariance{Category: c.Category, StdDev: c.StdDev})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StdDev != out[j].StdDev {
			return out[i].StdDev > out[j].StdDev
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > d.cfg.HighVarianceTop {
		out = out[:d.cfg.HighVarianceTop]
	}
	return out
}

// Report bundles everything the engine derives from one ledger.
type Report struct {
	Summary  Summary
	Patterns Patterns
}

// Analyze aggregates the ledger and runs the detector over it.
func Analyze(l *ledger.Ledger, cfg DetectorConfig) Report {
	s := Aggregate(l)
	return Report{
		Summary:  s,
		Patterns: NewDetector(cfg).Detect(s, l),
	}
}
