package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/financegpt/internal/ledger"
)

type row struct {
	date, category, amount string
}

func buildLedger(t *testing.T, rows ...row) *ledger.Ledger {
	t.Helper()
	txs := make([]ledger.Transaction, 0, len(rows))
	for _, r := range rows {
		d, err := civil.ParseDate(r.date)
		if err != nil {
			t.Fatalf("bad date %q: %v", r.date, err)
		}
		txs = append(txs, ledger.Transaction{Date: d, Category: r.category, Amount: decimal.RequireFromString(r.amount)})
	}
	l, rejected := ledger.New(txs, ledger.WithToday(civil.Date{Year: 2030, Month: 1, Day: 1}))
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejected rows: %v", rejected)
	}
	return l
}

func exampleLedger(t *testing.T) *ledger.Ledger {
	return buildLedger(t,
		row{"2024-01-15", "Groceries", "45.67"},
		row{"2024-01-16", "Coffee", "4.50"},
		row{"2024-01-17", "Dining", "23.45"},
		row{"2024-01-18", "Transport", "12.00"},
	)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func TestAggregate_Example(t *testing.T) {
	s := Aggregate(exampleLedger(t))

	if s.Empty {
		t.Fatal("Empty should be false")
	}
	o := s.Overview
	if !o.Total.Equal(decimal.RequireFromString("85.62")) {
		t.Errorf("Total = %s, want 85.62", o.Total)
	}
	if o.Count != 4 || o.DaysSpanned != 4 {
		t.Errorf("Count = %d, DaysSpanned = %d, want 4, 4", o.Count, o.DaysSpanned)
	}
	if !o.AvgTransaction.Equal(decimal.RequireFromString("21.405")) {
		t.Errorf("AvgTransaction = %s, want 21.405", o.AvgTransaction)
	}
	if !o.AvgDaily.Equal(decimal.RequireFromString("21.405")) {
		t.Errorf("AvgDaily = %s, want 21.405", o.AvgDaily)
	}
	if !o.Median.Equal(decimal.RequireFromString("17.725")) {
		t.Errorf("Median = %s, want 17.725", o.Median)
	}

	type pct struct {
		Category string
		Percent  float64
	}
	var got []pct
	for _, c := range s.Categories {
		got = append(got, pct{c.Category, round1(c.Percent)})
	}
	want := []pct{{"Groceries", 53.3}, {"Dining", 27.4}, {"Transport", 14.0}, {"Coffee", 5.3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("category breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_PercentagesSumTo100(t *testing.T) {
	ledgers := map[string]*ledger.Ledger{
		"example": exampleLedger(t),
		"thirds": buildLedger(t,
			row{"2024-03-01", "A", "1"},
			row{"2024-03-02", "B", "1"},
			row{"2024-03-03", "C", "1"},
		),
		"single": buildLedger(t, row{"2024-03-01", "Rent", "950.00"}),
		"skewed": buildLedger(t,
			row{"2024-03-01", "Rent", "999999.99"},
			row{"2024-03-01", "Gum", "0.01"},
			row{"2024-03-04", "Gum", "0.02"},
		),
	}

	for name, l := range ledgers {
		t.Run(name, func(t *testing.T) {
			var sum float64
			for _, c := range Aggregate(l).Categories {
				sum += c.Percent
			}
			if math.Abs(sum-100) > 0.1 {
				t.Errorf("percentages sum to %v, want 100 +/- 0.1", sum)
			}
		})
	}
}

func TestAggregate_TieBrokenByName(t *testing.T) {
	s := Aggregate(buildLedger(t,
		row{"2024-03-01", "Zoo", "10"},
		row{"2024-03-01", "Apple", "10"},
		row{"2024-03-01", "Mango", "10"},
	))

	var names []string
	for _, c := range s.Categories {
		names = append(names, c.Category)
	}
	if diff := cmp.Diff([]string{"Apple", "Mango", "Zoo"}, names); diff != "" {
		t.Errorf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_EmptyLedger(t *testing.T) {
	l, _ := ledger.New(nil)
	s := Aggregate(l)

	if !s.Empty {
		t.Error("Empty should be true")
	}
	if !s.Overview.Total.IsZero() || s.Overview.Count != 0 || s.Overview.DaysSpanned != 0 {
		t.Errorf("expected zero overview, got %+v", s.Overview)
	}
	if !s.Overview.AvgDaily.IsZero() || !s.Overview.AvgTransaction.IsZero() {
		t.Error("averages should be zero for an empty ledger")
	}
	if len(s.Categories) != 0 || len(s.Months) != 0 || len(s.Daily) != 0 {
		t.Error("groupings should be empty")
	}
	if len(s.Weekdays) != 7 {
		t.Errorf("Weekdays should still list 7 days, got %d", len(s.Weekdays))
	}

	p := NewDetector(DetectorConfig{}).Detect(s, l)
	if p.WeekendSkew != nil || p.Trend != nil || len(p.Outliers) != 0 {
		t.Errorf("expected no patterns, got %+v", p)
	}
}

func TestAggregate_TimeGroupings(t *testing.T) {
	s := Aggregate(buildLedger(t,
		row{"2024-02-03", "Dining", "30"}, // Saturday
		row{"2024-01-15", "Groceries", "20"},
		row{"2024-01-15", "Coffee", "5"},
		row{"2024-02-04", "Dining", "10"}, // Sunday
	))

	wantMonths := []string{"2024-01", "2024-02"}
	var gotMonths []string
	for _, m := range s.Months {
		gotMonths = append(gotMonths, m.Label())
	}
	if diff := cmp.Diff(wantMonths, gotMonths); diff != "" {
		t.Errorf("months mismatch (-want +got):\n%s", diff)
	}

	if len(s.Daily) != 3 {
		t.Fatalf("Daily has %d points, want 3 (sparse, one per date)", len(s.Daily))
	}
	if s.Daily[0].Date.String() != "2024-01-15" || !s.Daily[0].Total.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Daily[0] = %+v", s.Daily[0])
	}

	if s.Weekdays[0].Weekday != time.Monday || s.Weekdays[0].Count != 2 {
		t.Errorf("Monday bucket = %+v", s.Weekdays[0])
	}
	if s.Weekdays[5].Weekday != time.Saturday || !s.Weekdays[5].Total.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Saturday bucket = %+v", s.Weekdays[5])
	}

	w := s.Weekend
	if w.WeekendDays != 2 || w.WeekdayDays != 1 {
		t.Errorf("weekend/weekday days = %d/%d, want 2/1", w.WeekendDays, w.WeekdayDays)
	}
	if !w.WeekendDailyMean.Equal(decimal.NewFromInt(20)) || !w.WeekdayDailyMean.Equal(decimal.NewFromInt(25)) {
		t.Errorf("daily means = %s/%s, want 20/25", w.WeekendDailyMean, w.WeekdayDailyMean)
	}
	if math.Abs(w.Ratio-0.8) > 1e-9 {
		t.Errorf("Ratio = %v, want 0.8", w.Ratio)
	}
}

func TestAggregate_Rolling(t *testing.T) {
	var rows []row
	for i := 1; i <= 8; i++ {
		rows = append(rows, row{civil.Date{Year: 2024, Month: 5, Day: i}.String(), "Food", decimal.NewFromInt(int64(i)).String()})
	}
	s := Aggregate(buildLedger(t, rows...))

	if !s.Rolling.SevenDay.Valid || !s.Rolling.SevenDay.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Errorf("SevenDay = %+v, want 5", s.Rolling.SevenDay)
	}
	if s.Rolling.ThirtyDay.Valid {
		t.Error("ThirtyDay should be unset for 8 days of data")
	}
}

func TestDetect_WeekendSkew(t *testing.T) {
	l := buildLedger(t,
		row{"2024-01-15", "Dining", "50"},
		row{"2024-01-16", "Dining", "50"},
		row{"2024-01-20", "Dining", "100"},
		row{"2024-01-21", "Dining", "100"},
	)
	p := NewDetector(DetectorConfig{}).Detect(Aggregate(l), l)

	if p.WeekendSkew == nil {
		t.Fatal("expected a weekend skew")
	}
	if p.WeekendSkew.Side != SkewWeekend || math.Abs(p.WeekendSkew.RelativeDiff-1.0) > 1e-9 {
		t.Errorf("skew = %+v, want weekend +100%%", p.WeekendSkew)
	}

	balanced := buildLedger(t,
		row{"2024-01-15", "Dining", "100"},
		row{"2024-01-20", "Dining", "110"},
	)
	if p := NewDetector(DetectorConfig{}).Detect(Aggregate(balanced), balanced); p.WeekendSkew != nil {
		t.Errorf("10%% difference should stay under the threshold, got %+v", p.WeekendSkew)
	}
}

func TestDetect_MonthlyTrend(t *testing.T) {
	l := buildLedger(t,
		row{"2024-01-10", "Rent", "100"},
		row{"2024-02-10", "Rent", "150"},
		row{"2024-03-10", "Rent", "152"},
	)
	p := NewDetector(DetectorConfig{}).Detect(Aggregate(l), l)

	if p.Trend == nil {
		t.Fatal("expected a trend")
	}
	var dirs []TrendDirection
	for _, c := range p.Trend.Changes {
		dirs = append(dirs, c.Direction)
	}
	if diff := cmp.Diff([]TrendDirection{TrendIncreasing, TrendStable}, dirs); diff != "" {
		t.Errorf("change directions mismatch (-want +got):\n%s", diff)
	}
	if p.Trend.Direction != TrendStable {
		t.Errorf("Direction = %s, want stable", p.Trend.Direction)
	}
	if math.Abs(p.Trend.MonthOverMonth-(2.0/150.0)) > 1e-9 {
		t.Errorf("MonthOverMonth = %v", p.Trend.MonthOverMonth)
	}

	single := buildLedger(t, row{"2024-01-10", "Rent", "100"})
	if p := NewDetector(DetectorConfig{}).Detect(Aggregate(single), single); p.Trend != nil {
		t.Error("a single month should not produce a trend")
	}
}

func TestDetect_Outliers(t *testing.T) {
	var rows []row
	for i := 1; i <= 9; i++ {
		rows = append(rows, row{civil.Date{Year: 2024, Month: 4, Day: i}.String(), "Coffee", "4.00"})
	}
	rows = append(rows, row{"2024-04-10", "Coffee", "40.00"})
	rows = append(rows, row{"2024-04-10", "Rent", "900.00"})
	l := buildLedger(t, rows...)

	p := NewDetector(DetectorConfig{}).Detect(Aggregate(l), l)

	if len(p.Outliers) != 1 {
		t.Fatalf("got %d outliers, want 1: %+v", len(p.Outliers), p.Outliers)
	}
	f := p.Outliers[0]
	if f.Index != 9 || f.Transaction.Category != "Coffee" {
		t.Errorf("flagged %+v, want the 40.00 coffee", f)
	}
	if f.ZScore <= 2 || f.Reason == "" {
		t.Errorf("flag should carry a z-score above k and a reason, got %+v", f)
	}
	if p.OutlierRule.K != DefaultOutlierK || p.OutlierRule.MinCount != DefaultMinOutlierCount {
		t.Errorf("OutlierRule = %+v", p.OutlierRule)
	}
}

func TestDetect_OutliersExemptSparseCategories(t *testing.T) {
	cfg := DetectorConfig{OutlierK: 0.5}

	sparse := buildLedger(t,
		row{"2024-04-01", "Gifts", "1"},
		row{"2024-04-02", "Gifts", "100"},
	)
	if p := NewDetector(cfg).Detect(Aggregate(sparse), sparse); len(p.Outliers) != 0 {
		t.Errorf("category under the minimum count must not be flagged, got %+v", p.Outliers)
	}

	enough := buildLedger(t,
		row{"2024-04-01", "Gifts", "1"},
		row{"2024-04-02", "Gifts", "1"},
		row{"2024-04-03", "Gifts", "100"},
	)
	if p := NewDetector(cfg).Detect(Aggregate(enough), enough); len(p.Outliers) != 1 {
		t.Errorf("expected the 100 gift flagged once the minimum is met, got %+v", p.Outliers)
	}
}

func TestDetect_HighVarianceAndNamed(t *testing.T) {
	l := buildLedger(t,
		row{"2024-01-15", "Dining", "10"},
		row{"2024-01-16", "Dining", "90"},
		row{"2024-01-17", "Coffee", "3"},
		row{"2024-01-18", "Coffee", "5"},
		row{"2024-01-19", "Rent", "900"},
	)
	p := NewDetector(DetectorConfig{}).Detect(Aggregate(l), l)

	var cats []string
	for _, v := range p.HighVariance {
		cats = append(cats, v.Category)
	}
	if diff := cmp.Diff([]string{"Dining", "Coffee"}, cats); diff != "" {
		t.Errorf("high variance mismatch (-want +got):\n%s", diff)
	}

	for _, n := range p.Named() {
		if n.Name == "" || n.Description == "" {
			t.Errorf("named pattern missing fields: %+v", n)
		}
	}
}

func TestSimulate(t *testing.T) {
	s := Aggregate(exampleLedger(t))

	t.Run("zero reduction", func(t *testing.T) {
		p, err := Simulate(s, "Groceries", 0)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		if !p.MonthlySavings.IsZero() || !p.AnnualSavings.IsZero() {
			t.Errorf("expected zero savings, got %+v", p)
		}
	})

	t.Run("full reduction", func(t *testing.T) {
		p, err := Simulate(s, "Groceries", 100)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		want := decimal.RequireFromString("45.67").Mul(decimal.NewFromInt(30)).Div(decimal.NewFromInt(4))
		if !p.MonthlySavings.Equal(want) {
			t.Errorf("MonthlySavings = %s, want %s", p.MonthlySavings, want)
		}
		if !p.AnnualSavings.Equal(want.Mul(decimal.NewFromInt(12))) {
			t.Errorf("AnnualSavings = %s", p.AnnualSavings)
		}
		if !p.NewCategoryTotal.IsZero() {
			t.Errorf("NewCategoryTotal = %s, want 0", p.NewCategoryTotal)
		}
	})

	t.Run("partial reduction", func(t *testing.T) {
		p, err := Simulate(s, "Dining", 20)
		if err != nil {
			t.Fatalf("Simulate: %v", err)
		}
		if !p.PotentialSavings.Equal(decimal.RequireFromString("4.69")) {
			t.Errorf("PotentialSavings = %s, want 4.69", p.PotentialSavings)
		}
		if !p.MonthlySavings.Equal(decimal.RequireFromString("35.175")) {
			t.Errorf("MonthlySavings = %s, want 35.175", p.MonthlySavings)
		}
	})

	invalid := []struct {
		name     string
		category string
		percent  float64
	}{
		{"negative percent", "Groceries", -1},
		{"percent above 100", "Groceries", 101},
		{"NaN percent", "Groceries", math.NaN()},
		{"unknown category", "Yachts", 10},
		{"case sensitive category", "groceries", 10},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simulate(s, tt.category, tt.percent)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Simulate(%q, %v) error = %v, want ErrInvalidInput", tt.category, tt.percent, err)
			}
		})
	}
}

func TestSimulate_ZeroSpan(t *testing.T) {
	s := Summary{Categories: []CategorySummary{{Category: "Rent", Total: decimal.NewFromInt(900), Count: 1}}}

	p, err := Simulate(s, "Rent", 50)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if !p.MonthlySavings.IsZero() {
		t.Errorf("MonthlySavings = %s, want 0 for a zero-day span", p.MonthlySavings)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	l := exampleLedger(t)
	a := Analyze(l, DefaultDetectorConfig())
	b := Analyze(l, DefaultDetectorConfig())

	if diff := cmp.Diff(a, b, cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })); diff != "" {
		t.Errorf("Analyze is not deterministic (-first +second):\n%s", diff)
	}
}
