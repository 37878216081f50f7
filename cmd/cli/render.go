package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/pipeline"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type rejectedRow struct {
	Source string `json:"source,omitempty"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

type analysisJSON struct {
	RunID    string                      `json:"run_id"`
	Source   string                      `json:"source"`
	Rejected []rejectedRow               `json:"rejected,omitempty"`
	Summary  analysis.Summary            `json:"summary"`
	Patterns analysis.Patterns           `json:"patterns"`
	Findings []analysis.Pattern          `json:"findings"`
	Savings  *analysis.SavingsProjection `json:"savings,omitempty"`
	Prompt   string                      `json:"prompt,omitempty"`
}

func analysisOutput(state *pipeline.State) analysisJSON {
	out := analysisJSON{
		RunID:    state.RunID,
		Source:   state.Loaded.Source,
		Summary:  state.Report.Summary,
		Patterns: state.Report.Patterns,
		Findings: state.Report.Patterns.Named(),
		Savings:  state.Savings,
	}
	for _, r := range state.Loaded.Rejected {
		out.Rejected = append(out.Rejected, rejectedRow{Source: r.Source, Line: r.Line, Reason: r.Err.Error()})
	}
	for _, r := range state.Rejected {
		out.Rejected = append(out.Rejected, rejectedRow{Reason: fmt.Sprintf("transaction %d: %v", r.Index, r.Err)})
	}
	if state.Prompt != nil {
		out.Prompt = state.Prompt.Text
	}
	return out
}

func printReport(w io.Writer, state *pipeline.State, top int) {
	s := state.Report.Summary
	fmt.Fprintf(w, "\n=== Spending Overview (%s) ===\n", state.Loaded.Source)
	if n := len(state.Loaded.Rejected) + len(state.Rejected); n > 0 {
		fmt.Fprintf(w, "Skipped rows: %d\n", n)
	}
	if s.Empty {
		fmt.Fprintln(w, "No transactions to analyze.")
		return
	}

	o := s.Overview
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Period:\t%s to %s (%d days)\n", o.Start, o.End, o.DaysSpanned)
	fmt.Fprintf(tw, "Transactions:\t%d\n", o.Count)
	fmt.Fprintf(tw, "Total:\t%s\n", o.Total.StringFixed(2))
	fmt.Fprintf(tw, "Average:\t%s per transaction, %s per day\n", o.AvgTransaction.StringFixed(2), o.AvgDaily.StringFixed(2))
	fmt.Fprintf(tw, "Median:\t%s\n", o.Median.StringFixed(2))
	if s.Rolling.SevenDay.Valid {
		fmt.Fprintf(tw, "Last 7 days:\t%s per active day\n", s.Rolling.SevenDay.Decimal.StringFixed(2))
	}
	if s.Rolling.ThirtyDay.Valid {
		fmt.Fprintf(tw, "Last 30 days:\t%s per active day\n", s.Rolling.ThirtyDay.Decimal.StringFixed(2))
	}
	tw.Flush()

	fmt.Fprintln(w, "\n=== Categories ===")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Category\tTotal\tShare\tCount\tAverage\t")
	for i, c := range s.Categories {
		if i == top {
			fmt.Fprintf(tw, "(%d more)\t\t\t\t\t\n", len(s.Categories)-top)
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%d\t%s\t\n", c.Category, c.Total.StringFixed(2), c.Percent, c.Count, c.Average.StringFixed(2))
	}
	tw.Flush()

	fmt.Fprintln(w, "\n=== Days of the Week ===")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Day\tTotal\tCount\tAverage\t")
	for _, d := range s.Weekdays {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t\n", d.Weekday, d.Total.StringFixed(2), d.Count, d.Average.StringFixed(2))
	}
	tw.Flush()

	if len(s.Months) > 0 {
		fmt.Fprintln(w, "\n=== Months ===")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Month\tTotal\tCount\t")
		for _, m := range s.Months {
			fmt.Fprintf(tw, "%s\t%s\t%d\t\n", m.Label(), m.Total.StringFixed(2), m.Count)
		}
		tw.Flush()
	}

	p := state.Report.Patterns
	fmt.Fprintln(w, "\n=== Patterns ===")
	named := p.Named()
	if len(named) == 0 {
		fmt.Fprintln(w, "No notable patterns detected.")
	}
	for _, f := range named {
		fmt.Fprintf(w, "- %s: %s\n", f.Name, f.Description)
	}
	if len(p.Outliers) > 0 {
		fmt.Fprintf(w, "\nUnusual transactions (above mean + %.1f stddev):\n", p.OutlierRule.K)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, o := range p.Outliers {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", o.Transaction.Date, o.Transaction.Category, o.Transaction.Amount.StringFixed(2), o.Reason)
		}
		tw.Flush()
	}

	if state.Savings != nil {
		fmt.Fprintln(w)
		printSavings(w, *state.Savings)
	}
}

func printSavings(w io.Writer, p analysis.SavingsProjection) {
	fmt.Fprintf(w, "=== Savings: %s reduced by %.1f%% ===\n", p.Category, p.ReductionPercent)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Current spending:\t%s over %d days\n", p.CurrentSpending.StringFixed(2), p.DaysSpanned)
	fmt.Fprintf(tw, "New total:\t%s\n", p.NewCategoryTotal.StringFixed(2))
	fmt.Fprintf(tw, "Saved over the period:\t%s\n", p.PotentialSavings.StringFixed(2))
	fmt.Fprintf(tw, "Monthly savings:\t%s\n", p.MonthlySavings.StringFixed(2))
	fmt.Fprintf(tw, "Annual savings:\t%s\n", p.AnnualSavings.StringFixed(2))
	tw.Flush()
}

func printAdvice(w io.Writer, r advisory.Result) {
	fmt.Fprintln(w, strings.TrimSpace(r.Text))
	fmt.Fprintln(w)
	source := string(r.Source)
	if r.Source == advisory.SourceModel {
		source = fmt.Sprintf("%s %s via %s", source, r.Model, r.Runtime)
	}
	if r.Degraded {
		source += fmt.Sprintf(", reduced prompt (%s dropped)", r.Dropped)
	}
	fmt.Fprintf(w, "-- %s, %s\n", source, r.Elapsed.Round(time.Millisecond))
}

func printStatus(w io.Writer, st advisory.Status) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Runtime:\t%s\n", orNone(st.Runtime))
	fmt.Fprintf(tw, "Reachable:\t%t\n", st.Reachable)
	fmt.Fprintf(tw, "Model:\t%s\n", st.Model)
	fmt.Fprintf(tw, "Installed:\t%t\n", st.ModelAvailable)
	if len(st.Models) > 0 {
		fmt.Fprintf(tw, "Available models:\t%s\n", strings.Join(st.Models, ", "))
	}
	if st.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", st.Error)
	}
	tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
