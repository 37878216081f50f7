package pipeline_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/insight"
	"github.com/dvloznov/financegpt/internal/ledger"
	"github.com/dvloznov/financegpt/internal/loader"
	"github.com/dvloznov/financegpt/internal/pipeline"
)

// MockSource is a function-field implementation of loader.Source.
type MockSource struct {
	SourceName string
	LoadFunc   func(ctx context.Context) (loader.Result, error)
}

func (m *MockSource) Name() string { return m.SourceName }

func (m *MockSource) Load(ctx context.Context) (loader.Result, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return loader.Result{Source: m.SourceName}, nil
}

// MockAdvisor is a function-field implementation of pipeline.Advisor.
type MockAdvisor struct {
	AdviseFunc        func(ctx context.Context, in insight.Input) advisory.Result
	AdviseSavingsFunc func(ctx context.Context, p analysis.SavingsProjection) advisory.Result
}

func (m *MockAdvisor) Advise(ctx context.Context, in insight.Input) advisory.Result {
	if m.AdviseFunc != nil {
		return m.AdviseFunc(ctx, in)
	}
	return advisory.Result{Text: "advice", Source: advisory.SourceModel}
}

func (m *MockAdvisor) AdviseSavings(ctx context.Context, p analysis.SavingsProjection) advisory.Result {
	if m.AdviseSavingsFunc != nil {
		return m.AdviseSavingsFunc(ctx, p)
	}
	return advisory.Result{Text: "savings advice", Source: advisory.SourceModel}
}

var today = civil.Date{Year: 2024, Month: 1, Day: 31}

func exampleSource() *MockSource {
	tx := func(day int, cat, amount, note string) ledger.Transaction {
		return ledger.Transaction{
			Date:     civil.Date{Year: 2024, Month: 1, Day: day},
			Category: cat,
			Amount:   decimal.RequireFromString(amount),
			Note:     note,
		}
	}
	return &MockSource{
		SourceName: "example.csv",
		LoadFunc: func(ctx context.Context) (loader.Result, error) {
			return loader.Result{
				Source: "example.csv",
				Transactions: []ledger.Transaction{
					tx(15, "Groceries", "45.67", "weekly shop"),
					tx(16, "Dining", "23.45", ""),
					tx(17, "Transport", "12.00", ""),
					tx(18, "Coffee", "4.50", ""),
					tx(19, "Coffee", "3.00", ""),
				},
			}, nil
		},
	}
}

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestAnalysisPipeline(t *testing.T) {
	opts := pipeline.Options{
		Sources:       []loader.Source{exampleSource()},
		LedgerOptions: []ledger.Option{ledger.WithToday(today)},
		Detector:      analysis.DefaultDetectorConfig(),
		Category:      "Dining",
		Percent:       20,
	}

	state := &pipeline.State{}
	if err := pipeline.NewAnalysisPipeline(quietLogger(), opts).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if state.RunID == "" {
		t.Error("run ID not assigned")
	}
	if state.Ledger.Len() != 5 {
		t.Errorf("ledger has %d transactions, want 5", state.Ledger.Len())
	}
	if got := state.Report.Summary.Overview.Total; !got.Equal(decimal.RequireFromString("88.62")) {
		t.Errorf("total = %s, want 88.62", got)
	}
	if state.Savings == nil || !state.Savings.PotentialSavings.Equal(decimal.RequireFromString("4.69")) {
		t.Errorf("savings = %+v", state.Savings)
	}
	if state.Prompt != nil || state.Advice != nil {
		t.Error("analysis pipeline must not compose or advise")
	}
}

func TestAdvisoryPipeline(t *testing.T) {
	tests := []struct {
		name        string
		category    string
		wantText    string
		wantSavings bool
	}{
		{name: "full analysis", wantText: "advice"},
		{name: "savings", category: "Coffee", wantText: "savings advice", wantSavings: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotInput *insight.Input
			var gotProjection *analysis.SavingsProjection
			advisor := &MockAdvisor{
				AdviseFunc: func(ctx context.Context, in insight.Input) advisory.Result {
					gotInput = &in
					return advisory.Result{Text: "advice", Source: advisory.SourceModel}
				},
				AdviseSavingsFunc: func(ctx context.Context, p analysis.SavingsProjection) advisory.Result {
					gotProjection = &p
					return advisory.Result{Text: "savings advice", Source: advisory.SourceModel}
				},
			}

			opts := pipeline.Options{
				Sources:       []loader.Source{exampleSource()},
				LedgerOptions: []ledger.Option{ledger.WithToday(today)},
				Category:      tt.category,
				Percent:       50,
			}
			state := &pipeline.State{RunID: "fixed"}
			if err := pipeline.NewAdvisoryPipeline(quietLogger(), opts, advisor).Execute(context.Background(), state); err != nil {
				t.Fatalf("Execute: %v", err)
			}

			if state.RunID != "fixed" {
				t.Errorf("run ID overwritten: %s", state.RunID)
			}
			if state.Advice == nil || state.Advice.Text != tt.wantText {
				t.Fatalf("advice = %+v, want %q", state.Advice, tt.wantText)
			}
			if state.Prompt == nil || !strings.Contains(state.Prompt.Text, "## TOP SPENDING CATEGORIES") {
				t.Error("prompt not composed")
			}
			if tt.wantSavings {
				if gotProjection == nil || gotProjection.Category != "Coffee" {
					t.Errorf("projection = %+v", gotProjection)
				}
				if gotInput != nil {
					t.Error("full analysis advice requested for a savings session")
				}
				return
			}
			if gotInput == nil || gotInput.Ledger != state.Ledger {
				t.Error("advisor did not receive the session ledger")
			}
		})
	}
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	opts := pipeline.Options{
		Sources:       []loader.Source{exampleSource()},
		LedgerOptions: []ledger.Option{ledger.WithToday(today)},
		Category:      "Rent",
		Percent:       10,
	}
	called := false
	advisor := &MockAdvisor{
		AdviseSavingsFunc: func(ctx context.Context, p analysis.SavingsProjection) advisory.Result {
			called = true
			return advisory.Result{}
		},
	}

	err := pipeline.NewAdvisoryPipeline(quietLogger(), opts, advisor).Execute(context.Background(), &pipeline.State{})
	if !errors.Is(err, analysis.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "(simulate)") {
		t.Errorf("error should name the failing step: %v", err)
	}
	if called {
		t.Error("advisor called after a failed step")
	}
}

func TestLoadStep(t *testing.T) {
	empty := &MockSource{SourceName: "empty.csv"}
	broken := &MockSource{
		SourceName: "broken.csv",
		LoadFunc: func(ctx context.Context) (loader.Result, error) {
			return loader.Result{}, loader.ErrMissingColumns
		},
	}

	tests := []struct {
		name    string
		step    *pipeline.LoadStep
		wantErr error
	}{
		{name: "empty rejected", step: &pipeline.LoadStep{Sources: []loader.Source{empty}}, wantErr: pipeline.ErrNoTransactions},
		{name: "empty allowed", step: &pipeline.LoadStep{Sources: []loader.Source{empty}, AllowEmpty: true}},
		{name: "source error", step: &pipeline.LoadStep{Sources: []loader.Source{broken}}, wantErr: loader.ErrMissingColumns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Execute(context.Background(), &pipeline.State{})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmptySession(t *testing.T) {
	opts := pipeline.Options{
		Sources:       []loader.Source{&MockSource{SourceName: "empty.csv"}},
		LedgerOptions: []ledger.Option{ledger.WithToday(today)},
	}
	state := &pipeline.State{}
	if err := pipeline.NewPromptPipeline(quietLogger(), opts).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !state.Report.Summary.Empty {
		t.Error("summary should be empty")
	}
	if !strings.Contains(state.Prompt.Text, "No transactions were recorded") {
		t.Errorf("prompt does not mention the empty period:\n%s", state.Prompt.Text)
	}
}

func TestBuildLedgerStep_ReportsRejected(t *testing.T) {
	state := &pipeline.State{Loaded: loader.Result{Transactions: []ledger.Transaction{
		{Date: today, Category: "Dining", Amount: decimal.NewFromInt(10)},
		{Date: today.AddDays(3), Category: "Dining", Amount: decimal.NewFromInt(10)},
	}}}

	step := &pipeline.BuildLedgerStep{Options: []ledger.Option{ledger.WithToday(today)}}
	if err := step.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var indexes []int
	for _, r := range state.Rejected {
		indexes = append(indexes, r.Index)
	}
	if diff := cmp.Diff([]int{1}, indexes); diff != "" {
		t.Errorf("rejected indexes (-want +got):\n%s", diff)
	}
	if state.Ledger.Len() != 1 {
		t.Errorf("ledger len = %d, want 1", state.Ledger.Len())
	}
}
