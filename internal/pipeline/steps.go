package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/insight"
	"github.com/dvloznov/financegpt/internal/ledger"
	"github.com/dvloznov/financegpt/internal/loader"
	"github.com/dvloznov/financegpt/internal/logger"
)

// ErrNoTransactions is returned by LoadStep when every source was empty
// and AllowEmpty is not set.
var ErrNoTransactions = errors.New("no transactions loaded")

// LoadStep reads every source and merges the rows in argument order.
type LoadStep struct {
	Sources    []loader.Source
	AllowEmpty bool
}

func (s *LoadStep) Name() string { return "load" }

func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	if len(s.Sources) == 0 {
		return fmt.Errorf("LoadStep: no sources given")
	}
	res, err := loader.LoadAll(ctx, s.Sources)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	for _, rej := range res.Rejected {
		log.Warn().Str("source", rej.Source).Int("line", rej.Line).Err(rej.Err).Msg("skipping row")
	}
	if len(res.Transactions) == 0 && !s.AllowEmpty {
		return fmt.Errorf("LoadStep: %s: %w", res.Source, ErrNoTransactions)
	}
	state.Loaded = res
	return nil
}

// BuildLedgerStep freezes the loaded rows into a Ledger.
type BuildLedgerStep struct {
	Options []ledger.Option
}

func (s *BuildLedgerStep) Name() string { return "ledger" }

func (s *BuildLedgerStep) Execute(ctx context.Context, state *State) error {
	l, rejected := ledger.New(state.Loaded.Transactions, s.Options...)

	log := logger.FromContext(ctx)
	for _, r := range rejected {
		log.Warn().Int("index", r.Index).Str("category", r.Transaction.Category).Err(r.Err).Msg("ledger rejected transaction")
	}
	state.Ledger = l
	state.Rejected = rejected
	return nil
}

// AnalyzeStep aggregates the ledger and detects patterns.
type AnalyzeStep struct {
	Config analysis.DetectorConfig
}

func (s *AnalyzeStep) Name() string { return "analyze" }

func (s *AnalyzeStep) Execute(ctx context.Context, state *State) error {
	if state.Ledger == nil {
		return fmt.Errorf("AnalyzeStep: ledger not built")
	}
	report := analysis.Analyze(state.Ledger, s.Config)
	state.Report = &report
	return nil
}

// SimulateStep projects a reduction of one category. An empty Category
// makes the step a no-op.
type SimulateStep struct {
	Category string
	Percent  float64
}

func (s *SimulateStep) Name() string { return "simulate" }

func (s *SimulateStep) Execute(ctx context.Context, state *State) error {
	if s.Category == "" {
		return nil
	}
	if state.Report == nil {
		return fmt.Errorf("SimulateStep: analysis missing")
	}
	p, err := analysis.Simulate(state.Report.Summary, s.Category, s.Percent)
	if err != nil {
		return fmt.Errorf("SimulateStep: %w", err)
	}
	state.Savings = &p
	return nil
}

// ComposeStep renders the advisory prompt without sending it.
type ComposeStep struct {
	Composer *insight.Composer
}

func (s *ComposeStep) Name() string { return "compose" }

func (s *ComposeStep) Execute(ctx context.Context, state *State) error {
	if state.Report == nil {
		return fmt.Errorf("ComposeStep: analysis missing")
	}
	composer := s.Composer
	if composer == nil {
		composer = insight.NewComposer(insight.DefaultConfig())
	}
	p := composer.Compose(state.Input(), insight.NoSections)
	state.Prompt = &p
	return nil
}

// AdviseStep asks the advisor for commentary. With Savings set it advises
// on the simulated reduction instead of the full analysis.
type AdviseStep struct {
	Advisor Advisor
	Savings bool
}

func (s *AdviseStep) Name() string { return "advise" }

func (s *AdviseStep) Execute(ctx context.Context, state *State) error {
	if s.Advisor == nil {
		return fmt.Errorf("AdviseStep: no advisor configured")
	}
	if s.Savings {
		if state.Savings == nil {
			return fmt.Errorf("AdviseStep: no savings projection to advise on")
		}
		res := s.Advisor.AdviseSavings(ctx, *state.Savings)
		state.Advice = &res
		return nil
	}
	if state.Report == nil {
		return fmt.Errorf("AdviseStep: analysis missing")
	}
	res := s.Advisor.Advise(ctx, state.Input())
	state.Advice = &res
	return nil
}
