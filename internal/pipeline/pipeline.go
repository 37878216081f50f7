// Package pipeline runs one analysis session as a sequence of steps:
// load, build the ledger, analyze, simulate, compose and advise.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/insight"
	"github.com/dvloznov/financegpt/internal/ledger"
	"github.com/dvloznov/financegpt/internal/loader"
	"github.com/dvloznov/financegpt/internal/logger"
)

// Step is a single stage of a session.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all steps. Each step only adds to it.
type State struct {
	RunID    string
	Loaded   loader.Result
	Ledger   *ledger.Ledger
	Rejected []ledger.Rejected
	Report   *analysis.Report
	Savings  *analysis.SavingsProjection
	Prompt   *insight.Prompt
	Advice   *advisory.Result
}

// Input assembles what the composer and advisor need from the state.
func (s *State) Input() insight.Input {
	in := insight.Input{Ledger: s.Ledger, Savings: s.Savings}
	if s.Report != nil {
		in.Report = *s.Report
	}
	return in
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
	log   zerolog.Logger
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(log zerolog.Logger, steps ...Step) *Pipeline {
	return &Pipeline{steps: steps, log: logger.WithComponent(log, "pipeline")}
}

// Execute runs all steps sequentially and stops at the first failure.
// A fresh run ID is assigned when the state carries none.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	log := p.log.With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	for i, step := range p.steps {
		start := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Msg("step failed")
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().Str("step", step.Name()).Dur("elapsed", time.Since(start)).Msg("step done")
	}
	return nil
}

// Options configures the standard session pipelines.
type Options struct {
	Sources       []loader.Source
	LedgerOptions []ledger.Option
	Detector      analysis.DetectorConfig
	Composer      *insight.Composer

	// Category and Percent describe an optional savings simulation.
	Category string
	Percent  float64
}

func (o Options) head() []Step {
	return []Step{
		&LoadStep{Sources: o.Sources, AllowEmpty: true},
		&BuildLedgerStep{Options: o.LedgerOptions},
		&AnalyzeStep{Config: o.Detector},
		&SimulateStep{Category: o.Category, Percent: o.Percent},
	}
}

// NewAnalysisPipeline loads, analyzes and optionally simulates. No model
// is contacted.
func NewAnalysisPipeline(log zerolog.Logger, o Options) *Pipeline {
	return NewPipeline(log, o.head()...)
}

// NewPromptPipeline additionally renders the advisory prompt.
func NewPromptPipeline(log zerolog.Logger, o Options) *Pipeline {
	return NewPipeline(log, append(o.head(), &ComposeStep{Composer: o.Composer})...)
}

// NewAdvisoryPipeline runs the analysis and asks the advisor for
// commentary, on the savings projection when a category is given.
func NewAdvisoryPipeline(log zerolog.Logger, o Options, advisor Advisor) *Pipeline {
	steps := append(o.head(), &ComposeStep{Composer: o.Composer})
	steps = append(steps, &AdviseStep{Advisor: advisor, Savings: o.Category != ""})
	return NewPipeline(log, steps...)
}
