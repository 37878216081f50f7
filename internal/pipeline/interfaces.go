package pipeline

import (
	"context"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/insight"
)

// Advisor requests commentary on analysis results.
// This interface enables mocking the model round trip in tests.
type Advisor interface {
	// Advise asks for commentary on a full analysis.
	Advise(ctx context.Context, in insight.Input) advisory.Result
	// AdviseSavings asks for advice on one simulated reduction.
	AdviseSavings(ctx context.Context, p analysis.SavingsProjection) advisory.Result
}

var _ Advisor = (*advisory.Client)(nil)
