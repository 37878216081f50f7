// Package advisory asks a language model runtime for commentary on an
// analysis and falls back to deterministic text whenever the model cannot
// answer in time.
package advisory

import (
	"context"
	"errors"
)

var (
	// ErrModelUnavailable covers transport and API failures, and a missing runtime.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelTimeout is reported when every attempt ran out of time.
	ErrModelTimeout = errors.New("model timed out")
	// ErrModelEmptyResponse is reported for blank model output.
	ErrModelEmptyResponse = errors.New("model returned an empty response")
)

// Request is a single chat-style generation request.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response carries the raw model text. It is opaque: nothing parses it.
type Response struct {
	Text string
}

// Runtime generates text from a prompt. Implementations must honour ctx
// cancellation and deadlines.
type Runtime interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// ModelLister is implemented by runtimes that can enumerate installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
