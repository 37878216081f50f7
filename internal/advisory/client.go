package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/insight"
	"github.com/dvloznov/financegpt/internal/logger"
)

// Defaults for Config fields left zero.
const (
	DefaultModel            = "llama3.2:3b"
	DefaultTimeout          = 60 * time.Second
	DefaultRetryTimeout     = 30 * time.Second
	DefaultRetryShrink      = 0.25
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1000
	DefaultSavingsMaxTokens = 500
)

// Config controls how the client talks to the runtime.
type Config struct {
	Model        string
	Timeout      time.Duration // first attempt
	RetryTimeout time.Duration // degraded retry after a timeout
	// RetryShrink is the fraction the retry prompt must shrink by, 0-1.
	RetryShrink      float64
	Temperature      float64
	MaxTokens        int
	SavingsMaxTokens int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryTimeout <= 0 {
		c.RetryTimeout = DefaultRetryTimeout
	}
	if c.RetryShrink <= 0 || c.RetryShrink >= 1 {
		c.RetryShrink = DefaultRetryShrink
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.SavingsMaxTokens <= 0 {
		c.SavingsMaxTokens = DefaultSavingsMaxTokens
	}
	return c
}

// Source tells where a result's text came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Result is the outcome of one advisory request. Text is never empty.
type Result struct {
	ID          uuid.UUID        `json:"id"`
	Text        string           `json:"text"`
	Source      Source           `json:"source"`
	Model       string           `json:"model"`
	Runtime     string           `json:"runtime,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Err         error            `json:"-"` // why the fallback was used
	Degraded    bool             `json:"degraded"`
	Dropped     insight.Sections `json:"-"`
	Attempts    int              `json:"attempts"`
	GeneratedAt time.Time        `json:"generated_at"`
	Elapsed     time.Duration    `json:"elapsed"`
}

// Option customizes a Client.
type Option func(*Client)

// WithClock overrides the clock used for GeneratedAt and Elapsed.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithIDGenerator overrides result ID generation.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(c *Client) { c.newID = gen }
}

// Client requests commentary from a Runtime. A nil runtime is allowed and
// always yields the fallback text.
type Client struct {
	runtime  Runtime
	composer *insight.Composer
	cfg      Config
	log      zerolog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewClient wires a runtime and composer together.
func NewClient(rt Runtime, composer *insight.Composer, cfg Config, log zerolog.Logger, opts ...Option) *Client {
	if composer == nil {
		composer = insight.NewComposer(insight.Config{})
	}
	c := &Client{
		runtime:  rt,
		composer: composer,
		cfg:      cfg.withDefaults(),
		log:      logger.WithComponent(log, "advisory"),
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Advise asks for commentary on an analysis. On timeout it retries once with
// a smaller prompt; every other failure, and caller cancellation, returns the
// composer's fallback summary.
func (c *Client) Advise(ctx context.Context, in insight.Input) Result {
	prompt := c.composer.Compose(in, insight.NoSections)
	req := Request{
		Model:       c.cfg.Model,
		System:      insight.SystemPrompt,
		Prompt:      prompt.Text,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	return c.run(ctx, "analysis", req,
		func() insight.Prompt { return c.shrink(in, prompt) },
		func() string { return c.composer.Fallback(in.Report) },
	)
}

// AdviseSavings asks for advice on a simulated category reduction.
func (c *Client) AdviseSavings(ctx context.Context, p analysis.SavingsProjection) Result {
	prompt := insight.SavingsPrompt(p)
	req := Request{
		Model:       c.cfg.Model,
		System:      insight.SystemPrompt,
		Prompt:      prompt.Text,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.SavingsMaxTokens,
	}
	return c.run(ctx, "savings", req,
		func() insight.Prompt { return prompt },
		func() string { return insight.SavingsFallback(p) },
	)
}

// shrink drops optional sections in degradation order until the prompt is
// RetryShrink smaller than the original, or nothing is left to drop.
func (c *Client) shrink(in insight.Input, original insight.Prompt) insight.Prompt {
	target := int(float64(original.Len()) * (1 - c.cfg.RetryShrink))
	drop := original.Dropped
	p := original
	for _, s := range insight.DegradeOrder {
		if drop.Has(s) {
			continue
		}
		drop |= s
		p = c.composer.Compose(in, drop)
		if p.Len() <= target {
			break
		}
	}
	return p
}

func (c *Client) run(ctx context.Context, kind string, req Request, retryPrompt func() insight.Prompt, fallback func() string) Result {
	start := c.now()
	res := Result{ID: c.newID(), Model: c.cfg.Model}
	log := c.log.With().Str("kind", kind).Str("request_id", res.ID.String()).Str("model", c.cfg.Model).Logger()

	finish := func(text string, err error) Result {
		res.GeneratedAt = c.now()
		res.Elapsed = res.GeneratedAt.Sub(start)
		if err != nil {
			res.Source = SourceFallback
			res.Text = fallback()
			res.Err = err
			res.Reason = err.Error()
			log.Warn().Err(err).Int("attempts", res.Attempts).Msg("using fallback text")
			return res
		}
		res.Source = SourceModel
		res.Text = text
		log.Info().Int("attempts", res.Attempts).Bool("degraded", res.Degraded).Dur("elapsed", res.Elapsed).Msg("model answered")
		return res
	}

	if c.runtime == nil {
		return finish("", fmt.Errorf("%w: no runtime configured", ErrModelUnavailable))
	}
	res.Runtime = c.runtime.Name()

	log.Debug().Int("prompt_bytes", len(req.Prompt)).Msg("requesting advice")
	res.Attempts = 1
	text, err := c.attempt(ctx, req, c.cfg.Timeout)
	if errors.Is(err, ErrModelTimeout) && ctx.Err() == nil {
		p := retryPrompt()
		req.Prompt = p.Text
		res.Degraded = true
		res.Dropped = p.Dropped
		log.Warn().Str("dropped", p.Dropped.String()).Int("prompt_bytes", p.Len()).Msg("first attempt timed out, retrying with a smaller prompt")

		res.Attempts = 2
		text, err = c.attempt(ctx, req, c.cfg.RetryTimeout)
	}
	return finish(text, err)
}

// attempt runs one request under its own deadline and maps the outcome onto
// the package sentinels. Caller cancellation is returned as ctx.Err().
func (c *Client) attempt(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.runtime.Generate(actx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || actx.Err() != nil {
			return "", fmt.Errorf("%w after %s: %v", ErrModelTimeout, timeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrModelEmptyResponse
	}
	return text, nil
}

// Status describes the runtime as seen from this client.
type Status struct {
	Runtime        string   `json:"runtime"`
	Model          string   `json:"model"`
	Reachable      bool     `json:"reachable"`
	ModelAvailable bool     `json:"model_available"`
	Models         []string `json:"models,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Status checks whether the runtime answers and whether the configured model
// is installed. Runtimes that cannot list models are reported as unreachable.
func (c *Client) Status(ctx context.Context) Status {
	st := Status{Model: c.cfg.Model}
	if c.runtime == nil {
		st.Error = "no runtime configured"
		return st
	}
	st.Runtime = c.runtime.Name()

	lister, ok := c.runtime.(ModelLister)
	if !ok {
		st.Error = "runtime cannot list models"
		return st
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	models, err := lister.ListModels(sctx)
	if err != nil {
		st.Error = err.Error()
		c.log.Warn().Err(err).Str("runtime", st.Runtime).Msg("status check failed")
		return st
	}

	st.Reachable = true
	st.Models = models
	for _, m := range models {
		if strings.Contains(m, c.cfg.Model) {
			st.ModelAvailable = true
			break
		}
	}
	return st
}
