package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/advisory/gemini"
	"github.com/dvloznov/financegpt/internal/advisory/openai"
	"github.com/dvloznov/financegpt/internal/config"
	"github.com/dvloznov/financegpt/internal/insight"
	"github.com/dvloznov/financegpt/internal/ledger"
	"github.com/dvloznov/financegpt/internal/loader"
	"github.com/dvloznov/financegpt/internal/pipeline"
)

// fileList collects a repeatable --file flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

type inputFlags struct {
	files   fileList
	bqStart *string
	bqEnd   *string
	dataset *string
}

func registerInputFlags(fs *flag.FlagSet) *inputFlags {
	in := &inputFlags{}
	fs.Var(&in.files, "file", "Spending CSV file or gs:// URI (repeatable)")
	in.bqStart = fs.String("bq-start", "", "Read BigQuery transactions from this date (YYYY-MM-DD)")
	in.bqEnd = fs.String("bq-end", "", "Read BigQuery transactions up to this date (defaults to today)")
	in.dataset = fs.String("bq-dataset", "", "BigQuery dataset (overrides BIGQUERY_DATASET)")
	return in
}

// sources builds the ledger sources from flags and positional arguments.
// The returned close function releases any cloud clients created here.
func (in *inputFlags) sources(ctx context.Context, cfg *config.Config, args []string) ([]loader.Source, func(), error) {
	refs := append(append([]string{}, in.files...), args...)

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	var storageClient *storage.Client
	for _, ref := range refs {
		if strings.HasPrefix(ref, "gs://") {
			c, err := storage.NewClient(ctx)
			if err != nil {
				return nil, closeAll, fmt.Errorf("create storage client: %w", err)
			}
			storageClient = c
			closers = append(closers, c.Close)
			break
		}
	}

	var sources []loader.Source
	for _, ref := range refs {
		sources = append(sources, loader.SourceFor(ref, storageClient))
	}

	if *in.bqStart != "" {
		src, client, err := bigQuerySource(ctx, cfg, *in.bqStart, *in.bqEnd, *in.dataset)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, client.Close)
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, closeAll, fmt.Errorf("no input: pass CSV files, --file or --bq-start")
	}
	return sources, closeAll, nil
}

func bigQuerySource(ctx context.Context, cfg *config.Config, start, end, dataset string) (loader.Source, *bigquery.Client, error) {
	if cfg.BigQueryProject == "" {
		return nil, nil, fmt.Errorf("BIGQUERY_PROJECT is required for BigQuery input")
	}
	startDate, err := civil.ParseDate(start)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --bq-start: %w", err)
	}
	endDate := today()
	if end != "" {
		if endDate, err = civil.ParseDate(end); err != nil {
			return nil, nil, fmt.Errorf("invalid --bq-end: %w", err)
		}
	}
	if endDate.Before(startDate) {
		return nil, nil, fmt.Errorf("--bq-end %s is before --bq-start %s", endDate, startDate)
	}
	if dataset == "" {
		dataset = cfg.BigQueryDataset
	}

	client, err := bigquery.NewClient(ctx, cfg.BigQueryProject)
	if err != nil {
		return nil, nil, fmt.Errorf("bigquery client: %w", err)
	}
	return loader.BigQuerySource{Client: client, Dataset: dataset, Start: startDate, End: endDate}, client, nil
}

// sessionOptions maps the configuration onto pipeline options.
func sessionOptions(cfg *config.Config, sources []loader.Source) pipeline.Options {
	return pipeline.Options{
		Sources:       sources,
		LedgerOptions: []ledger.Option{ledger.WithHorizon(cfg.DateHorizonDays)},
		Detector:      cfg.Detector(),
		Composer:      insight.NewComposer(cfg.Composer()),
	}
}

// newAdvisoryClient builds the runtime for the configured backend. A runtime
// that cannot be created is logged and replaced by none, so advise still
// prints the fallback summary.
func newAdvisoryClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) *advisory.Client {
	var rt advisory.Runtime
	switch cfg.AdvisoryBackend {
	case config.BackendOpenAI:
		rt = openai.New(cfg.AdvisoryBaseURL, cfg.AdvisoryAPIKey, nil)
	case config.BackendGemini:
		g, err := gemini.New(ctx, cfg.AdvisoryAPIKey, cfg.AdvisoryBaseURL)
		if err != nil {
			log.Error().Err(err).Msg("Gemini runtime unavailable")
		} else {
			rt = g
		}
	}
	return advisory.NewClient(rt, insight.NewComposer(cfg.Composer()), cfg.Advisory(), log)
}

func today() civil.Date {
	return civil.DateOf(time.Now())
}
