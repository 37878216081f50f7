package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/config"
	"github.com/dvloznov/financegpt/internal/insight"
	"github.com/dvloznov/financegpt/internal/loader"
	"github.com/dvloznov/financegpt/internal/logger"
	"github.com/dvloznov/financegpt/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "simulate":
		runSimulate(os.Args[2:])
	case "advise":
		runAdvise(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "sample":
		runSample(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FinanceGPT - personal spending analysis with local model commentary")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options] [files...]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Print spending statistics and detected patterns")
	fmt.Println("  simulate  Project savings from reducing one category")
	fmt.Println("  advise    Ask the model runtime for commentary (falls back to a summary)")
	fmt.Println("  status    Check the model runtime and installed models")
	fmt.Println("  sample    Write a synthetic spending CSV")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nInputs are CSV files with date, category and amount columns, gs:// objects,")
	fmt.Println("or a BigQuery date range (--bq-start/--bq-end).")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup loads the environment files and configuration shared by every
// command and returns a context cancelled on interrupt.
func setup(envFile string) (context.Context, context.CancelFunc, *config.Config, zerolog.Logger) {
	boot := logger.New()

	var err error
	if envFile != "" {
		err = config.LoadEnvFiles(envFile)
	} else {
		err = config.LoadEnvFiles()
	}
	if err != nil {
		boot.Fatal().Err(err).Msg("Failed to load env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logger.WithContext(ctx, log), cancel, cfg, log
}

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	in := registerInputFlags(fs)
	envFile := fs.String("env-file", "", "Path to a .env file")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	showPrompt := fs.Bool("show-prompt", false, "Also print the prompt that advise would send")
	fs.Parse(args)

	ctx, cancel, cfg, log := setup(*envFile)
	defer cancel()

	sources, closeFn, err := in.sources(ctx, cfg, fs.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid input")
	}
	defer closeFn()

	opts := sessionOptions(cfg, sources)
	p := pipeline.NewAnalysisPipeline(log, opts)
	if *showPrompt {
		p = pipeline.NewPromptPipeline(log, opts)
	}

	state := &pipeline.State{}
	if err := p.Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	if *asJSON {
		if err := printJSON(os.Stdout, analysisOutput(state)); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode report")
		}
		return
	}
	printReport(os.Stdout, state, cfg.TopCategories)
	if state.Prompt != nil {
		fmt.Println("\n=== Prompt ===")
		fmt.Println(state.Prompt.Text)
	}
}

func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	in := registerInputFlags(fs)
	envFile := fs.String("env-file", "", "Path to a .env file")
	category := fs.String("category", "", "Category to reduce")
	percent := fs.Float64("percent", 20, "Reduction in percent (0-100)")
	asJSON := fs.Bool("json", false, "Print the projection as JSON")
	fs.Parse(args)

	ctx, cancel, cfg, log := setup(*envFile)
	defer cancel()

	if *category == "" {
		log.Fatal().Msg("Error: --category is required")
	}

	sources, closeFn, err := in.sources(ctx, cfg, fs.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid input")
	}
	defer closeFn()

	opts := sessionOptions(cfg, sources)
	opts.Category, opts.Percent = *category, *percent

	state := &pipeline.State{}
	if err := pipeline.NewAnalysisPipeline(log, opts).Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}

	if *asJSON {
		if err := printJSON(os.Stdout, state.Savings); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode projection")
		}
		return
	}
	printSavings(os.Stdout, *state.Savings)
}

func runAdvise(args []string) {
	fs := flag.NewFlagSet("advise", flag.ExitOnError)
	in := registerInputFlags(fs)
	envFile := fs.String("env-file", "", "Path to a .env file")
	category := fs.String("category", "", "Advise on reducing this category instead of the whole ledger")
	percent := fs.Float64("percent", 20, "Reduction in percent used with --category")
	model := fs.String("model", "", "Model name (overrides FINANCEGPT_MODEL)")
	asJSON := fs.Bool("json", false, "Print the advisory result as JSON")
	fs.Parse(args)

	ctx, cancel, cfg, log := setup(*envFile)
	defer cancel()

	if *model != "" {
		cfg.Model = *model
	}

	sources, closeFn, err := in.sources(ctx, cfg, fs.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid input")
	}
	defer closeFn()

	client := newAdvisoryClient(ctx, cfg, log)

	opts := sessionOptions(cfg, sources)
	opts.Category, opts.Percent = *category, *percent

	state := &pipeline.State{}
	if err := pipeline.NewAdvisoryPipeline(log, opts, client).Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Advice failed")
	}

	if *asJSON {
		if err := printJSON(os.Stdout, state.Advice); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode result")
		}
		return
	}
	printAdvice(os.Stdout, *state.Advice)
	if state.Advice.Source == advisory.SourceFallback {
		fmt.Fprintf(os.Stderr, "\nNo model answer (%s). Run 'cli status' to check the runtime.\n", state.Advice.Reason)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	envFile := fs.String("env-file", "", "Path to a .env file")
	model := fs.String("model", "", "Model name (overrides FINANCEGPT_MODEL)")
	asJSON := fs.Bool("json", false, "Print the status as JSON")
	fs.Parse(args)

	ctx, cancel, cfg, log := setup(*envFile)
	defer cancel()

	if *model != "" {
		cfg.Model = *model
	}

	st := newAdvisoryClient(ctx, cfg, log).Status(ctx)
	if *asJSON {
		if err := printJSON(os.Stdout, st); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode status")
		}
		return
	}

	printStatus(os.Stdout, st)
	if !st.Reachable || !st.ModelAvailable {
		fmt.Println()
		fmt.Print(insight.SetupHints(cfg.Model))
		os.Exit(1)
	}
}

func runSample(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	envFile := fs.String("env-file", "", "Path to a .env file")
	out := fs.String("out", "", "Output file (defaults to stdout)")
	records := fs.Int("records", 200, "Number of transactions")
	days := fs.Int("days", 182, "Days covered, ending today")
	seed := fs.Uint64("seed", 1, "Random seed")
	fs.Parse(args)

	_, cancel, _, log := setup(*envFile)
	defer cancel()

	txs := loader.GenerateSample(loader.SampleOptions{
		Seed:    *seed,
		Records: *records,
		Days:    *days,
		End:     today(),
	})

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	if err := loader.WriteCSV(w, txs); err != nil {
		log.Fatal().Err(err).Msg("Failed to write sample")
	}
	if *out != "" {
		log.Info().Str("file", *out).Int("records", len(txs)).Msg("Sample written")
	}
}
