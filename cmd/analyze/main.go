package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"productlens-backend/internal/llm"
	openai "productlens-backend/internal/llm/openai"
	"productlens-backend/internal/products"
	"productlens-backend/internal/runs"
	"productlens-backend/internal/scrape"
	"productlens-backend/internal/shared/config"
)

// One-shot analysis against a single product URL, using in-memory
// storage. Useful for exercising the pipeline without the API server.
func main() {
	cfg := config.Load()

	productURL := flag.String("url", "", "Product listing URL to analyze")
	outPath := flag.String("out", "", "Path to write the markdown report (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	verbose := flag.Bool("verbose", false, "Print progress updates to stderr")
	flag.Parse()

	if strings.TrimSpace(*productURL) == "" {
		exitErr("product url is required")
	}

	asin, err := products.ValidateURL(*productURL)
	if err != nil {
		exitErr(fmt.Sprintf("validate url: %v", err))
	}

	client, err := buildClient(*provider, *model)
	if err != nil {
		exitErr(err.Error())
	}

	gate := scrape.NewGate(cfg.ScrapeRequestsPerMinute, cfg.ScrapeBurst)
	fetcher := scrape.NewHTTPFetcher(gate)
	sink := runs.NewMemorySink()

	engine := runs.NewEngine(fetcher, client, products.NewMemoryRepo(), sink, runs.RunConfig{
		MaxIterations:         cfg.MaxIterations,
		CompetitorRetryBudget: cfg.CompetitorRetryBudget,
		WorkerCallTimeout:     cfg.WorkerCallTimeout,
	}, cfg.MaxConcurrentWorkers)

	runID := uuid.NewString()
	state := engine.Run(context.Background(), runs.NewState(runID, "cli", *productURL, asin))

	if *verbose {
		for _, update := range sink.Updates(runID) {
			fmt.Fprintf(os.Stderr, "%3d%% %-12s %s\n", update.Progress, update.Phase, update.Message)
		}
	}

	if state.Status != runs.StatusCompleted {
		exitErr(fmt.Sprintf("run %s: %s", state.Status, state.ErrorMessage))
	}

	report := state.FinalReport
	if report == "" {
		report = runs.CompileReport(state)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(report), 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.WriteString(report); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(report) == 0 || report[len(report)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func buildClient(provider, model string) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return openai.NewClient(os.Getenv("OPENAI_API_KEY"), model)
	case "placeholder":
		return llm.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
