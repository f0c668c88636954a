package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"productlens-backend/internal/llm"
	"productlens-backend/internal/products"
	"productlens-backend/internal/scrape"
	"productlens-backend/internal/shared/metrics"
	"productlens-backend/internal/shared/telemetry"
)

// competitorScrapeCap bounds outbound request volume per run.
const competitorScrapeCap = 5

// Collector is the data collection worker. It populates product data and
// competitor candidates, selecting behavior by the run's phase. All fetch and
// inference failures are absorbed here; a degraded result is always preferred
// over aborting the run.
type Collector struct {
	Fetcher scrape.Fetcher
	LLM     llm.Client
	Repo    products.Repo
}

// Run executes the collection step for the current phase.
func (c *Collector) Run(ctx context.Context, state *AnalysisState) error {
	switch state.Phase {
	case PhaseMainProduct:
		return c.collectMainProduct(ctx, state)
	case PhaseCompetitorCollection:
		return c.collectCompetitors(ctx, state)
	case PhaseCompetitorRetry:
		return c.retryCandidateDiscovery(ctx, state)
	default:
		return NewInvariantViolation(fmt.Sprintf("data collector invoked in phase %q", state.Phase))
	}
}

func (c *Collector) collectMainProduct(ctx context.Context, state *AnalysisState) error {
	record, err := c.Fetcher.FetchProduct(ctx, state.ProductURL)
	if err != nil || !record.Valid() {
		if err != nil {
			telemetry.Warn("run.extraction_failed", map[string]any{
				"runId": state.RunID,
				"url":   state.ProductURL,
				"error": err.Error(),
			})
		}
		inferred, inferErr := c.inferProduct(ctx, state)
		if inferErr != nil {
			// Inference is best-effort on top of a failed scrape; keep the
			// run alive with a minimal record rather than aborting.
			telemetry.Warn("run.inference_failed", map[string]any{
				"runId": state.RunID,
				"error": inferErr.Error(),
			})
			inferred = minimalInferredRecord(state)
		}
		record = inferred
		metrics.IncScrapeFallback()
	}

	state.ProductData = &record
	completeness := products.ComputeCompleteness(record)
	telemetry.Info("run.product_collected", map[string]any{
		"runId":            state.RunID,
		"asin":             record.ASIN,
		"source":           record.SourceKind,
		"quality":          record.QualityScore(),
		"completeness":     completeness.OverallScore,
		"missing_critical": completeness.Critical.Missing,
	})
	if c.Repo != nil {
		if err := c.Repo.UpsertProduct(ctx, record); err != nil {
			telemetry.Error("run.product_upsert_failed", map[string]any{
				"runId": state.RunID,
				"asin":  record.ASIN,
				"error": err.Error(),
			})
		}
	}

	candidates, err := c.Fetcher.DiscoverCompetitors(ctx, state.ProductURL, false)
	if err != nil {
		telemetry.Warn("run.candidate_discovery_failed", map[string]any{
			"runId": state.RunID,
			"error": err.Error(),
		})
		candidates = nil
	}
	state.CompetitorCandidates = candidates
	c.persistCandidates(ctx, state)

	state.SetProgress(progressMainProduct)
	return nil
}

func (c *Collector) collectCompetitors(ctx context.Context, state *AnalysisState) error {
	// Promotion is by confidence, not discovery order.
	candidates := append([]products.Candidate(nil), state.CompetitorCandidates...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ConfidenceScore > candidates[j].ConfidenceScore
	})
	if len(candidates) > competitorScrapeCap {
		candidates = candidates[:competitorScrapeCap]
	}

	var scraped []products.Record
	var kept []products.Candidate
	for _, candidate := range candidates {
		record, err := c.Fetcher.FetchProduct(ctx, candidate.URL)
		if err != nil || !record.Valid() {
			// Failed candidates are dropped here, not retried.
			continue
		}
		scraped = append(scraped, record)
		kept = append(kept, candidate)
		if c.Repo != nil {
			if err := c.Repo.UpsertProduct(ctx, record); err != nil {
				telemetry.Error("run.competitor_upsert_failed", map[string]any{
					"runId": state.RunID,
					"asin":  record.ASIN,
					"error": err.Error(),
				})
			}
		}
	}

	state.CompetitorData = scraped
	state.CompetitorCandidates = kept
	state.SetProgress(progressCompetitors)
	return nil
}

func (c *Collector) retryCandidateDiscovery(ctx context.Context, state *AnalysisState) error {
	state.RetryCount++

	candidates, err := c.Fetcher.DiscoverCompetitors(ctx, state.ProductURL, true)
	if err != nil {
		telemetry.Warn("run.candidate_retry_failed", map[string]any{
			"runId": state.RunID,
			"error": err.Error(),
		})
		candidates = nil
	}
	// Zero candidates after retry is not an error; the run proceeds without
	// competitor data.
	state.CompetitorCandidates = candidates
	c.persistCandidates(ctx, state)
	return nil
}

func (c *Collector) persistCandidates(ctx context.Context, state *AnalysisState) {
	if c.Repo == nil || len(state.CompetitorCandidates) == 0 {
		return
	}
	if err := c.Repo.UpsertCompetitors(ctx, state.ASIN, state.CompetitorCandidates); err != nil {
		telemetry.Error("run.candidates_upsert_failed", map[string]any{
			"runId": state.RunID,
			"error": err.Error(),
		})
	}
}

type inferredProduct struct {
	Title        string   `json:"title"`
	Price        *float64 `json:"price"`
	Currency     string   `json:"currency"`
	Category     string   `json:"category"`
	Features     []string `json:"features"`
	Availability string   `json:"availability"`
}

// inferProduct asks the language model to infer product attributes from the
// URL alone. The result is tagged llm_inferred so consumers can surface
// provenance.
func (c *Collector) inferProduct(ctx context.Context, state *AnalysisState) (products.Record, error) {
	if c.LLM == nil {
		return products.Record{}, fmt.Errorf("no inference client configured")
	}

	out, err := c.LLM.Complete(ctx, llm.CompleteInput{
		System: "You infer e-commerce product attributes from URLs. Respond with JSON only.",
		User: fmt.Sprintf(`Infer the most likely attributes of the product at this URL: %s
Return a JSON object with keys: title (string), price (number or null), currency (string), category (string), features (array of strings), availability (string).
Base the inference on the URL slug and general product knowledge. Use null for anything you cannot infer.`, state.ProductURL),
		JSONOutput: true,
	})
	if err != nil {
		return products.Record{}, err
	}

	var parsed inferredProduct
	if err := json.Unmarshal([]byte(llm.StripJSONFence(out)), &parsed); err != nil {
		return products.Record{}, fmt.Errorf("inference output parse: %w", err)
	}
	if parsed.Title == "" {
		return products.Record{}, fmt.Errorf("inference output missing title")
	}

	return products.Record{
		ASIN:         state.ASIN,
		URL:          state.ProductURL,
		Title:        parsed.Title,
		Price:        parsed.Price,
		Currency:     parsed.Currency,
		Category:     parsed.Category,
		Features:     parsed.Features,
		Availability: parsed.Availability,
		SourceKind:   products.SourceLLMInferred,
		ScrapedAt:    time.Now().UTC(),
	}, nil
}

// minimalInferredRecord keeps a run alive when both extraction and inference
// fail. The title is derived from the product identifier.
func minimalInferredRecord(state *AnalysisState) products.Record {
	return products.Record{
		ASIN:       state.ASIN,
		URL:        state.ProductURL,
		Title:      fmt.Sprintf("Product %s", state.ASIN),
		SourceKind: products.SourceLLMInferred,
		ScrapedAt:  time.Now().UTC(),
	}
}
