package runs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"productlens-backend/internal/llm"
	"productlens-backend/internal/products"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func testRecord(asin, title string) products.Record {
	return products.Record{
		ASIN:        asin,
		URL:         "https://www.amazon.com/dp/" + asin,
		Title:       title,
		Price:       floatPtr(29.99),
		Currency:    "USD",
		Rating:      floatPtr(4.2),
		ReviewCount: intPtr(310),
		SourceKind:  products.SourceScraped,
		ScrapedAt:   time.Now().UTC(),
	}
}

func testCandidate(asin string, confidence float64) products.Candidate {
	return products.Candidate{
		ASIN:            asin,
		Title:           "Competitor " + asin,
		URL:             "https://www.amazon.com/dp/" + asin,
		SourceSection:   "related_products",
		ConfidenceScore: confidence,
	}
}

// fakeFetcher is a scripted scrape.Fetcher. Per-URL failures are configured
// via failFetch; discovery output is per-attempt.
type fakeFetcher struct {
	mu sync.Mutex

	records   map[string]products.Record
	failFetch map[string]bool

	discoverBatches  [][]products.Candidate
	discoverAttempts int
	discoverErr      error

	aggressiveSeen []bool
	fetchCalls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		records:   make(map[string]products.Record),
		failFetch: make(map[string]bool),
	}
}

func (f *fakeFetcher) FetchProduct(ctx context.Context, url string) (products.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls = append(f.fetchCalls, url)
	if err := ctx.Err(); err != nil {
		return products.Record{}, err
	}
	if f.failFetch[url] {
		return products.Record{}, fmt.Errorf("fetch failed for %s", url)
	}
	rec, ok := f.records[url]
	if !ok {
		return products.Record{}, fmt.Errorf("no record for %s", url)
	}
	return rec, nil
}

func (f *fakeFetcher) DiscoverCompetitors(ctx context.Context, url string, aggressive bool) ([]products.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggressiveSeen = append(f.aggressiveSeen, aggressive)
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	if f.discoverAttempts >= len(f.discoverBatches) {
		return nil, nil
	}
	batch := f.discoverBatches[f.discoverAttempts]
	f.discoverAttempts++
	return batch, nil
}

// fakeLLM answers by prompt role: inference, market analysis, or advice.
type fakeLLM struct {
	mu        sync.Mutex
	calls     []llm.CompleteInput
	inferErr  error
	marketErr error
	adviceErr error
}

func (f *fakeLLM) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case strings.Contains(input.System, "infer e-commerce"):
		if f.inferErr != nil {
			return "", f.inferErr
		}
		return `{"title":"Inferred Product","price":19.99,"currency":"USD","category":"Electronics","features":["inferred feature"],"availability":"Unknown"}`, nil
	case strings.Contains(input.System, "marketplace analyst"):
		if f.marketErr != nil {
			return "", f.marketErr
		}
		return `{"positioning":"Mid-market option with solid ratings.","competitorNotes":["Competitor A is cheaper"],"strengths":["price"],"weaknesses":["brand"]}`, nil
	case strings.Contains(input.System, "listing optimization"):
		if f.adviceErr != nil {
			return "", f.adviceErr
		}
		return `{"titleSuggestions":["Better Title"],"descriptionSuggestions":["Clearer copy"],"pricingGuidance":"Hold price.","improvements":["Add more images"]}`, nil
	default:
		return "", fmt.Errorf("unexpected prompt: %s", input.System)
	}
}

func newTestEngine(fetcher *fakeFetcher, client llm.Client, repo products.Repo, sink ProgressSink) *Engine {
	return NewEngine(fetcher, client, repo, sink, DefaultRunConfig(), 4)
}

const (
	mainASIN = "B08N5WRWNW"
	mainURL  = "https://www.amazon.com/dp/" + mainASIN
)

func newMainState() *AnalysisState {
	return NewState("run-1", "user-1", mainURL, mainASIN)
}
