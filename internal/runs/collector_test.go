package runs

import (
	"context"
	"fmt"
	"testing"

	"productlens-backend/internal/products"
)

func TestCollectMainProductSuccess(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.records[mainURL] = testRecord(mainASIN, "Main Product")
	fetcher.discoverBatches = [][]products.Candidate{
		{testCandidate("B000000001", 0.9), testCandidate("B000000002", 0.7)},
	}
	repo := products.NewMemoryRepo()
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}, Repo: repo}

	state := newMainState()
	state.Phase = PhaseMainProduct
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.ProductData == nil || state.ProductData.SourceKind != products.SourceScraped {
		t.Fatalf("ProductData = %+v, want scraped record", state.ProductData)
	}
	if len(state.CompetitorCandidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(state.CompetitorCandidates))
	}
	if state.Progress != progressMainProduct {
		t.Fatalf("Progress = %d, want %d", state.Progress, progressMainProduct)
	}

	// incremental persistence
	if _, err := repo.GetProduct(context.Background(), mainASIN); err != nil {
		t.Fatalf("product not persisted: %v", err)
	}
	persisted, err := repo.ListCompetitors(context.Background(), mainASIN)
	if err != nil || len(persisted) != 2 {
		t.Fatalf("competitors persisted = %d (%v), want 2", len(persisted), err)
	}
}

func TestCollectMainProductFallsBackToInference(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failFetch[mainURL] = true
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}, Repo: products.NewMemoryRepo()}

	state := newMainState()
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.ProductData == nil {
		t.Fatal("expected product data from fallback")
	}
	if state.ProductData.SourceKind != products.SourceLLMInferred {
		t.Fatalf("SourceKind = %q, want llm_inferred", state.ProductData.SourceKind)
	}
	if state.ProductData.Title != "Inferred Product" {
		t.Fatalf("Title = %q", state.ProductData.Title)
	}
}

func TestCollectMainProductSurvivesDoubleFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failFetch[mainURL] = true
	client := &fakeLLM{inferErr: context.DeadlineExceeded}
	collector := &Collector{Fetcher: fetcher, LLM: client}

	state := newMainState()
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.ProductData == nil || state.ProductData.SourceKind != products.SourceLLMInferred {
		t.Fatalf("ProductData = %+v, want minimal inferred record", state.ProductData)
	}
	if state.ProductData.Title == "" {
		t.Fatal("minimal record must carry a title")
	}
}

func TestCollectCompetitorsCapsAtFive(t *testing.T) {
	fetcher := newFakeFetcher()
	var candidates []products.Candidate
	for _, asin := range []string{"B000000001", "B000000002", "B000000003", "B000000004", "B000000005", "B000000006", "B000000007"} {
		candidates = append(candidates, testCandidate(asin, 0.5))
		fetcher.records["https://www.amazon.com/dp/"+asin] = testRecord(asin, "Competitor "+asin)
	}
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}}

	state := newMainState()
	state.Phase = PhaseCompetitorCollection
	state.CompetitorCandidates = candidates
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.CompetitorData) != 5 {
		t.Fatalf("CompetitorData = %d, want capped at 5", len(state.CompetitorData))
	}
	if len(fetcher.fetchCalls) != 5 {
		t.Fatalf("fetch calls = %d, want 5", len(fetcher.fetchCalls))
	}
}

func TestCollectCompetitorsPromotesByConfidence(t *testing.T) {
	fetcher := newFakeFetcher()
	var candidates []products.Candidate
	// deliberately out of confidence order
	for i, score := range []float64{0.3, 0.9, 0.5, 0.8, 0.4, 0.7, 0.6} {
		asin := fmt.Sprintf("B00000000%d", i+1)
		candidates = append(candidates, testCandidate(asin, score))
		fetcher.records["https://www.amazon.com/dp/"+asin] = testRecord(asin, "Competitor "+asin)
	}
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}}

	state := newMainState()
	state.Phase = PhaseCompetitorCollection
	state.CompetitorCandidates = candidates
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.CompetitorData) != 5 {
		t.Fatalf("CompetitorData = %d, want 5", len(state.CompetitorData))
	}
	for _, kept := range state.CompetitorCandidates {
		if kept.ConfidenceScore < 0.5 {
			t.Fatalf("candidate %s (%.1f) promoted over higher-confidence ones", kept.ASIN, kept.ConfidenceScore)
		}
	}
}

func TestCollectCompetitorsDropsFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	good := testCandidate("B000000001", 0.9)
	bad := testCandidate("B000000002", 0.8)
	fetcher.records[good.URL] = testRecord(good.ASIN, "Good Competitor")
	fetcher.failFetch[bad.URL] = true
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}}

	state := newMainState()
	state.Phase = PhaseCompetitorCollection
	state.CompetitorCandidates = []products.Candidate{good, bad}
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(state.CompetitorData) != 1 {
		t.Fatalf("CompetitorData = %d, want 1 (failure dropped)", len(state.CompetitorData))
	}
	if len(state.CompetitorCandidates) != 1 || state.CompetitorCandidates[0].ASIN != good.ASIN {
		t.Fatalf("candidates = %+v, want failed candidate dropped", state.CompetitorCandidates)
	}
}

func TestRetryUsesAggressiveDiscovery(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.discoverBatches = [][]products.Candidate{{testCandidate("B000000009", 0.4)}}
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}}

	state := newMainState()
	state.Phase = PhaseCompetitorRetry
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want 1", state.RetryCount)
	}
	if len(fetcher.aggressiveSeen) != 1 || !fetcher.aggressiveSeen[0] {
		t.Fatalf("aggressiveSeen = %v, want [true]", fetcher.aggressiveSeen)
	}
	if len(state.CompetitorCandidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(state.CompetitorCandidates))
	}
}

func TestRetryWithZeroCandidatesIsNotAnError(t *testing.T) {
	fetcher := newFakeFetcher()
	collector := &Collector{Fetcher: fetcher, LLM: &fakeLLM{}}

	state := newMainState()
	state.Phase = PhaseCompetitorRetry
	if err := collector.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(state.CompetitorCandidates) != 0 {
		t.Fatalf("candidates = %d, want 0", len(state.CompetitorCandidates))
	}
}

func TestCollectorRejectsUnknownPhase(t *testing.T) {
	collector := &Collector{Fetcher: newFakeFetcher(), LLM: &fakeLLM{}}
	state := newMainState()
	state.Phase = PhaseDone

	err := collector.Run(context.Background(), state)
	if err == nil || ClassifyFailure(err) != ErrorCodeInternalInvariant {
		t.Fatalf("err = %v, want invariant violation", err)
	}
}
