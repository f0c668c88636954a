package runs

import (
	"context"
	"strings"
	"testing"

	"productlens-backend/internal/products"
)

func TestMarketAnalyzerFailsFastWithoutProductData(t *testing.T) {
	analyzer := &MarketAnalyzer{LLM: &fakeLLM{}}
	state := newMainState()

	err := analyzer.Run(context.Background(), state)
	if err == nil || ClassifyFailure(err) != ErrorCodePrerequisite {
		t.Fatalf("err = %v, want PrerequisiteMissing", err)
	}
}

func TestMarketAnalyzerSingleProduct(t *testing.T) {
	client := &fakeLLM{}
	analyzer := &MarketAnalyzer{LLM: client}
	state := newMainState()
	rec := testRecord(mainASIN, "Main Product")
	state.ProductData = &rec

	if err := analyzer.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.MarketAnalysis == nil {
		t.Fatal("expected market analysis for single product")
	}
	if pos, _ := state.MarketAnalysis["positioning"].(string); pos == "" {
		t.Fatal("expected non-empty positioning")
	}
	if len(client.calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(client.calls))
	}
	if !strings.Contains(client.calls[0].User, "No competitor data") {
		t.Fatal("prompt should note the single-product degradation")
	}
}

func TestMarketAnalyzerIncludesCompetitors(t *testing.T) {
	client := &fakeLLM{}
	analyzer := &MarketAnalyzer{LLM: client}
	state := newMainState()
	rec := testRecord(mainASIN, "Main Product")
	state.ProductData = &rec
	state.CompetitorData = []products.Record{
		testRecord("B000000001", "Rival One"),
		testRecord("B000000002", "Rival Two"),
	}

	if err := analyzer.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(client.calls[0].User, "Rival One") {
		t.Fatal("prompt should include competitor data")
	}
	comparison, _ := state.MarketAnalysis["pricingComparison"].(string)
	if comparison == "" {
		t.Fatal("expected pricing comparison")
	}
}

func TestPricingComparison(t *testing.T) {
	product := testRecord(mainASIN, "Main")
	product.Price = floatPtr(10)
	cheap := testRecord("B000000001", "Cheap")
	cheap.Price = floatPtr(20)
	dear := testRecord("B000000002", "Dear")
	dear.Price = floatPtr(40)

	got := pricingComparison(product, []products.Record{cheap, dear})
	if !strings.Contains(got, "below") {
		t.Fatalf("pricingComparison = %q, want below the band", got)
	}

	product.Price = floatPtr(30)
	got = pricingComparison(product, []products.Record{cheap, dear})
	if !strings.Contains(got, "within") {
		t.Fatalf("pricingComparison = %q, want within the band", got)
	}

	got = pricingComparison(products.Record{}, nil)
	if !strings.Contains(got, "No price") {
		t.Fatalf("pricingComparison = %q", got)
	}
}
