package runs

import (
	"strings"
	"testing"

	"productlens-backend/internal/products"
)

func TestCompileReportFullState(t *testing.T) {
	state := newMainState()
	rec := testRecord(mainASIN, "Main Product")
	state.ProductData = &rec
	state.CompetitorData = []products.Record{testRecord("B000000001", "Rival One")}
	state.MarketAnalysis = map[string]any{
		"positioning":       "Mid-market option.",
		"pricingComparison": "Within the competitor band.",
	}
	state.OptimizationAdvice = map[string]any{
		"improvements":    []string{"Add more images"},
		"pricingGuidance": "Hold price.",
	}

	report := CompileReport(state)
	for _, want := range []string{
		"# Product Analysis Report",
		"Main Product",
		"Rival One",
		"Mid-market option.",
		"Add more images",
		"Pricing Guidance",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestCompileReportSurfacesInferredProvenance(t *testing.T) {
	state := newMainState()
	rec := testRecord(mainASIN, "Inferred Product")
	rec.SourceKind = products.SourceLLMInferred
	state.ProductData = &rec

	report := CompileReport(state)
	if !strings.Contains(report, "inferred") {
		t.Fatal("report should surface inferred provenance")
	}
	if !strings.Contains(report, "No competitor data") {
		t.Fatal("report should note missing competitor data")
	}
}

func TestCompileReportShowsFieldCompleteness(t *testing.T) {
	state := newMainState()
	rec := products.Record{
		ASIN:       mainASIN,
		URL:        mainURL,
		Title:      "Sparse Product",
		SourceKind: products.SourceScraped,
	}
	state.ProductData = &rec

	report := CompileReport(state)
	if !strings.Contains(report, "Field completeness:") {
		t.Fatalf("report missing completeness breakdown:\n%s", report)
	}
	if !strings.Contains(report, "missing critical: price") {
		t.Fatalf("report should name missing critical fields:\n%s", report)
	}
}

func TestCompileReportPartialState(t *testing.T) {
	state := newMainState()
	report := CompileReport(state)
	if !strings.Contains(report, "No product data") {
		t.Fatal("report should handle absent product data")
	}
}

func TestHumanizeKey(t *testing.T) {
	if got := humanizeKey("titleSuggestions"); got != "Title Suggestions" {
		t.Fatalf("humanizeKey = %q", got)
	}
	if got := humanizeKey("positioning"); got != "Positioning" {
		t.Fatalf("humanizeKey = %q", got)
	}
}
