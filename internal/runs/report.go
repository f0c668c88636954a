package runs

import (
	"fmt"
	"sort"
	"strings"

	"productlens-backend/internal/products"
)

// CompileReport assembles the final markdown report from the structured fields
// already present on the state. It performs no extraction or analysis of its
// own and is safe to call on partial states.
func CompileReport(state *AnalysisState) string {
	var b strings.Builder

	b.WriteString("# Product Analysis Report\n\n")
	fmt.Fprintf(&b, "Run: %s\n\n", state.RunID)

	if state.ProductData != nil {
		writeProductSection(&b, *state.ProductData)
	} else {
		b.WriteString("## Product\n\nNo product data was collected.\n\n")
	}

	writeCompetitorSection(&b, state.CompetitorData)

	if len(state.MarketAnalysis) > 0 {
		b.WriteString("## Market Analysis\n\n")
		writeStructured(&b, state.MarketAnalysis)
	}

	if len(state.OptimizationAdvice) > 0 {
		b.WriteString("## Optimization Advice\n\n")
		writeStructured(&b, state.OptimizationAdvice)
	}

	return b.String()
}

func writeProductSection(b *strings.Builder, rec products.Record) {
	fmt.Fprintf(b, "## Product: %s\n\n", rec.Title)
	fmt.Fprintf(b, "- URL: %s\n", rec.URL)
	if rec.Price != nil {
		fmt.Fprintf(b, "- Price: %.2f %s\n", *rec.Price, rec.Currency)
	}
	if rec.Rating != nil {
		fmt.Fprintf(b, "- Rating: %.1f / 5", *rec.Rating)
		if rec.ReviewCount != nil {
			fmt.Fprintf(b, " (%d reviews)", *rec.ReviewCount)
		}
		b.WriteString("\n")
	}
	if rec.Availability != "" {
		fmt.Fprintf(b, "- Availability: %s\n", rec.Availability)
	}
	fmt.Fprintf(b, "- Data quality: %.0f%%\n", rec.QualityScore()*100)
	completeness := products.ComputeCompleteness(rec)
	fmt.Fprintf(b, "- Field completeness: %.0f%%", completeness.OverallScore*100)
	if len(completeness.Critical.Missing) > 0 {
		fmt.Fprintf(b, " (missing critical: %s)", strings.Join(completeness.Critical.Missing, ", "))
	}
	b.WriteString("\n")
	if rec.SourceKind == products.SourceLLMInferred {
		b.WriteString("- Provenance: inferred (live extraction unavailable)\n")
	}
	b.WriteString("\n")
}

func writeCompetitorSection(b *strings.Builder, competitors []products.Record) {
	if len(competitors) == 0 {
		b.WriteString("## Competitors\n\nNo competitor data was collected.\n\n")
		return
	}
	fmt.Fprintf(b, "## Competitors (%d)\n\n", len(competitors))
	for _, c := range competitors {
		fmt.Fprintf(b, "- %s", c.Title)
		if c.Price != nil {
			fmt.Fprintf(b, " | %.2f %s", *c.Price, c.Currency)
		}
		if c.Rating != nil {
			fmt.Fprintf(b, " | %.1f stars", *c.Rating)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// writeStructured renders a structured result map as markdown, with string
// values as paragraphs and list values as bullet lists. Keys render in the
// order the producing worker declared where possible.
func writeStructured(b *strings.Builder, m map[string]any) {
	for _, key := range orderedKeys(m) {
		fmt.Fprintf(b, "### %s\n\n", humanizeKey(key))
		switch v := m[key].(type) {
		case string:
			b.WriteString(strings.TrimSpace(v))
			b.WriteString("\n\n")
		case []string:
			for _, item := range v {
				fmt.Fprintf(b, "- %s\n", item)
			}
			b.WriteString("\n")
		case []any:
			for _, item := range v {
				fmt.Fprintf(b, "- %v\n", item)
			}
			b.WriteString("\n")
		default:
			fmt.Fprintf(b, "%v\n\n", v)
		}
	}
}

// preferredKeyOrder pins the well-known result keys to a stable section order.
var preferredKeyOrder = []string{
	"positioning",
	"competitorNotes",
	"pricingComparison",
	"titleSuggestions",
	"descriptionSuggestions",
	"pricingGuidance",
	"improvements",
}

func orderedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, key := range preferredKeyOrder {
		if _, ok := m[key]; ok {
			out = append(out, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(m))
	for key := range m {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// humanizeKey turns a camelCase result key into a section title.
func humanizeKey(key string) string {
	var b strings.Builder
	for i, r := range key {
		if i == 0 {
			b.WriteString(strings.ToUpper(string(r)))
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
