package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"productlens-backend/internal/llm"
	"productlens-backend/internal/products"
)

// MarketAnalyzer produces positioning analysis from product and competitor
// data. It fails fast when product data is absent; a market cannot be analyzed
// without a product. Retries do not belong to this layer.
type MarketAnalyzer struct {
	LLM llm.Client
}

// Run executes the market analysis step.
func (m *MarketAnalyzer) Run(ctx context.Context, state *AnalysisState) error {
	if state.ProductData == nil {
		return NewPrerequisiteMissing("market analysis requires product data")
	}

	analysis, err := m.analyze(ctx, *state.ProductData, state.CompetitorData)
	if err != nil {
		return err
	}

	analysis["pricingComparison"] = pricingComparison(*state.ProductData, state.CompetitorData)
	state.MarketAnalysis = analysis
	state.SetProgress(progressMarket)
	return nil
}

type marketAnalysisOutput struct {
	Positioning     string   `json:"positioning"`
	CompetitorNotes []string `json:"competitorNotes"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
}

func (m *MarketAnalyzer) analyze(ctx context.Context, product products.Record, competitors []products.Record) (map[string]any, error) {
	if m.LLM == nil {
		return nil, NewInvariantViolation("market analyzer has no language model configured")
	}

	var b strings.Builder
	b.WriteString("Main product:\n")
	writeRecordSummary(&b, product)
	if len(competitors) == 0 {
		b.WriteString("\nNo competitor data is available. Produce a single-product positioning analysis.\n")
	} else {
		fmt.Fprintf(&b, "\nCompetitors (%d):\n", len(competitors))
		for _, c := range competitors {
			writeRecordSummary(&b, c)
		}
	}
	b.WriteString(`
Return a JSON object with keys:
- positioning (string): where this product sits in its market
- competitorNotes (array of strings): one strength/weakness note per competitor, empty array if none
- strengths (array of strings)
- weaknesses (array of strings)`)

	out, err := m.LLM.Complete(ctx, llm.CompleteInput{
		System:     "You are a marketplace analyst. Respond with JSON only.",
		User:       b.String(),
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("market analysis: %w", err)
	}

	var parsed marketAnalysisOutput
	if err := json.Unmarshal([]byte(llm.StripJSONFence(out)), &parsed); err != nil {
		return nil, fmt.Errorf("market analysis output parse: %w", err)
	}
	if strings.TrimSpace(parsed.Positioning) == "" {
		return nil, fmt.Errorf("market analysis output missing positioning")
	}

	return map[string]any{
		"positioning":     parsed.Positioning,
		"competitorNotes": parsed.CompetitorNotes,
		"strengths":       parsed.Strengths,
		"weaknesses":      parsed.Weaknesses,
	}, nil
}

// pricingComparison is computed locally; it is a deterministic function of
// the collected prices.
func pricingComparison(product products.Record, competitors []products.Record) string {
	if product.Price == nil {
		return "No price available for the main product."
	}
	var prices []float64
	for _, c := range competitors {
		if c.Price != nil && *c.Price > 0 {
			prices = append(prices, *c.Price)
		}
	}
	if len(prices) == 0 {
		return fmt.Sprintf("Listed at %.2f %s; no competitor prices available for comparison.", *product.Price, product.Currency)
	}

	min, max, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		sum += p
	}
	avg := sum / float64(len(prices))

	position := "within"
	switch {
	case *product.Price < min:
		position = "below"
	case *product.Price > max:
		position = "above"
	}
	return fmt.Sprintf("Listed at %.2f %s, %s the competitor band %.2f-%.2f (average %.2f, %d competitors).",
		*product.Price, product.Currency, position, min, max, avg, len(prices))
}

func writeRecordSummary(b *strings.Builder, rec products.Record) {
	fmt.Fprintf(b, "- %s", rec.Title)
	if rec.Price != nil {
		fmt.Fprintf(b, " | price %.2f %s", *rec.Price, rec.Currency)
	}
	if rec.Rating != nil {
		fmt.Fprintf(b, " | rating %.1f", *rec.Rating)
	}
	if rec.ReviewCount != nil {
		fmt.Fprintf(b, " | %d reviews", *rec.ReviewCount)
	}
	if rec.Category != "" {
		fmt.Fprintf(b, " | category %s", rec.Category)
	}
	b.WriteString("\n")
}
