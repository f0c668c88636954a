package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"productlens-backend/internal/llm"
)

// OptimizationAdvisor produces listing improvement recommendations from the
// product data and the market analysis. Same fail-fast policy as the market
// analyzer on missing prerequisites.
type OptimizationAdvisor struct {
	LLM llm.Client
}

// Run executes the advice step.
func (a *OptimizationAdvisor) Run(ctx context.Context, state *AnalysisState) error {
	if state.ProductData == nil {
		return NewPrerequisiteMissing("optimization advice requires product data")
	}
	if state.MarketAnalysis == nil {
		return NewPrerequisiteMissing("optimization advice requires market analysis")
	}
	if a.LLM == nil {
		return NewInvariantViolation("optimization advisor has no language model configured")
	}

	var b strings.Builder
	b.WriteString("Product:\n")
	writeRecordSummary(&b, *state.ProductData)
	if positioning, ok := state.MarketAnalysis["positioning"].(string); ok {
		fmt.Fprintf(&b, "\nMarket positioning: %s\n", positioning)
	}
	if comparison, ok := state.MarketAnalysis["pricingComparison"].(string); ok {
		fmt.Fprintf(&b, "Pricing: %s\n", comparison)
	}
	b.WriteString(`
Return a JSON object with keys:
- titleSuggestions (array of strings): improved listing titles
- descriptionSuggestions (array of strings)
- pricingGuidance (string)
- improvements (array of strings): actionable listing improvements, most impactful first`)

	out, err := a.LLM.Complete(ctx, llm.CompleteInput{
		System:     "You are an e-commerce listing optimization expert. Respond with JSON only.",
		User:       b.String(),
		JSONOutput: true,
	})
	if err != nil {
		return fmt.Errorf("optimization advice: %w", err)
	}

	var parsed struct {
		TitleSuggestions       []string `json:"titleSuggestions"`
		DescriptionSuggestions []string `json:"descriptionSuggestions"`
		PricingGuidance        string   `json:"pricingGuidance"`
		Improvements           []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(out)), &parsed); err != nil {
		return fmt.Errorf("optimization advice output parse: %w", err)
	}
	if len(parsed.Improvements) == 0 && parsed.PricingGuidance == "" {
		return fmt.Errorf("optimization advice output empty")
	}

	state.OptimizationAdvice = map[string]any{
		"titleSuggestions":       parsed.TitleSuggestions,
		"descriptionSuggestions": parsed.DescriptionSuggestions,
		"pricingGuidance":        parsed.PricingGuidance,
		"improvements":           parsed.Improvements,
	}
	state.SetProgress(progressAdvice)
	return nil
}
