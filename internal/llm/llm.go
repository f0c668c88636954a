package llm

import (
	"context"
	"errors"
	"strings"
)

// Client abstracts LLM providers for product analysis.
type Client interface {
	Complete(ctx context.Context, input CompleteInput) (string, error)
}

// CompleteInput captures one chat completion request.
type CompleteInput struct {
	System     string
	User       string
	JSONOutput bool
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, input CompleteInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}

// StripJSONFence removes a markdown code fence wrapping a JSON payload.
// Providers sometimes wrap structured output in ```json fences even when
// asked for raw JSON.
func StripJSONFence(s string) string {
	out := strings.TrimSpace(s)
	if strings.HasPrefix(out, "```json") {
		out = strings.TrimPrefix(out, "```json")
	} else if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```")
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}
