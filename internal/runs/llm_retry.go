package runs

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"productlens-backend/internal/llm"
	"productlens-backend/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

type retryingLLM struct {
	base  llm.Client
	runID string
}

// newRetryingLLM wraps a client with a single retry on transient failures.
func newRetryingLLM(base llm.Client, runID string) llm.Client {
	if base == nil {
		return nil
	}
	return retryingLLM{base: base, runID: runID}
}

func (r retryingLLM) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	out, err := r.base.Complete(ctx, input)
	if err == nil || !shouldRetryLLM(err) {
		return out, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"runId": r.runID,
		"error": sanitizeError(err),
	})
	select {
	case <-time.After(llmRetryBaseDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return r.base.Complete(ctx, input)
}

func shouldRetryLLM(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") {
		return true
	}
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
