package scrape

import (
	"context"

	"golang.org/x/time/rate"
)

// Gate is a shared admission limiter for outbound page fetches. All runs go
// through the same gate so concurrent analyses cannot hammer the marketplace.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate builds a gate allowing requestsPerMinute sustained with the given burst.
func NewGate(requestsPerMinute, burst int) *Gate {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(float64(requestsPerMinute) / 60.0)
	return &Gate{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a fetch slot is available or the context is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}
