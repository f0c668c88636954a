package scrape

import (
	"context"
	"errors"

	"productlens-backend/internal/products"
)

// ErrFetchFailed wraps transport or parse failures during extraction.
var ErrFetchFailed = errors.New("page fetch failed")

// ErrNoProductData is returned when a page yields no usable product fields.
var ErrNoProductData = errors.New("no product data on page")

// Fetcher extracts product data from live marketplace pages.
type Fetcher interface {
	// FetchProduct extracts a standardized record from a product page.
	FetchProduct(ctx context.Context, url string) (products.Record, error)
	// DiscoverCompetitors collects competitor candidates from the related
	// sections of a product page. Aggressive mode lowers the confidence
	// threshold and scans more of the page.
	DiscoverCompetitors(ctx context.Context, url string, aggressive bool) ([]products.Candidate, error)
}
