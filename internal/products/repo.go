package products

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a product is not in the repository.
var ErrNotFound = errors.New("product not found")

// Repo defines persistence operations for products and competitors.
// Upserts are idempotent on ASIN so partial run progress stays durable.
type Repo interface {
	UpsertProduct(ctx context.Context, record Record) error
	GetProduct(ctx context.Context, asin string) (Record, error)
	UpsertCompetitors(ctx context.Context, mainASIN string, candidates []Candidate) error
	ListCompetitors(ctx context.Context, mainASIN string) ([]Candidate, error)
}
