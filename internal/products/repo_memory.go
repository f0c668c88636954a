package products

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores products in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu          sync.RWMutex
	byASIN      map[string]Record
	competitors map[string]map[string]Candidate
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byASIN:      make(map[string]Record),
		competitors: make(map[string]map[string]Candidate),
	}
}

// UpsertProduct stores or replaces the record keyed by ASIN.
func (r *MemoryRepo) UpsertProduct(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byASIN[record.ASIN] = record
	return nil
}

// GetProduct returns a product by ASIN.
func (r *MemoryRepo) GetProduct(ctx context.Context, asin string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byASIN[asin]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// UpsertCompetitors stores candidates keyed by (mainASIN, candidate ASIN).
func (r *MemoryRepo) UpsertCompetitors(ctx context.Context, mainASIN string, candidates []Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.competitors[mainASIN]
	if !ok {
		existing = make(map[string]Candidate)
		r.competitors[mainASIN] = existing
	}
	for _, candidate := range candidates {
		if candidate.ASIN == "" {
			continue
		}
		existing[candidate.ASIN] = candidate
	}
	return nil
}

// ListCompetitors returns candidates for a main product, highest confidence first.
func (r *MemoryRepo) ListCompetitors(ctx context.Context, mainASIN string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Candidate, 0, len(r.competitors[mainASIN]))
	for _, candidate := range r.competitors[mainASIN] {
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out, nil
}
