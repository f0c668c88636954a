package runs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Run
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Run)}
}

// Create stores a new run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.UpdatedAt = run.CreatedAt
	r.byID[run.ID] = run
	return nil
}

// GetByID returns a run by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

// ListByUser lists runs for a user, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Run
	for _, run := range r.byID {
		if run.UserID == userID {
			all = append(all, run)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// UpdateProgress applies a status/phase/progress change.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, runID, status string, phase Phase, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	run.Status = status
	run.Phase = phase
	if progress > run.Progress {
		run.Progress = progress
	}
	run.UpdatedAt = time.Now().UTC()
	r.byID[runID] = run
	return nil
}

// Complete stores the terminal result of a run.
func (r *MemoryRepo) Complete(ctx context.Context, runID, status string, result TerminalResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	run.Phase = PhaseDone
	if status == StatusCompleted {
		run.Progress = 100
	}
	run.ErrorMessage = result.ErrorMessage
	run.FinalReport = result.FinalReport
	run.MarketAnalysis = result.MarketAnalysis
	run.OptimizationAdvice = result.OptimizationAdvice
	run.CompletedAt = &now
	run.UpdatedAt = now
	r.byID[runID] = run
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
