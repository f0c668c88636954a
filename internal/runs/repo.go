package runs

import "context"

// Repo defines persistence operations for runs. All writes are idempotent on
// the run ID so progress updates may be re-applied.
type Repo interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, runID string) (Run, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error)
	// UpdateProgress applies a status/phase/progress change. Progress never
	// moves backwards.
	UpdateProgress(ctx context.Context, runID, status string, phase Phase, progress int) error
	// Complete stores the terminal result of a run.
	Complete(ctx context.Context, runID, status string, result TerminalResult) error
}

// TerminalResult captures everything persisted when a run settles.
type TerminalResult struct {
	ErrorMessage       *string
	FinalReport        *string
	MarketAnalysis     map[string]any
	OptimizationAdvice map[string]any
}
