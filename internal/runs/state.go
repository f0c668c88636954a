package runs

import (
	"time"

	"productlens-backend/internal/products"
)

// Phase is the current stage of data gathering/analysis within a run.
type Phase string

const (
	PhaseMainProduct          Phase = "main_product"
	PhaseCompetitorCollection Phase = "competitor_collection"
	PhaseCompetitorRetry      Phase = "competitor_retry"
	PhaseAnalysis             Phase = "analysis"
	PhaseDone                 Phase = "done"
)

// Run status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// WorkerKind is a closed enumeration of worker types the supervisor may route
// to. Routing over a closed set keeps the decision table exhaustively
// checkable instead of dispatching on open-ended strings.
type WorkerKind int

const (
	WorkerNone WorkerKind = iota
	WorkerDataCollector
	WorkerMarketAnalyzer
	WorkerOptimizationAdvisor
)

// String returns the worker name used in logs and progress messages.
func (w WorkerKind) String() string {
	switch w {
	case WorkerDataCollector:
		return "data_collector"
	case WorkerMarketAnalyzer:
		return "market_analyzer"
	case WorkerOptimizationAdvisor:
		return "optimization_advisor"
	default:
		return "none"
	}
}

// RunConfig bounds a single run. The bounds are configurable constants rather
// than hard-coded literals; defaults match production settings.
type RunConfig struct {
	MaxIterations         int
	CompetitorRetryBudget int
	WorkerCallTimeout     time.Duration
}

// DefaultRunConfig returns the production default bounds.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxIterations:         10,
		CompetitorRetryBudget: 1,
		WorkerCallTimeout:     45 * time.Second,
	}
}

func (c RunConfig) withDefaults() RunConfig {
	out := c
	if out.MaxIterations <= 0 {
		out.MaxIterations = 10
	}
	if out.CompetitorRetryBudget < 0 {
		out.CompetitorRetryBudget = 0
	}
	if out.WorkerCallTimeout <= 0 {
		out.WorkerCallTimeout = 45 * time.Second
	}
	return out
}

// AnalysisState is the single mutable record threaded through every step of a
// run. It is owned exclusively by the run for its lifetime: the engine and the
// currently invoked worker are the only writers, and never concurrently.
type AnalysisState struct {
	RunID      string
	UserID     string
	ProductURL string
	ASIN       string

	Phase      Phase
	NextWorker WorkerKind

	IterationCount int
	RetryCount     int

	ProductData          *products.Record
	CompetitorCandidates []products.Candidate
	CompetitorData       []products.Record

	MarketAnalysis     map[string]any
	OptimizationAdvice map[string]any

	Progress     int
	Status       string
	ErrorMessage string
	FinalReport  string
}

// NewState creates the initial state for a run.
func NewState(runID, userID, productURL, asin string) *AnalysisState {
	return &AnalysisState{
		RunID:      runID,
		UserID:     userID,
		ProductURL: productURL,
		ASIN:       asin,
		Phase:      PhaseMainProduct,
		NextWorker: WorkerNone,
		Status:     StatusPending,
	}
}

// SetProgress raises progress to p. Progress within a run is monotonically
// non-decreasing, so lower values are ignored.
func (s *AnalysisState) SetProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > s.Progress {
		s.Progress = p
	}
}

// Terminal reports whether the run has settled.
func (s *AnalysisState) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
