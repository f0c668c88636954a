package runs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"productlens-backend/internal/llm"
	"productlens-backend/internal/products"
	"productlens-backend/internal/scrape"
	"productlens-backend/internal/shared/metrics"
	"productlens-backend/internal/shared/telemetry"
)

// abandonGrace is how long the engine waits for a timed-out worker call to
// unwind before abandoning it. Workers honor their context, so this only
// triggers when a fetch is stuck below the cancellation point.
var abandonGrace = 2 * time.Second

// Engine drives the supervisor/worker loop for analysis runs. Each run is one
// strictly sequential pipeline; across runs the engine supports arbitrary
// concurrency bounded by its worker pool.
type Engine struct {
	Fetcher  scrape.Fetcher
	LLM      llm.Client
	Products products.Repo
	Sink     ProgressSink
	Config   RunConfig

	// pool bounds worker invocations across all concurrent runs.
	pool chan struct{}
}

// NewEngine constructs an engine with a bounded worker pool.
func NewEngine(fetcher scrape.Fetcher, llmClient llm.Client, productsRepo products.Repo, sink ProgressSink, cfg RunConfig, maxConcurrentWorkers int) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	if maxConcurrentWorkers <= 0 {
		maxConcurrentWorkers = 8
	}
	return &Engine{
		Fetcher:  fetcher,
		LLM:      llmClient,
		Products: productsRepo,
		Sink:     sink,
		Config:   cfg.withDefaults(),
		pool:     make(chan struct{}, maxConcurrentWorkers),
	}
}

// Run executes the pipeline for one run to a terminal state. The returned
// state always has status completed or failed; it is never left pending or
// processing. The state must not be shared with any other run.
func (e *Engine) Run(ctx context.Context, state *AnalysisState) *AnalysisState {
	startedAt := time.Now()
	metrics.IncRunStarted()

	supervisor := NewSupervisor(e.Config)
	runLLM := newRetryingLLM(e.LLM, state.RunID)
	collector := &Collector{Fetcher: e.Fetcher, LLM: runLLM, Repo: e.Products}
	analyzer := &MarketAnalyzer{LLM: runLLM}
	advisor := &OptimizationAdvisor{LLM: runLLM}

	state.Status = StatusProcessing
	state.SetProgress(progressRouting)
	e.emit(state, "analysis started")

	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			e.fail(state, NewCancelled("run cancelled"))
			break
		}

		decision := supervisor.Decide(state)
		e.emit(state, fmt.Sprintf("supervisor: %s", decisionMessage(decision)))
		if decision.Terminal {
			break
		}

		err := e.invoke(ctx, decision.Worker, state, collector, analyzer, advisor)
		if err != nil {
			if ctx.Err() != nil {
				e.fail(state, NewCancelled("run cancelled"))
				break
			}
			if decision.Worker == WorkerDataCollector {
				// Collector timeouts degrade the phase instead of failing
				// the run; genuine invariant violations still escalate.
				if workerErrCode(err) == ErrorCodeInternalInvariant {
					e.fail(state, err)
					break
				}
				e.degradeCollection(state, err)
				e.emit(state, "data collection degraded")
				continue
			}
			e.fail(state, err)
			break
		}
		e.emit(state, fmt.Sprintf("%s finished", decision.Worker))
	}

	duration := float64(time.Since(startedAt).Microseconds()) / 1000.0
	metrics.ObserveRunDurationMs(duration)
	if state.Status == StatusCompleted {
		metrics.IncRunCompleted()
	} else {
		metrics.IncRunFailed()
	}
	e.emit(state, terminalMessage(state))
	telemetry.Info("run.finished", map[string]any{
		"runId":       state.RunID,
		"status":      state.Status,
		"phase":       string(state.Phase),
		"iterations":  state.IterationCount,
		"duration_ms": duration,
	})
	return state
}

// invoke dispatches one worker call onto the bounded pool with a per-call
// timeout. The loop itself never performs the blocking call.
func (e *Engine) invoke(ctx context.Context, worker WorkerKind, state *AnalysisState, collector *Collector, analyzer *MarketAnalyzer, advisor *OptimizationAdvisor) error {
	select {
	case e.pool <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.pool }()

	callCtx, cancel := context.WithTimeout(ctx, e.Config.WorkerCallTimeout)
	defer cancel()

	// The worker mutates a shadow copy of the state; the loop folds the copy
	// back in only when the call returns in time. A call that outlives the
	// abandon grace can then never write the live state, even if it later
	// unblocks past a non-cancellable point.
	shadow := *state
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.Error("run.worker_panic", map[string]any{
					"runId":  shadow.RunID,
					"worker": worker.String(),
					"panic":  fmt.Sprint(r),
					"stack":  string(debug.Stack()),
				})
				done <- fmt.Errorf("worker %s panicked: %v", worker, r)
			}
		}()
		switch worker {
		case WorkerDataCollector:
			done <- collector.Run(callCtx, &shadow)
		case WorkerMarketAnalyzer:
			done <- analyzer.Run(callCtx, &shadow)
		case WorkerOptimizationAdvisor:
			done <- advisor.Run(callCtx, &shadow)
		default:
			done <- NewInvariantViolation(fmt.Sprintf("unknown worker %d", worker))
		}
	}()

	select {
	case err := <-done:
		*state = shadow
		return err
	case <-callCtx.Done():
	}

	// The call context is done; give the worker a short grace to observe the
	// cancellation so its result can still be folded in.
	select {
	case err := <-done:
		*state = shadow
		if err != nil {
			return err
		}
		return callCtx.Err()
	case <-time.After(abandonGrace):
		telemetry.Error("run.worker_abandoned", map[string]any{
			"runId":  state.RunID,
			"worker": worker.String(),
			"phase":  string(state.Phase),
		})
		return fmt.Errorf("worker %s abandoned after timeout", worker)
	}
}

// degradeCollection applies phase-appropriate fallback when a collector call
// fails as a whole (timeout or abandonment). Partial failures inside the
// collector are already absorbed at the worker boundary.
func (e *Engine) degradeCollection(state *AnalysisState, cause error) {
	telemetry.Warn("run.collection_degraded", map[string]any{
		"runId": state.RunID,
		"phase": string(state.Phase),
		"error": sanitizeError(cause),
	})
	switch state.Phase {
	case PhaseMainProduct:
		if state.ProductData == nil {
			rec := minimalInferredRecord(state)
			state.ProductData = &rec
			metrics.IncScrapeFallback()
		}
		state.SetProgress(progressMainProduct)
	case PhaseCompetitorCollection:
		// Drop unscraped candidates so routing moves on to analysis.
		state.CompetitorCandidates = nil
		state.CompetitorData = nil
		state.SetProgress(progressCompetitors)
	case PhaseCompetitorRetry:
		if state.RetryCount < e.Config.CompetitorRetryBudget {
			state.RetryCount = e.Config.CompetitorRetryBudget
		}
		state.CompetitorCandidates = nil
	}
}

func (e *Engine) fail(state *AnalysisState, err error) {
	state.Status = StatusFailed
	state.ErrorMessage = sanitizeError(err)
	state.Phase = PhaseDone
	state.NextWorker = WorkerNone
}

func (e *Engine) emit(state *AnalysisState, message string) {
	e.Sink.Emit(ProgressUpdate{
		RunID:    state.RunID,
		Progress: state.Progress,
		Status:   state.Status,
		Phase:    state.Phase,
		Message:  message,
	})
}

func workerErrCode(err error) string {
	if err == nil {
		return ""
	}
	return ClassifyFailure(err)
}

func decisionMessage(d Decision) string {
	if d.Terminal {
		return "terminal"
	}
	return fmt.Sprintf("route %s (%s)", d.Worker, d.Phase)
}

func terminalMessage(state *AnalysisState) string {
	if state.Status == StatusCompleted {
		return "analysis completed"
	}
	return fmt.Sprintf("analysis failed: %s", state.ErrorMessage)
}
