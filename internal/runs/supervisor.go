package runs

// Progress milestones for supervisor decisions. Worker invocations raise
// progress further; values only ever move up.
const (
	progressRouting     = 10
	progressMainProduct = 40
	progressCompetitors = 60
	progressMarket      = 80
	progressAdvice      = 95
)

// Decision is one routing outcome of the supervisor.
type Decision struct {
	Worker   WorkerKind
	Phase    Phase
	Terminal bool
}

// Supervisor routes between workers and owns terminal states. It never
// performs extraction or analysis itself; its work is pure routing plus final
// report compilation from already-computed fields.
type Supervisor struct {
	Config RunConfig
}

// NewSupervisor constructs a supervisor with the given bounds.
func NewSupervisor(cfg RunConfig) *Supervisor {
	return &Supervisor{Config: cfg.withDefaults()}
}

// Decide inspects the state and returns the next routing decision. Each call
// counts one iteration against the run's bound; exceeding the bound forces
// termination with whatever partial results exist.
func (s *Supervisor) Decide(state *AnalysisState) Decision {
	if state.IterationCount >= s.Config.MaxIterations {
		s.finishEarly(state)
		return Decision{Terminal: true}
	}
	state.IterationCount++

	switch {
	case state.ProductData == nil:
		state.Phase = PhaseMainProduct
		state.NextWorker = WorkerDataCollector
		return Decision{Worker: WorkerDataCollector, Phase: PhaseMainProduct}

	case len(state.CompetitorCandidates) > 0 && len(state.CompetitorData) == 0 && state.Phase != PhaseAnalysis:
		state.Phase = PhaseCompetitorCollection
		state.NextWorker = WorkerDataCollector
		return Decision{Worker: WorkerDataCollector, Phase: PhaseCompetitorCollection}

	case len(state.CompetitorCandidates) == 0 && state.RetryCount < s.Config.CompetitorRetryBudget && state.Phase != PhaseAnalysis:
		state.Phase = PhaseCompetitorRetry
		state.NextWorker = WorkerDataCollector
		return Decision{Worker: WorkerDataCollector, Phase: PhaseCompetitorRetry}

	case state.MarketAnalysis == nil:
		state.Phase = PhaseAnalysis
		state.NextWorker = WorkerMarketAnalyzer
		return Decision{Worker: WorkerMarketAnalyzer, Phase: PhaseAnalysis}

	case state.OptimizationAdvice == nil:
		state.Phase = PhaseAnalysis
		state.NextWorker = WorkerOptimizationAdvisor
		return Decision{Worker: WorkerOptimizationAdvisor, Phase: PhaseAnalysis}

	default:
		s.finish(state)
		return Decision{Terminal: true}
	}
}

// finish compiles the final report and settles the run as completed.
func (s *Supervisor) finish(state *AnalysisState) {
	state.Phase = PhaseDone
	state.NextWorker = WorkerNone
	state.FinalReport = CompileReport(state)
	state.Status = StatusCompleted
	state.SetProgress(100)
}

// finishEarly handles the iteration bound: completed with partial results when
// at least product data exists, failed otherwise.
func (s *Supervisor) finishEarly(state *AnalysisState) {
	state.Phase = PhaseDone
	state.NextWorker = WorkerNone
	if state.ProductData != nil {
		state.FinalReport = CompileReport(state)
		state.Status = StatusCompleted
		state.SetProgress(100)
		return
	}
	state.Status = StatusFailed
	state.ErrorMessage = (&WorkerError{
		Code:    ErrorCodeIterationBound,
		Message: "iteration bound reached before product data was collected",
	}).Error()
}
