package runs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"productlens-backend/internal/products"
	"productlens-backend/internal/queue"
	"productlens-backend/internal/shared/storage/object"
	"productlens-backend/internal/shared/telemetry"
)

// Service owns the lifecycle of analysis runs: validation, creation, queueing,
// and execution. Execution happens on the worker process when a queue is
// configured, otherwise inline on a background goroutine.
type Service struct {
	Repo     Repo
	Products products.Repo
	Engine   *Engine
	Queue    queue.Client
	Store    object.ObjectStore
	Sink     ProgressSink
}

// Start validates the URL, creates a run, and schedules it for execution.
func (s *Service) Start(ctx context.Context, userID, productURL string) (Run, error) {
	asin, err := products.ValidateURL(productURL)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProductURL: strings.TrimSpace(productURL),
		ASIN:       asin,
		Status:     StatusPending,
		Phase:      PhaseMainProduct,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, run); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	if s.Queue != nil {
		msg := queue.Message{
			RunID:      run.ID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			telemetry.Error("run.enqueue_failed", map[string]any{
				"runId": run.ID,
				"error": err.Error(),
			})
			return Run{}, fmt.Errorf("enqueue run: %w", err)
		}
		telemetry.Info("run.enqueued", map[string]any{"runId": run.ID})
		return run, nil
	}

	go func() {
		if err := s.ProcessRun(context.Background(), run.ID); err != nil {
			telemetry.Error("run.process_failed", map[string]any{
				"runId": run.ID,
				"error": err.Error(),
			})
		}
	}()
	return run, nil
}

// ProcessRun executes a previously created run to a terminal state and
// persists the outcome. Safe to call again for an already-terminal run.
func (s *Service) ProcessRun(ctx context.Context, runID string) error {
	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Status == StatusCompleted || run.Status == StatusFailed {
		telemetry.Info("run.already_terminal", map[string]any{
			"runId":  runID,
			"status": run.Status,
		})
		return nil
	}

	state := NewState(run.ID, run.UserID, run.ProductURL, run.ASIN)
	engine := *s.Engine
	engine.Sink = multiSink{s.Sink, &repoSink{repo: s.Repo}}

	final := engine.Run(ctx, state)

	result := TerminalResult{
		MarketAnalysis:     final.MarketAnalysis,
		OptimizationAdvice: final.OptimizationAdvice,
	}
	if final.ErrorMessage != "" {
		result.ErrorMessage = &final.ErrorMessage
	}
	if final.FinalReport != "" {
		result.FinalReport = &final.FinalReport
		s.archiveReport(ctx, final.RunID, final.FinalReport)
	}
	if err := s.Repo.Complete(context.Background(), final.RunID, final.Status, result); err != nil {
		return fmt.Errorf("persist terminal run: %w", err)
	}
	return nil
}

// Get returns a run by ID, scoped to its owner.
func (s *Service) Get(ctx context.Context, runID, userID string) (Run, error) {
	run, err := s.Repo.GetByID(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	if userID != "" && run.UserID != userID {
		return Run{}, ErrNotFound
	}
	return run, nil
}

// List returns runs for a user, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// ReportKey is the object-store location of a run's archived report.
func ReportKey(runID string) string {
	return "reports/" + runID + ".md"
}

func (s *Service) archiveReport(ctx context.Context, runID, report string) {
	if s.Store == nil {
		return
	}
	if _, err := s.Store.Put(ctx, ReportKey(runID), "text/markdown", strings.NewReader(report)); err != nil {
		telemetry.Error("run.report_archive_failed", map[string]any{
			"runId": runID,
			"error": err.Error(),
		})
	}
}

// repoSink mirrors progress updates into the runs table so polling clients
// observe the same values the sink delivers.
type repoSink struct {
	repo Repo
}

func (s *repoSink) Emit(update ProgressUpdate) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.UpdateProgress(ctx, update.RunID, update.Status, update.Phase, update.Progress); err != nil {
		telemetry.Warn("run.progress_persist_failed", map[string]any{
			"runId": update.RunID,
			"error": err.Error(),
		})
	}
}

// multiSink fans one update out to several sinks. Nil members are skipped.
type multiSink []ProgressSink

func (m multiSink) Emit(update ProgressUpdate) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(update)
		}
	}
}
