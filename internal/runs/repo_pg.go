package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO runs (id, user_id, product_url, asin, status, phase, progress, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.ProductURL,
		run.ASIN,
		run.Status,
		string(run.Phase),
		run.Progress,
		createdAt,
	)
	return err
}

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, runID string) (Run, error) {
	const query = `
SELECT id, user_id, product_url, asin, status, phase, progress,
       error_message, final_report, market_analysis, optimization_advice,
       created_at, updated_at, completed_at
FROM runs
WHERE id = $1
LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// ListByUser lists runs for a user, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT id, user_id, product_url, asin, status, phase, progress,
       error_message, final_report, market_analysis, optimization_advice,
       created_at, updated_at, completed_at
FROM runs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// UpdateProgress applies a status/phase/progress change. GREATEST keeps
// progress monotonic even under duplicate delivery.
func (r *PGRepo) UpdateProgress(ctx context.Context, runID, status string, phase Phase, progress int) error {
	const query = `
UPDATE runs
SET status = $1,
    phase = $2,
    progress = GREATEST(progress, $3),
    started_at = CASE
        WHEN $1 = 'processing' AND started_at IS NULL THEN now()
        ELSE started_at
    END,
    updated_at = now()
WHERE id = $4::uuid`

	res, err := r.DB.ExecContext(ctx, query, status, string(phase), progress, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete stores the terminal result of a run.
func (r *PGRepo) Complete(ctx context.Context, runID, status string, result TerminalResult) error {
	const query = `
UPDATE runs
SET status = $1,
    phase = 'done',
    progress = CASE WHEN $1 = 'completed' THEN 100 ELSE progress END,
    error_message = $2,
    final_report = $3,
    market_analysis = $4::jsonb,
    optimization_advice = $5::jsonb,
    completed_at = now(),
    updated_at = now()
WHERE id = $6::uuid`

	market, err := marshalNullableJSON(result.MarketAnalysis)
	if err != nil {
		return err
	}
	advice, err := marshalNullableJSON(result.OptimizationAdvice)
	if err != nil {
		return err
	}

	res, err := r.DB.ExecContext(ctx, query, status, result.ErrorMessage, result.FinalReport, market, advice, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var phase string
	var errorMessage sql.NullString
	var finalReport sql.NullString
	var market sql.NullString
	var advice sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.ProductURL,
		&run.ASIN,
		&run.Status,
		&phase,
		&run.Progress,
		&errorMessage,
		&finalReport,
		&market,
		&advice,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Phase = Phase(phase)
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	if finalReport.Valid {
		run.FinalReport = &finalReport.String
	}
	if market.Valid {
		_ = json.Unmarshal([]byte(market.String), &run.MarketAnalysis)
	}
	if advice.Valid {
		_ = json.Unmarshal([]byte(advice.String), &run.OptimizationAdvice)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

func marshalNullableJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
