package runs

import "time"

// Run is the persisted record of an analysis run.
type Run struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"userId"`
	ProductURL         string         `json:"productUrl"`
	ASIN               string         `json:"asin"`
	Status             string         `json:"status"`
	Phase              Phase          `json:"phase"`
	Progress           int            `json:"progress"`
	ErrorMessage       *string        `json:"errorMessage,omitempty"`
	FinalReport        *string        `json:"finalReport,omitempty"`
	MarketAnalysis     map[string]any `json:"marketAnalysis,omitempty"`
	OptimizationAdvice map[string]any `json:"optimizationAdvice,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
}
