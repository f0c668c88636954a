package runs

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"productlens-backend/internal/products"
	"productlens-backend/internal/shared/server/middleware"
	"productlens-backend/internal/shared/server/respond"
	"productlens-backend/internal/shared/util"
)

// Handler wires HTTP handlers to the runs service.
type Handler struct {
	Svc  *Service
	Sink *MemorySink
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sink *MemorySink) *Handler {
	return &Handler{Svc: svc, Sink: sink}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.startRun)
	rg.GET("/analyses", h.listRuns)
	rg.GET("/analyses/:id", h.getRun)
	rg.GET("/analyses/:id/progress", h.getProgress)
	rg.GET("/analyses/:id/report", h.getReport)
}

type startRunRequest struct {
	ProductURL string `json:"productUrl"`
}

func (h *Handler) startRun(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProductURL) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "productUrl is required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	run, err := h.Svc.Start(ctx, userID, req.ProductURL)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrUnsupportedURL):
			respond.Error(c, http.StatusBadRequest, "unsupported_url", "the URL is not a supported marketplace product URL", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"runId":  run.ID,
		"status": run.Status,
	})
}

func (h *Handler) getRun(c *gin.Context) {
	runID := c.Param("id")
	run, err := h.Svc.Get(c.Request.Context(), runID, middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		}
		return
	}

	resp := gin.H{
		"id":       run.ID,
		"status":   run.Status,
		"phase":    run.Phase,
		"progress": run.Progress,
	}
	if run.ErrorMessage != nil {
		resp["errorMessage"] = *run.ErrorMessage
	}
	if run.Status == StatusCompleted {
		if run.MarketAnalysis != nil {
			resp["marketAnalysis"] = run.MarketAnalysis
		}
		if run.OptimizationAdvice != nil {
			resp["optimizationAdvice"] = run.OptimizationAdvice
		}
	}
	respond.OK(c, resp)
}

// getProgress returns the emitted progress history for a run. Polling clients
// replay the sequence; values are monotonically non-decreasing.
func (h *Handler) getProgress(c *gin.Context) {
	runID := c.Param("id")
	if _, err := h.Svc.Get(c.Request.Context(), runID, middleware.UserIDFromContext(c)); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		return
	}

	var updates []ProgressUpdate
	if h.Sink != nil {
		updates = h.Sink.Updates(runID)
	}
	respond.OK(c, gin.H{"runId": runID, "updates": updates})
}

func (h *Handler) getReport(c *gin.Context) {
	runID := c.Param("id")
	run, err := h.Svc.Get(c.Request.Context(), runID, middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		return
	}
	if run.Status != StatusCompleted || run.FinalReport == nil {
		respond.Error(c, http.StatusConflict, "report_not_ready", "report is not available yet", nil)
		return
	}

	if name, err := util.SanitizeFileName(runID + ".md"); err == nil {
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	}

	// Prefer the archived copy; fall back to the row when the store is gone.
	if h.Svc.Store != nil {
		if body, err := h.Svc.Store.Open(c.Request.Context(), ReportKey(runID)); err == nil {
			defer body.Close()
			c.Header("Content-Type", "text/markdown; charset=utf-8")
			c.Status(http.StatusOK)
			_, _ = io.Copy(c.Writer, body)
			return
		}
	}
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.String(http.StatusOK, *run.FinalReport)
}

func (h *Handler) listRuns(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	runs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}

	items := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		items = append(items, gin.H{
			"id":        run.ID,
			"status":    run.Status,
			"phase":     run.Phase,
			"progress":  run.Progress,
			"asin":      run.ASIN,
			"createdAt": run.CreatedAt,
		})
	}
	respond.OK(c, gin.H{"items": items, "limit": limit, "offset": offset})
}
