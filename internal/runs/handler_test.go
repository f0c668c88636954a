package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"productlens-backend/internal/shared/server/middleware"
)

func setupRunsRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	sink, _ := svc.Sink.(*MemorySink)
	h := NewHandler(svc, sink)
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path, userID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestStartRunAccepted(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &captureQueue{})
	router := setupRunsRouter(t, svc)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", "user-1", map[string]string{
		"productUrl": mainURL,
	})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}

	var created struct {
		RunID  string `json:"runId"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.RunID == "" || created.Status != StatusPending {
		t.Fatalf("created = %+v", created)
	}

	stored, err := svc.Repo.GetByID(context.Background(), created.RunID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.UserID != "user-1" {
		t.Fatalf("UserID = %q", stored.UserID)
	}
}

func TestStartRunValidation(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &captureQueue{})
	router := setupRunsRouter(t, svc)

	tests := []struct {
		name     string
		payload  any
		wantCode string
	}{
		{name: "missing url", payload: map[string]string{}, wantCode: "validation_error"},
		{name: "unsupported host", payload: map[string]string{"productUrl": "https://www.ebay.com/itm/1"}, wantCode: "unsupported_url"},
		{name: "no asin", payload: map[string]string{"productUrl": "https://www.amazon.com/gp/help"}, wantCode: "unsupported_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", "user-1", tt.payload)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
			}
			var parsed struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if parsed.Error.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", parsed.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestGetRunScopedToOwner(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &captureQueue{})
	router := setupRunsRouter(t, svc)

	run := Run{ID: "44444444-4444-4444-4444-444444444444", UserID: "user-1", ProductURL: mainURL, ASIN: mainASIN, Status: StatusPending, Phase: PhaseMainProduct}
	if err := svc.Repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+run.ID, "user-2", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("foreign user status = %d", resp.Code)
	}

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+run.ID, "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("owner status = %d, body %s", resp.Code, resp.Body.String())
	}
	if body := resp.Body.String(); strings.Contains(body, "marketAnalysis") {
		t.Fatalf("pending run must not expose analysis payloads: %s", body)
	}
}

func TestGetRunExposesAnalysisWhenCompleted(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.records[mainURL] = testRecord(mainASIN, "Main Product")
	svc := newTestService(t, fetcher, &captureQueue{})
	router := setupRunsRouter(t, svc)

	run := Run{ID: "55555555-5555-5555-5555-555555555555", UserID: "user-1", ProductURL: mainURL, ASIN: mainASIN, Status: StatusPending, Phase: PhaseMainProduct, CreatedAt: time.Now().UTC()}
	if err := svc.Repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+run.ID, "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if !strings.Contains(body, "marketAnalysis") || !strings.Contains(body, "optimizationAdvice") {
		t.Fatalf("completed run should expose analysis payloads: %s", body)
	}
}

func TestGetReportLifecycle(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.records[mainURL] = testRecord(mainASIN, "Main Product")
	svc := newTestService(t, fetcher, &captureQueue{})
	router := setupRunsRouter(t, svc)

	run := Run{ID: "66666666-6666-6666-6666-666666666666", UserID: "user-1", ProductURL: mainURL, ASIN: mainASIN, Status: StatusPending, Phase: PhaseMainProduct}
	if err := svc.Repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+run.ID+"/report", "user-1", nil); resp.Code != http.StatusConflict {
		t.Fatalf("pending report status = %d", resp.Code)
	}

	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+run.ID+"/report", "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("report status = %d, body %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, run.ID+".md") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(resp.Body.String(), "Main Product") {
		t.Fatal("report body missing product title")
	}
}

func TestGetProgressReturnsHistory(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.records[mainURL] = testRecord(mainASIN, "Main Product")
	svc := newTestService(t, fetcher, &captureQueue{})
	router := setupRunsRouter(t, svc)

	run := Run{ID: "77777777-7777-7777-7777-777777777777", UserID: "user-1", ProductURL: mainURL, ASIN: mainASIN, Status: StatusPending, Phase: PhaseMainProduct}
	if err := svc.Repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/"+run.ID+"/progress", "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	var parsed struct {
		Updates []ProgressUpdate `json:"updates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(parsed.Updates) == 0 {
		t.Fatal("expected progress updates")
	}
	last := parsed.Updates[len(parsed.Updates)-1]
	if last.Progress != 100 || last.Status != StatusCompleted {
		t.Fatalf("last update = %+v", last)
	}
}

func TestListRunsPagination(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &captureQueue{})
	router := setupRunsRouter(t, svc)

	for _, id := range []string{"aaaaaaaa-0000-0000-0000-000000000001", "aaaaaaaa-0000-0000-0000-000000000002", "aaaaaaaa-0000-0000-0000-000000000003"} {
		run := Run{ID: id, UserID: "user-1", ProductURL: mainURL, ASIN: mainASIN, Status: StatusPending, CreatedAt: time.Now().UTC()}
		if err := svc.Repo.Create(context.Background(), run); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses?limit=2", "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	var parsed struct {
		Items []map[string]any `json:"items"`
		Limit int              `json:"limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(parsed.Items) != 2 || parsed.Limit != 2 {
		t.Fatalf("items = %d limit = %d", len(parsed.Items), parsed.Limit)
	}
}
