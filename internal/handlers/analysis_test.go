package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channel-analyzer/internal/api"
	"github.com/jonesrussell/channel-analyzer/internal/collector"
	"github.com/jonesrussell/channel-analyzer/internal/export"
	"github.com/jonesrussell/channel-analyzer/internal/handlers"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/metadata"
	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/orchestrator"
	"github.com/jonesrussell/channel-analyzer/internal/store"
)

type collectFunc func(ctx context.Context, platform models.Platform, target string, sink collector.Sink) error

func (f collectFunc) Collect(ctx context.Context, platform models.Platform, target string, sink collector.Sink) error {
	return f(ctx, platform, target, sink)
}

type harness struct {
	store  *store.MemoryStore
	svc    *orchestrator.Service
	router *gin.Engine
}

func newHarness(t *testing.T, coll collector.Collector) *harness {
	t.Helper()
	if coll == nil {
		coll = collectFunc(func(context.Context, models.Platform, string, collector.Sink) error {
			return nil
		})
	}

	st := store.NewMemoryStore()
	log := logger.NewNop()
	svc := orchestrator.New(st, map[models.Platform]collector.Collector{
		models.PlatformYouTube:   coll,
		models.PlatformInstagram: coll,
	}, log)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	analysis := handlers.NewAnalysisHandler(svc, st, export.NewGenerator(st), nil, log)
	preview := handlers.NewPreviewHandler(metadata.NewExtractor(), log)
	router := api.NewRouter(analysis, preview, nil, log, false)

	return &harness{store: st, svc: svc, router: router}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// seedCompleted stores a completed analysis with count items directly.
func seedCompleted(t *testing.T, st *store.MemoryStore, id string, count int) {
	t.Helper()
	ctx := context.Background()

	job := &models.AnalysisJob{
		ID:        id,
		Platform:  models.PlatformYouTube,
		Target:    "@seeded-" + id,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	_, _, err := st.CreateJob(ctx, job)
	require.NoError(t, err)
	require.NoError(t, st.MarkProcessing(ctx, id, time.Now().UTC()))
	require.NoError(t, st.SetOwnerMetric(ctx, id, 1_000_000))

	for i := 0; i < count; i++ {
		item := models.MediaItem{
			ID:          fmt.Sprintf("v%03d", i),
			Title:       fmt.Sprintf("Video %d", i),
			ViewCount:   int64(i) * 10_000,
			OwnerMetric: 1_000_000,
		}
		require.NoError(t, st.AppendItem(ctx, id, item, (i+1)*100/count))
	}
	require.NoError(t, st.MarkTerminal(ctx, id, models.StatusCompleted, nil, time.Now().UTC()))
}

func TestCreateAnalysis(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/v1/analyses", `{"platform":"youtube","target":"@MrBeast"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var job models.AnalysisJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "@mrbeast", job.Target)
	assert.Equal(t, models.StatusPending, job.Status)
}

func TestCreateAnalysis_DuplicateReturnsExisting(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, collectFunc(func(ctx context.Context, _ models.Platform, _ string, sink collector.Sink) error {
		if err := sink.OnProfile(ctx, collector.Profile{OwnerMetric: 10}); err != nil {
			return err
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	defer close(release)

	w := h.do(http.MethodPost, "/api/v1/analyses", `{"platform":"youtube","target":"@MrBeast"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var first models.AnalysisJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = h.do(http.MethodPost, "/api/v1/analyses", `{"platform":"youtube","target":"https://youtube.com/@mrbeast"}`)
	require.Equal(t, http.StatusOK, w.Code, "duplicate target returns the active job, not a new one")
	var second models.AnalysisJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateAnalysis_Validation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		body string
		kind string
	}{
		{name: "missing body", body: `{}`, kind: "validation_error"},
		{name: "unknown platform", body: `{"platform":"tiktok","target":"@x"}`, kind: "validation_error"},
		{name: "invalid target", body: `{"platform":"youtube","target":"not a handle!!"}`, kind: "invalid_target"},
		{name: "wrong domain", body: `{"platform":"youtube","target":"https://vimeo.com/x"}`, kind: "invalid_target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/api/v1/analyses", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp["kind"])
		})
	}
}

func TestGetAnalysis_PaginatedItems(t *testing.T) {
	h := newHarness(t, nil)
	seedCompleted(t, h.store, "job-1", 120)

	w := h.do(http.MethodGet, "/api/v1/analyses/job-1?page=2&limit=50", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Progress   int    `json:"progress"`
		Mode       string `json:"mode"`
		TotalItems int    `json:"total_items"`
		Page       int    `json:"page"`
		Limit      int    `json:"limit"`
		HasMore    bool   `json:"has_more"`
		Items      []struct {
			ID        string `json:"id"`
			ViewCount int64  `json:"view_count"`
			Segment   string `json:"segment"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.Equal(t, "absolute", resp.Mode)
	assert.Equal(t, 120, resp.TotalItems)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 50, resp.Limit)
	assert.True(t, resp.HasMore)
	require.Len(t, resp.Items, 50)
	assert.Equal(t, "v050", resp.Items[0].ID)
	// 500,000 views against absolute thresholds.
	assert.Equal(t, "veryHigh", resp.Items[0].Segment)
}

func TestGetAnalysis_RatioMode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	job := &models.AnalysisJob{
		ID:        "job-1",
		Platform:  models.PlatformInstagram,
		Target:    "smallaccount",
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	_, _, err := h.store.CreateJob(ctx, job)
	require.NoError(t, err)
	require.NoError(t, h.store.MarkProcessing(ctx, "job-1", time.Now().UTC()))
	require.NoError(t, h.store.SetOwnerMetric(ctx, "job-1", 500))

	// 200x, 30x, and 1x of a 500-follower audience.
	for i, item := range []models.MediaItem{
		{ID: "r1", ViewCount: 100_000, OwnerMetric: 500},
		{ID: "r2", ViewCount: 15_000, OwnerMetric: 500},
		{ID: "r3", ViewCount: 500, OwnerMetric: 500},
	} {
		require.NoError(t, h.store.AppendItem(ctx, "job-1", item, (i+1)*33))
	}
	require.NoError(t, h.store.MarkTerminal(ctx, "job-1", models.StatusCompleted, nil, time.Now().UTC()))

	w := h.do(http.MethodGet, "/api/v1/analyses/job-1?mode=ratio", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Mode  string `json:"mode"`
		Items []struct {
			ViewCount int64  `json:"view_count"`
			Segment   string `json:"segment"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ratio", resp.Mode)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "viral", resp.Items[0].Segment)
	assert.Equal(t, "medium", resp.Items[1].Segment)
	assert.Equal(t, "low", resp.Items[2].Segment)
}

func TestGetAnalysis_LimitClamped(t *testing.T) {
	h := newHarness(t, nil)
	seedCompleted(t, h.store, "job-1", 120)

	w := h.do(http.MethodGet, "/api/v1/analyses/job-1?limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Limit int               `json:"limit"`
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.Limit)
	assert.Len(t, resp.Items, 100)
}

func TestGetAnalysis_Errors(t *testing.T) {
	h := newHarness(t, nil)
	seedCompleted(t, h.store, "job-1", 3)

	w := h.do(http.MethodGet, "/api/v1/analyses/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/api/v1/analyses/job-1?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/v1/analyses/job-1?mode=percentile", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAnalyses(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 5; i++ {
		seedCompleted(t, h.store, fmt.Sprintf("job-%d", i), 1)
	}

	w := h.do(http.MethodGet, "/api/v1/analyses?limit=2&include_total=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Analyses   []models.AnalysisJob `json:"analyses"`
		Limit      int                  `json:"limit"`
		Offset     int                  `json:"offset"`
		HasMore    bool                 `json:"has_more"`
		TotalCount *int                 `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Analyses, 2)
	assert.Equal(t, 2, resp.Limit)
	assert.True(t, resp.HasMore)
	require.NotNil(t, resp.TotalCount)
	assert.Equal(t, 5, *resp.TotalCount)

	// Without include_total the count is omitted.
	w = h.do(http.MethodGet, "/api/v1/analyses", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "total_count")
}

func TestCancelAnalysis(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, collectFunc(func(ctx context.Context, _ models.Platform, _ string, sink collector.Sink) error {
		if err := sink.OnProfile(ctx, collector.Profile{OwnerMetric: 10}); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	w := h.do(http.MethodPost, "/api/v1/analyses", `{"platform":"youtube","target":"@longjob"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var job models.AnalysisJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	<-started

	w = h.do(http.MethodPost, "/api/v1/analyses/"+job.ID+"/cancel", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		got, err := h.store.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == models.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.svc.Shutdown(context.Background()))
	w = h.do(http.MethodPost, "/api/v1/analyses/"+job.ID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/api/v1/analyses/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAnalysis(t *testing.T) {
	h := newHarness(t, nil)
	seedCompleted(t, h.store, "job-1", 3)

	w := h.do(http.MethodGet, "/api/v1/analyses/job-1/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 4)

	w = h.do(http.MethodGet, "/api/v1/analyses/job-1/export?format=json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	// JSON export is a bare array of item objects, not an envelope.
	var exported []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	assert.Len(t, exported, 3)

	w = h.do(http.MethodGet, "/api/v1/analyses/job-1/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/v1/analyses/missing/export", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAnalysis_NotReady(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, collectFunc(func(ctx context.Context, _ models.Platform, _ string, sink collector.Sink) error {
		if err := sink.OnProfile(ctx, collector.Profile{OwnerMetric: 10}); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	w := h.do(http.MethodPost, "/api/v1/analyses", `{"platform":"youtube","target":"@inflight"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var job models.AnalysisJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	<-started

	w = h.do(http.MethodGet, "/api/v1/analyses/"+job.ID+"/export", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPreview_Validation(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/api/v1/targets/preview", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/v1/targets/preview", `{"url":"https://tiktok.com/@x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
