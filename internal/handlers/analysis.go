// Package handlers implements the HTTP API for the analysis pipeline.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/channel-analyzer/internal/export"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/metrics"
	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/orchestrator"
	"github.com/jonesrussell/channel-analyzer/internal/paging"
	"github.com/jonesrussell/channel-analyzer/internal/segment"
	"github.com/jonesrussell/channel-analyzer/internal/store"
)

// AnalysisHandler serves the /api/v1/analyses endpoints.
type AnalysisHandler struct {
	svc      *orchestrator.Service
	store    store.JobStore
	exporter *export.Generator
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewAnalysisHandler wires the handler to its collaborators.
func NewAnalysisHandler(svc *orchestrator.Service, st store.JobStore, exporter *export.Generator, m *metrics.Metrics, log logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, store: st, exporter: exporter, metrics: m, log: log}
}

type createRequest struct {
	Platform string `json:"platform" binding:"required"`
	Target   string `json:"target"   binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func respondError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, errorResponse{Error: message, Kind: kind})
}

// Create accepts a new analysis request.
// POST /api/v1/analyses
func (h *AnalysisHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("platform must be youtube or instagram, got %q", req.Platform))
		return
	}

	job, created, err := h.svc.Create(c.Request.Context(), platform, req.Target)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTarget) {
			respondError(c, http.StatusBadRequest, string(models.ErrKindInvalidTarget), err.Error())
			return
		}
		h.log.Error("failed to create analysis", logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to create analysis")
		return
	}

	if created {
		c.JSON(http.StatusCreated, job)
		return
	}
	// An active job for the same target already exists.
	c.JSON(http.StatusOK, job)
}

type listResponse struct {
	Analyses   []models.AnalysisJob `json:"analyses"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
	HasMore    bool                 `json:"has_more"`
	TotalCount *int                 `json:"total_count,omitempty"`
}

// List returns jobs, newest first.
// GET /api/v1/analyses?limit=&offset=&include_total=
func (h *AnalysisHandler) List(c *gin.Context) {
	limit, ok := h.queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := h.queryInt(c, "offset")
	if !ok {
		return
	}

	win := paging.List(limit, offset)
	jobs, total, err := h.store.ListJobs(c.Request.Context(), win)
	if err != nil {
		h.log.Error("failed to list analyses", logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to list analyses")
		return
	}

	resp := listResponse{
		Analyses: jobs,
		Limit:    win.Limit,
		Offset:   win.Offset,
		HasMore:  win.HasMore(total),
	}
	if jobs == nil {
		resp.Analyses = []models.AnalysisJob{}
	}
	if c.Query("include_total") == "true" {
		resp.TotalCount = &total
	}
	c.JSON(http.StatusOK, resp)
}

// itemView is a media item with its derived performance segment.
type itemView struct {
	models.MediaItem
	Segment segment.Segment `json:"segment"`
}

type analysisResponse struct {
	*models.AnalysisJob
	Mode       segment.Mode `json:"mode"`
	Items      []itemView   `json:"items"`
	TotalItems int          `json:"total_items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	HasMore    bool         `json:"has_more"`
}

// Get returns one job with a page of its items.
// GET /api/v1/analyses/:id?page=&limit=&mode=
func (h *AnalysisHandler) Get(c *gin.Context) {
	id := c.Param("id")

	page, ok := h.queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := h.queryInt(c, "limit")
	if !ok {
		return
	}
	mode, err := segment.ParseMode(c.Query("mode"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "analysis not found")
			return
		}
		h.log.Error("failed to load analysis", logger.String("analysis_id", id), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to load analysis")
		return
	}

	win := paging.ItemPage(page, limit)
	items, total, err := h.store.ItemsPage(c.Request.Context(), id, win)
	if err != nil {
		h.log.Error("failed to load analysis items", logger.String("analysis_id", id), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to load analysis items")
		return
	}

	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{
			MediaItem: item,
			Segment:   segment.Classify(mode, item.ViewCount, item.OwnerMetric),
		})
	}

	c.JSON(http.StatusOK, analysisResponse{
		AnalysisJob: job,
		Mode:        mode,
		Items:       views,
		TotalItems:  total,
		Page:        win.Page(),
		Limit:       win.Limit,
		HasMore:     win.HasMore(total),
	})
}

// Cancel requests cancellation of an active job.
// POST /api/v1/analyses/:id/cancel
func (h *AnalysisHandler) Cancel(c *gin.Context) {
	id := c.Param("id")

	err := h.svc.Cancel(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	case errors.Is(err, models.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "analysis not found")
	case errors.Is(err, models.ErrTerminal):
		respondError(c, http.StatusConflict, "conflict", "analysis already finished")
	default:
		h.log.Error("failed to cancel analysis", logger.String("analysis_id", id), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to cancel analysis")
	}
}

// Export streams the completed analysis as CSV, JSON, or XLSX.
// GET /api/v1/analyses/:id/export?format=&mode=
func (h *AnalysisHandler) Export(c *gin.Context) {
	id := c.Param("id")

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	mode, err := segment.ParseMode(c.Query("mode"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	artifact, err := h.exporter.Generate(c.Request.Context(), id, format, mode)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", "analysis not found")
		return
	case errors.Is(err, models.ErrNotReady):
		respondError(c, http.StatusConflict, "not_ready", "analysis has not completed")
		return
	default:
		h.log.Error("failed to generate export", logger.String("analysis_id", id), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to generate export")
		return
	}

	h.metrics.ExportGenerated(string(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Content)
}

// queryInt parses an optional integer query parameter, responding with 400
// on garbage. Missing parameters yield zero, which the paging layer maps to
// its defaults.
func (h *AnalysisHandler) queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error",
			fmt.Sprintf("%s must be an integer, got %q", name, raw))
		return 0, false
	}
	return n, true
}
