package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/metadata"
	"github.com/jonesrussell/channel-analyzer/internal/models"
)

// PreviewHandler serves target previews so clients can confirm a channel
// before submitting an analysis.
type PreviewHandler struct {
	extractor *metadata.Extractor
	log       logger.Logger
}

// NewPreviewHandler creates the handler.
func NewPreviewHandler(extractor *metadata.Extractor, log logger.Logger) *PreviewHandler {
	return &PreviewHandler{extractor: extractor, log: log}
}

type previewRequest struct {
	URL string `json:"url" binding:"required"`
}

// Preview resolves a profile URL and returns its page metadata.
// POST /api/v1/targets/preview
func (h *PreviewHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	preview, err := h.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, models.ErrUnknownPlatform) || errors.Is(err, models.ErrInvalidTarget) {
			respondError(c, http.StatusBadRequest, string(models.ErrKindInvalidTarget), err.Error())
			return
		}
		h.log.Error("failed to build target preview", logger.String("url", req.URL), logger.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "failed to build target preview")
		return
	}

	c.JSON(http.StatusOK, preview)
}
