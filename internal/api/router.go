// Package api assembles the gin router for the channel-analyzer service.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/channel-analyzer/internal/handlers"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
)

// NewRouter builds the HTTP routing table.
func NewRouter(
	analysis *handlers.AnalysisHandler,
	preview *handlers.PreviewHandler,
	registry *prometheus.Registry,
	log logger.Logger,
	debug bool,
) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginLogger(log), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		analyses := v1.Group("/analyses")
		{
			analyses.POST("", analysis.Create)
			analyses.GET("", analysis.List)
			analyses.GET("/:id", analysis.Get)
			analyses.POST("/:id/cancel", analysis.Cancel)
			analyses.GET("/:id/export", analysis.Export)
		}

		targets := v1.Group("/targets")
		{
			targets.POST("/preview", preview.Preview)
		}
	}

	return router
}

// ginLogger logs each request with structured fields.
func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}
