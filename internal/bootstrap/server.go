package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/channel-analyzer/internal/api"
	"github.com/jonesrussell/channel-analyzer/internal/collector"
	"github.com/jonesrussell/channel-analyzer/internal/config"
	"github.com/jonesrussell/channel-analyzer/internal/events"
	"github.com/jonesrussell/channel-analyzer/internal/export"
	"github.com/jonesrussell/channel-analyzer/internal/handlers"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/metadata"
	"github.com/jonesrussell/channel-analyzer/internal/metrics"
	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/orchestrator"
	"github.com/jonesrussell/channel-analyzer/internal/store"
)

// App bundles the running pieces so Start can shut them down in order.
type App struct {
	cfg      *config.Config
	log      logger.Logger
	server   *http.Server
	svc      *orchestrator.Service
	watchdog *orchestrator.Watchdog
}

// SetupApp assembles the orchestrator, watchdog, handlers, and HTTP server.
func SetupApp(cfg *config.Config, st store.JobStore, publisher *events.Publisher, log logger.Logger) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Per-platform collectors. The stub stands in until the real platform
	// collectors are deployed alongside this service.
	stub := &collector.StubCollector{}
	platformCollectors := map[models.Platform]collector.Collector{
		models.PlatformYouTube:   stub,
		models.PlatformInstagram: stub,
	}

	svc := orchestrator.New(st, platformCollectors, log,
		orchestrator.WithPublisher(publisher),
		orchestrator.WithMetrics(m),
	)
	watchdog := orchestrator.NewWatchdog(svc,
		cfg.Analysis.WatchdogInterval.Std(),
		cfg.Analysis.ProcessingCeiling.Std(),
		log)

	analysisHandler := handlers.NewAnalysisHandler(svc, st, export.NewGenerator(st), m, log)
	previewHandler := handlers.NewPreviewHandler(metadata.NewExtractor(), log)
	router := api.NewRouter(analysisHandler, previewHandler, registry, log, cfg.Debug)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	return &App{cfg: cfg, log: log, server: server, svc: svc, watchdog: watchdog}
}

// Run serves HTTP until a shutdown signal arrives, then drains running
// analyses within the configured grace period.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.watchdog.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", logger.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.watchdog.Stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutdown signal received")

	grace := a.cfg.Analysis.ShutdownGrace.Std()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http server shutdown failed", logger.Error(err))
	}
	a.watchdog.Stop()
	if err := a.svc.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("analyses cancelled at shutdown deadline", logger.Error(err))
	}
	return nil
}
