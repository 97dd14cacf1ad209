package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/models"
)

// Watchdog periodically force-fails jobs stuck in processing longer than
// the configured ceiling. It covers collectors that hang without honoring
// their context, and jobs orphaned by a previous process.
type Watchdog struct {
	svc      *Service
	interval time.Duration
	ceiling  time.Duration
	log      logger.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatchdog creates a watchdog sweeping every interval for jobs that
// have been processing longer than ceiling.
func NewWatchdog(svc *Service, interval, ceiling time.Duration, log logger.Logger) *Watchdog {
	return &Watchdog{
		svc:      svc,
		interval: interval,
		ceiling:  ceiling,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (w *Watchdog) Start() {
	go w.loop()
	w.log.Info("watchdog started",
		logger.Duration("interval", w.interval),
		logger.Duration("ceiling", w.ceiling))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (w *Watchdog) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.log.Info("watchdog stopped")
}

func (w *Watchdog) loop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Watchdog) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	cutoff := time.Now().UTC().Add(-w.ceiling)
	ids, err := w.svc.store.StaleProcessing(ctx, cutoff)
	if err != nil {
		w.log.Error("watchdog sweep failed", logger.Error(err))
		return
	}

	for _, id := range ids {
		message := fmt.Sprintf("processing exceeded %s", w.ceiling)
		if err := w.svc.ForceFail(ctx, id, models.ErrKindTimeout, message); err != nil {
			// Lost the race against the runner settling the job.
			w.log.Debug("stale job settled before force-fail",
				logger.String("analysis_id", id), logger.Error(err))
		}
	}
}
