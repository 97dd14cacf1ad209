// Package orchestrator runs the analysis job pipeline: it creates jobs,
// drives collectors, records their output, and settles jobs into terminal
// states.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/channel-analyzer/internal/collector"
	"github.com/jonesrussell/channel-analyzer/internal/events"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/metrics"
	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/store"
)

// errCancelled aborts a collector run after a cancel request. It never
// escapes the package; the runner translates it into the cancelled state.
var errCancelled = errors.New("analysis cancelled")

// Service owns the lifecycle of analysis jobs. Each accepted job runs on
// its own goroutine; all store writes for a job flow through that runner,
// so job state never sees concurrent writers.
type Service struct {
	store      store.JobStore
	collectors map[models.Platform]collector.Collector
	log        logger.Logger
	publisher  *events.Publisher
	metrics    *metrics.Metrics

	mu      sync.Mutex
	running map[string]*runningJob
	wg      sync.WaitGroup
}

type runningJob struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithPublisher attaches a lifecycle event publisher.
func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service dispatching to the given per-platform collectors.
func New(st store.JobStore, collectors map[models.Platform]collector.Collector, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:      st,
		collectors: collectors,
		log:        log,
		running:    make(map[string]*runningJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the target and registers a new analysis job, starting
// collection in the background. When a non-terminal job already exists for
// the same (platform, target), the existing job is returned with
// created=false and no new work starts.
func (s *Service) Create(ctx context.Context, platform models.Platform, rawTarget string) (*models.AnalysisJob, bool, error) {
	target, err := models.NormalizeTarget(platform, rawTarget)
	if err != nil {
		return nil, false, err
	}

	job := &models.AnalysisJob{
		ID:        uuid.New().String(),
		Platform:  platform,
		Target:    target,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	stored, created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("creating job: %w", err)
	}
	if !created {
		s.metrics.JobDeduplicated()
		s.log.Debug("returning existing active analysis",
			logger.String("analysis_id", stored.ID),
			logger.String("platform", string(platform)),
			logger.String("target", target))
		return stored, false, nil
	}

	s.metrics.JobCreated()
	s.publisher.PublishAsync(stored, events.EventAnalysisCreated)
	s.log.Info("analysis accepted",
		logger.String("analysis_id", stored.ID),
		logger.String("platform", string(platform)),
		logger.String("target", target))

	runCtx, cancel := context.WithCancel(context.Background())
	rj := &runningJob{cancel: cancel}

	s.mu.Lock()
	s.running[stored.ID] = rj
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx, *stored, rj)

	return stored, true, nil
}

// run drives one job from pending to a terminal state.
func (s *Service) run(ctx context.Context, job models.AnalysisJob, rj *runningJob) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, job.ID)
		s.mu.Unlock()
	}()
	defer rj.cancel()

	// Store writes use a background context: once a job is accepted its
	// bookkeeping must outlive both the originating request and the
	// collection context.
	storeCtx := context.Background()

	if err := s.store.MarkProcessing(storeCtx, job.ID, time.Now().UTC()); err != nil {
		// A cancel or force-fail can land before the runner starts.
		s.log.Warn("analysis never reached processing",
			logger.String("analysis_id", job.ID), logger.Error(err))
		return
	}
	s.publisher.PublishAsync(&job, events.EventAnalysisStarted)

	var collectErr error
	coll, ok := s.collectors[job.Platform]
	if !ok {
		collectErr = fmt.Errorf("no collector registered for platform %s: %w", job.Platform, collector.ErrUpstream)
	} else {
		sink := &jobSink{svc: s, jobID: job.ID, rj: rj}
		collectErr = coll.Collect(ctx, job.Platform, job.Target, sink)
	}

	s.settle(storeCtx, job.ID, rj, collectErr)
}

// settle moves the job into its terminal state and emits the matching
// event. Losing the race against the watchdog's force-fail is fine; the
// job is terminal either way.
func (s *Service) settle(ctx context.Context, jobID string, rj *runningJob, collectErr error) {
	var (
		status models.JobStatus
		jobErr *models.JobError
	)

	switch {
	case rj.cancelled.Load():
		status = models.StatusCancelled
		jobErr = &models.JobError{Kind: models.ErrKindCancelled, Message: "cancelled by user"}
	case collectErr != nil:
		status = models.StatusFailed
		jobErr = &models.JobError{Kind: collector.KindFor(collectErr), Message: collectErr.Error()}
	default:
		status = models.StatusCompleted
	}

	if err := s.store.MarkTerminal(ctx, jobID, status, jobErr, time.Now().UTC()); err != nil {
		s.log.Debug("analysis already settled",
			logger.String("analysis_id", jobID),
			logger.String("attempted_status", string(status)),
			logger.Error(err))
		return
	}

	s.metrics.JobFinished(string(status))

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.log.Warn("failed to reload settled analysis",
			logger.String("analysis_id", jobID), logger.Error(err))
		return
	}

	switch status {
	case models.StatusCompleted:
		s.publisher.PublishAsync(job, events.EventAnalysisCompleted)
		s.log.Info("analysis completed",
			logger.String("analysis_id", jobID),
			logger.Int("item_count", job.ItemCount))
	case models.StatusCancelled:
		s.publisher.PublishAsync(job, events.EventAnalysisCancelled)
		s.log.Info("analysis cancelled", logger.String("analysis_id", jobID))
	default:
		s.publisher.PublishAsync(job, events.EventAnalysisFailed)
		s.log.Warn("analysis failed",
			logger.String("analysis_id", jobID),
			logger.String("kind", string(job.Error.Kind)),
			logger.String("message", job.Error.Message))
	}
}

// Cancel requests cooperative cancellation of an active job. The job moves
// to cancelled once its runner observes the request; items already
// collected are kept.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	rj, ok := s.running[id]
	s.mu.Unlock()

	if ok {
		rj.cancelled.Store(true)
		rj.cancel()
		s.log.Info("analysis cancel requested", logger.String("analysis_id", id))
		return nil
	}

	// No runner in this process: either the job is already terminal or it
	// was orphaned by a restart. Settle it directly when the state machine
	// allows.
	if err := s.store.MarkTerminal(ctx, id, models.StatusCancelled,
		&models.JobError{Kind: models.ErrKindCancelled, Message: "cancelled by user"},
		time.Now().UTC()); err != nil {
		return err
	}
	s.metrics.JobFinished(string(models.StatusCancelled))
	if job, err := s.store.GetJob(ctx, id); err == nil {
		s.publisher.PublishAsync(job, events.EventAnalysisCancelled)
	}
	return nil
}

// ForceFail settles a job as failed regardless of its runner, used by the
// watchdog for jobs stuck in processing.
func (s *Service) ForceFail(ctx context.Context, id string, kind models.ErrorKind, message string) error {
	err := s.store.MarkTerminal(ctx, id, models.StatusFailed,
		&models.JobError{Kind: kind, Message: message}, time.Now().UTC())
	if err != nil {
		return err
	}

	s.metrics.JobFinished(string(models.StatusFailed))

	s.mu.Lock()
	rj, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		rj.cancel()
	}

	if job, err := s.store.GetJob(ctx, id); err == nil {
		s.publisher.PublishAsync(job, events.EventAnalysisFailed)
	}
	s.log.Warn("analysis force-failed",
		logger.String("analysis_id", id),
		logger.String("kind", string(kind)),
		logger.String("message", message))
	return nil
}

// Shutdown waits for running jobs to drain. When ctx expires first, all
// remaining runners are cancelled and waited for.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	for id, rj := range s.running {
		rj.cancelled.Store(true)
		rj.cancel()
		s.log.Info("cancelling analysis for shutdown", logger.String("analysis_id", id))
	}
	s.mu.Unlock()

	<-done
	return ctx.Err()
}

// jobSink feeds one job's collector output into the store.
type jobSink struct {
	svc         *Service
	jobID       string
	rj          *runningJob
	ownerMetric int64
}

func (k *jobSink) OnProfile(ctx context.Context, p collector.Profile) error {
	if k.rj.cancelled.Load() {
		return errCancelled
	}
	if p.OwnerMetric < 0 {
		p.OwnerMetric = 0
	}
	k.ownerMetric = p.OwnerMetric

	if err := k.svc.store.SetOwnerMetric(context.Background(), k.jobID, p.OwnerMetric); err != nil {
		return fmt.Errorf("recording owner metric: %w", err)
	}
	return nil
}

func (k *jobSink) OnItem(ctx context.Context, item models.MediaItem, progress int) error {
	if k.rj.cancelled.Load() {
		return errCancelled
	}

	item.Normalize()
	item.OwnerMetric = k.ownerMetric

	if err := k.svc.store.AppendItem(context.Background(), k.jobID, item, progress); err != nil {
		return fmt.Errorf("appending item %s: %w", item.ID, err)
	}
	k.svc.metrics.ItemCollected()
	return nil
}
