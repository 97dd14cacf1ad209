package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/paging"
)

// MemoryStore is an in-process JobStore for development and tests.
//
// Item slices are append-only and mutated only under the write lock, so a
// slice header copied under the read lock is a stable snapshot: later
// appends never disturb the elements a previously taken header can reach.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*jobRecord
	order  []string          // job IDs in creation order
	active map[string]string // dedupe key -> non-terminal job ID
}

type jobRecord struct {
	job   models.AnalysisJob
	items []models.MediaItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*jobRecord),
		active: make(map[string]string),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *models.AnalysisJob) (*models.AnalysisJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := job.DedupeKey()
	if existingID, ok := s.active[key]; ok {
		existing := s.jobs[existingID].job
		return &existing, false, nil
	}
	if _, ok := s.jobs[job.ID]; ok {
		return nil, false, fmt.Errorf("duplicate job ID %s", job.ID)
	}

	stored := *job
	s.jobs[job.ID] = &jobRecord{job: stored}
	s.order = append(s.order, job.ID)
	s.active[key] = job.ID

	out := stored
	return &out, true, nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*models.AnalysisJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	job := rec.job
	return &job, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, win paging.Window) ([]models.AnalysisJob, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)

	// Newest first.
	ids := make([]string, 0, total)
	for i := total - 1; i >= 0; i-- {
		ids = append(ids, s.order[i])
	}

	page := paging.Cut(ids, win)
	jobs := make([]models.AnalysisJob, 0, len(page))
	for _, id := range page {
		jobs = append(jobs, s.jobs[id].job)
	}
	return jobs, total, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return models.ErrNotFound
	}
	if rec.job.Status.Terminal() {
		return models.ErrTerminal
	}
	if !rec.job.Status.CanTransitionTo(models.StatusProcessing) {
		return models.ErrNotProcessing
	}
	rec.job.Status = models.StatusProcessing
	t := startedAt
	rec.job.StartedAt = &t
	return nil
}

func (s *MemoryStore) SetOwnerMetric(_ context.Context, id string, ownerMetric int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return models.ErrNotFound
	}
	if rec.job.Status != models.StatusProcessing {
		return models.ErrNotProcessing
	}
	if ownerMetric < 0 {
		ownerMetric = 0
	}
	rec.job.OwnerMetric = ownerMetric
	return nil
}

func (s *MemoryStore) AppendItem(_ context.Context, id string, item models.MediaItem, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return models.ErrNotFound
	}
	if rec.job.Status != models.StatusProcessing {
		return models.ErrNotProcessing
	}

	rec.items = append(rec.items, item)
	rec.job.ItemCount = len(rec.items)
	if p := clampProgress(progress); p > rec.job.Progress {
		rec.job.Progress = p
	}
	return nil
}

func (s *MemoryStore) MarkTerminal(_ context.Context, id string, status models.JobStatus, jobErr *models.JobError, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%s is not a terminal status", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return models.ErrNotFound
	}
	if !rec.job.Status.CanTransitionTo(status) {
		return models.ErrTerminal
	}

	rec.job.Status = status
	t := at
	rec.job.CompletedAt = &t
	if status == models.StatusCompleted {
		rec.job.Progress = 100
	}
	if jobErr != nil {
		e := *jobErr
		rec.job.Error = &e
	}

	delete(s.active, rec.job.DedupeKey())
	return nil
}

func (s *MemoryStore) ItemsPage(_ context.Context, id string, win paging.Window) ([]models.MediaItem, int, error) {
	s.mu.RLock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.RUnlock()
		return nil, 0, models.ErrNotFound
	}
	snapshot := rec.items
	s.mu.RUnlock()

	page := paging.Cut(snapshot, win)
	out := make([]models.MediaItem, len(page))
	copy(out, page)
	return out, len(snapshot), nil
}

func (s *MemoryStore) Items(_ context.Context, id string) ([]models.MediaItem, error) {
	s.mu.RLock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.RUnlock()
		return nil, models.ErrNotFound
	}
	snapshot := rec.items
	s.mu.RUnlock()

	out := make([]models.MediaItem, len(snapshot))
	copy(out, snapshot)
	return out, nil
}

func (s *MemoryStore) StaleProcessing(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		rec := s.jobs[id]
		if rec.job.Status != models.StatusProcessing || rec.job.StartedAt == nil {
			continue
		}
		if rec.job.StartedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }
