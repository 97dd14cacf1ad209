// Package store persists analysis jobs and their collected media items.
//
// Two backends implement JobStore: an in-memory store for development and
// tests, and a PostgreSQL store for production. Both enforce the same
// invariants: at most one non-terminal job per (platform, target), terminal
// jobs are frozen, progress only moves forward, and items are append-only.
package store

import (
	"context"
	"time"

	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/paging"
)

// JobStore is the persistence contract for analysis jobs.
type JobStore interface {
	// CreateJob inserts job unless a non-terminal job already exists for the
	// same (platform, target). On a duplicate it returns the existing job
	// with created=false; otherwise the stored job with created=true.
	CreateJob(ctx context.Context, job *models.AnalysisJob) (stored *models.AnalysisJob, created bool, err error)

	// GetJob returns the job by ID or models.ErrNotFound.
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)

	// ListJobs returns a window of jobs ordered by creation time descending,
	// plus the total job count.
	ListJobs(ctx context.Context, win paging.Window) ([]models.AnalysisJob, int, error)

	// MarkProcessing moves a pending job to processing and records its start
	// time. Returns models.ErrTerminal if the job already finished, or
	// models.ErrNotProcessing if it is not pending.
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error

	// SetOwnerMetric records the channel's audience size once the collector
	// has fetched the profile. Only valid while processing.
	SetOwnerMetric(ctx context.Context, id string, ownerMetric int64) error

	// AppendItem atomically appends one media item, bumps the item count,
	// and advances progress to max(current, progress). Only valid while
	// processing; progress is clamped to [0, 100].
	AppendItem(ctx context.Context, id string, item models.MediaItem, progress int) error

	// MarkTerminal moves a job into a terminal state, recording the error
	// for failures and cancellations. Completion forces progress to 100.
	// Returns models.ErrTerminal if the job is already terminal or the
	// transition is not allowed.
	MarkTerminal(ctx context.Context, id string, status models.JobStatus, jobErr *models.JobError, at time.Time) error

	// ItemsPage returns a window of the job's items in insertion order plus
	// the total item count, both from a single consistent snapshot.
	ItemsPage(ctx context.Context, id string, win paging.Window) ([]models.MediaItem, int, error)

	// Items returns every item of the job in insertion order.
	Items(ctx context.Context, id string) ([]models.MediaItem, error)

	// StaleProcessing returns the IDs of jobs that entered processing before
	// the cutoff and never reached a terminal state.
	StaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error)

	// Close releases backend resources.
	Close() error
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
