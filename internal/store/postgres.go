package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/paging"
)

// uniqueViolation is the PostgreSQL error code raised when the partial
// unique index on active (platform, target) pairs rejects an insert.
const uniqueViolation = "23505"

const jobColumns = `id, platform, target, status, progress, item_count, owner_metric,
	error_kind, error_message, created_at, started_at, completed_at`

// PostgresStore is the production JobStore backed by PostgreSQL.
//
// The active-job dedupe rule is enforced by a partial unique index on
// (platform, target) WHERE status IN ('pending', 'processing'), so the
// check-and-insert is atomic even across concurrent API replicas.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisJob, bool, error) {
	query := `
		INSERT INTO analysis_jobs (id, platform, target, status, progress, item_count, owner_metric, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.Platform, job.Target, job.Status,
		job.Progress, job.ItemCount, job.OwnerMetric, job.CreatedAt)
	if err == nil {
		stored := *job
		return &stored, true, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		existing, lookupErr := s.activeJob(ctx, job.Platform, job.Target)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("looking up active job after conflict: %w", lookupErr)
		}
		return existing, false, nil
	}
	return nil, false, fmt.Errorf("inserting job: %w", err)
}

func (s *PostgresStore) activeJob(ctx context.Context, platform models.Platform, target string) (*models.AnalysisJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analysis_jobs
		WHERE platform = $1 AND target = $2 AND status IN ('pending', 'processing')`, jobColumns)

	return scanJob(s.db.QueryRowContext(ctx, query, platform, target))
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_jobs WHERE id = $1`, jobColumns)
	return scanJob(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) ListJobs(ctx context.Context, win paging.Window) ([]models.AnalysisJob, int, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER () AS total
		FROM analysis_jobs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, jobColumns)

	rows, err := s.db.QueryContext(ctx, query, win.Limit, win.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.AnalysisJob
	total := 0
	for rows.Next() {
		job, n, err := scanJobWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, *job)
		total = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating job rows: %w", err)
	}

	// A window past the end returns no rows, so the total must be counted
	// separately.
	if len(jobs) == 0 {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_jobs`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting jobs: %w", err)
		}
	}
	return jobs, total, nil
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = 'processing', started_at = $2
		WHERE id = $1 AND status = 'pending'`, id, startedAt)
	if err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}
	return s.explainNoUpdate(ctx, res, id, models.ErrNotProcessing)
}

func (s *PostgresStore) SetOwnerMetric(ctx context.Context, id string, ownerMetric int64) error {
	if ownerMetric < 0 {
		ownerMetric = 0
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET owner_metric = $2
		WHERE id = $1 AND status = 'processing'`, id, ownerMetric)
	if err != nil {
		return fmt.Errorf("setting owner metric: %w", err)
	}
	return s.explainNoUpdate(ctx, res, id, models.ErrNotProcessing)
}

func (s *PostgresStore) AppendItem(ctx context.Context, id string, item models.MediaItem, progress int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The item count doubles as the next insertion position; bumping it in
	// the same statement that guards on status keeps the append atomic.
	res, err := tx.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET item_count = item_count + 1,
		    progress = GREATEST(progress, $2)
		WHERE id = $1 AND status = 'processing'`, id, clampProgress(progress))
	if err != nil {
		return fmt.Errorf("advancing job progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return s.missingOr(ctx, id, models.ErrNotProcessing)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO media_items (job_id, position, media_id, title, url, view_count, like_count, comment_count, published_at, owner_metric)
		SELECT $1, item_count - 1, $2, $3, $4, $5, $6, $7, $8, $9
		FROM analysis_jobs WHERE id = $1`,
		id, item.ID, item.Title, item.URL,
		item.ViewCount, item.LikeCount, item.CommentCount,
		item.PublishedAt, item.OwnerMetric)
	if err != nil {
		return fmt.Errorf("inserting media item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item append: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkTerminal(ctx context.Context, id string, status models.JobStatus, jobErr *models.JobError, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%s is not a terminal status", status)
	}

	// Completed and cancelled are only reachable from processing; failed is
	// also reachable from pending.
	fromStates := pq.Array([]string{string(models.StatusProcessing)})
	if status == models.StatusFailed {
		fromStates = pq.Array([]string{string(models.StatusPending), string(models.StatusProcessing)})
	}

	var kind, message sql.NullString
	if jobErr != nil {
		kind = sql.NullString{String: string(jobErr.Kind), Valid: true}
		message = sql.NullString{String: jobErr.Message, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = $2,
		    completed_at = $3,
		    error_kind = $4,
		    error_message = $5,
		    progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END
		WHERE id = $1 AND status = ANY($6)`,
		id, status, at, kind, message, fromStates)
	if err != nil {
		return fmt.Errorf("marking job %s: %w", status, err)
	}
	return s.explainNoUpdate(ctx, res, id, models.ErrTerminal)
}

func (s *PostgresStore) ItemsPage(ctx context.Context, id string, win paging.Window) ([]models.MediaItem, int, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, 0, err
	}

	// One statement, one MVCC snapshot: the page and the total always agree
	// even while the collector keeps appending.
	rows, err := s.db.QueryContext(ctx, `
		SELECT media_id, title, url, view_count, like_count, comment_count, published_at, owner_metric,
		       COUNT(*) OVER () AS total
		FROM media_items
		WHERE job_id = $1
		ORDER BY position
		LIMIT $2 OFFSET $3`, id, win.Limit, win.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	total := 0
	for rows.Next() {
		var item models.MediaItem
		var publishedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.Title, &item.URL,
			&item.ViewCount, &item.LikeCount, &item.CommentCount,
			&publishedAt, &item.OwnerMetric, &total); err != nil {
			return nil, 0, fmt.Errorf("scanning item row: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			item.PublishedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating item rows: %w", err)
	}

	if len(items) == 0 {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media_items WHERE job_id = $1`, id).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("counting items: %w", err)
		}
	}
	return items, total, nil
}

func (s *PostgresStore) Items(ctx context.Context, id string) ([]models.MediaItem, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT media_id, title, url, view_count, like_count, comment_count, published_at, owner_metric
		FROM media_items
		WHERE job_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		var item models.MediaItem
		var publishedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.Title, &item.URL,
			&item.ViewCount, &item.LikeCount, &item.CommentCount,
			&publishedAt, &item.OwnerMetric); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			item.PublishedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) StaleProcessing(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM analysis_jobs
		WHERE status = 'processing' AND started_at < $1
		ORDER BY started_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning stale job ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale job rows: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// explainNoUpdate turns a zero-row UPDATE into the right sentinel:
// ErrNotFound for unknown IDs, fallback otherwise.
func (s *PostgresStore) explainNoUpdate(ctx context.Context, res sql.Result, id string, fallback error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n > 0 {
		return nil
	}
	return s.missingOr(ctx, id, fallback)
}

func (s *PostgresStore) missingOr(ctx context.Context, id string, fallback error) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM analysis_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking job existence: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return fallback
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.AnalysisJob, error) {
	job, _, err := scanInto(row, false)
	return job, err
}

func scanJobWithTotal(row rowScanner) (*models.AnalysisJob, int, error) {
	return scanInto(row, true)
}

func scanInto(row rowScanner, withTotal bool) (*models.AnalysisJob, int, error) {
	var (
		job         models.AnalysisJob
		kind        sql.NullString
		message     sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
		total       int
	)

	dest := []any{
		&job.ID, &job.Platform, &job.Target, &job.Status,
		&job.Progress, &job.ItemCount, &job.OwnerMetric,
		&kind, &message, &job.CreatedAt, &startedAt, &completedAt,
	}
	if withTotal {
		dest = append(dest, &total)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, models.ErrNotFound
		}
		return nil, 0, fmt.Errorf("scanning job: %w", err)
	}

	if kind.Valid {
		job.Error = &models.JobError{Kind: models.ErrorKind(kind.String), Message: message.String}
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, total, nil
}
