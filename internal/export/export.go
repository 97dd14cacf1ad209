// Package export renders a completed analysis as a downloadable artifact.
//
// Exports are deterministic: the same job and items always produce
// byte-identical CSV and JSON output, and structurally identical XLSX.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/channel-analyzer/internal/models"
	"github.com/jonesrussell/channel-analyzer/internal/segment"
	"github.com/jonesrussell/channel-analyzer/internal/store"
)

// Format is an export artifact format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format string; the empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type served with the artifact.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Artifact is a rendered export ready to serve.
type Artifact struct {
	Format      Format
	ContentType string
	Filename    string
	Content     []byte
}

// Generator renders export artifacts from stored analyses.
type Generator struct {
	store store.JobStore
}

// NewGenerator creates a Generator reading from st.
func NewGenerator(st store.JobStore) *Generator {
	return &Generator{store: st}
}

// Generate renders the job's items in the requested format and mode.
// Only completed jobs can be exported; anything else returns
// models.ErrNotReady.
func (g *Generator) Generate(ctx context.Context, jobID string, format Format, mode segment.Mode) (*Artifact, error) {
	job, err := g.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusCompleted {
		return nil, fmt.Errorf("analysis %s is %s: %w", jobID, job.Status, models.ErrNotReady)
	}

	items, err := g.store.Items(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	rows := buildRows(items, mode)

	var content []byte
	switch format {
	case FormatCSV:
		content, err = renderCSV(rows)
	case FormatJSON:
		content, err = renderJSON(rows)
	case FormatXLSX:
		content, err = renderXLSX(job, rows)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("rendering %s export: %w", format, err)
	}

	return &Artifact{
		Format:      format,
		ContentType: format.ContentType(),
		Filename:    filename(job, format),
		Content:     content,
	}, nil
}

// row is one exported item with its derived segment.
type row struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	ViewCount    int64           `json:"view_count"`
	LikeCount    int64           `json:"like_count"`
	CommentCount int64           `json:"comment_count"`
	PublishedAt  string          `json:"published_at,omitempty"`
	OwnerMetric  int64           `json:"owner_metric"`
	Segment      segment.Segment `json:"segment"`
}

func buildRows(items []models.MediaItem, mode segment.Mode) []row {
	rows := make([]row, 0, len(items))
	for _, item := range items {
		r := row{
			ID:           item.ID,
			Title:        item.Title,
			URL:          item.URL,
			ViewCount:    item.ViewCount,
			LikeCount:    item.LikeCount,
			CommentCount: item.CommentCount,
			OwnerMetric:  item.OwnerMetric,
			Segment:      segment.Classify(mode, item.ViewCount, item.OwnerMetric),
		}
		if item.PublishedAt != nil {
			r.PublishedAt = item.PublishedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, r)
	}
	return rows
}

// filename derives a stable download name from the job itself.
func filename(job *models.AnalysisJob, format Format) string {
	target := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, job.Target)

	short := job.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("analysis_%s_%s_%s.%s", job.Platform, target, short, format)
}
