package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/channel-analyzer/internal/models"
)

var csvHeader = []string{
	"id", "title", "url", "view_count", "like_count", "comment_count",
	"published_at", "owner_metric", "segment",
}

func renderCSV(rows []row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			r.Title,
			r.URL,
			strconv.FormatInt(r.ViewCount, 10),
			strconv.FormatInt(r.LikeCount, 10),
			strconv.FormatInt(r.CommentCount, 10),
			r.PublishedAt,
			strconv.FormatInt(r.OwnerMetric, 10),
			string(r.Segment),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderJSON emits the items as a single top-level array. Counts stay
// numeric; they are never stringified.
func renderJSON(rows []row) ([]byte, error) {
	if rows == nil {
		rows = []row{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(job *models.AnalysisJob, rows []row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Items"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	header := make([]any, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			r.ID, r.Title, r.URL,
			r.ViewCount, r.LikeCount, r.CommentCount,
			r.PublishedAt, r.OwnerMetric, string(r.Segment),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	// A summary sheet with the analysis header rounds out the workbook.
	const summary = "Analysis"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	summaryRows := [][]any{
		{"analysis_id", job.ID},
		{"platform", string(job.Platform)},
		{"target", job.Target},
		{"owner_metric", job.OwnerMetric},
		{"item_count", len(rows)},
	}
	for i, pair := range summaryRows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summary, cell, &pair); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
