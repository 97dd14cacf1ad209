// Package metadata fetches a channel page and extracts Open Graph tags so
// clients can preview a target before submitting an analysis.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/channel-analyzer/internal/models"
)

// Preview is what a channel page says about itself.
type Preview struct {
	Platform    models.Platform `json:"platform"`
	Target      string          `json:"target"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
}

// Extractor fetches channel pages and reads their Open Graph metadata.
type Extractor struct {
	client *http.Client
}

// NewExtractor creates an Extractor with a bounded HTTP client.
func NewExtractor() *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Extract resolves the URL to a platform and normalized target, fetches the
// page, and fills in its Open Graph title, description, and image. A page
// that cannot be fetched still yields the platform and target.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Preview, error) {
	platform, err := platformFor(rawURL)
	if err != nil {
		return nil, err
	}
	target, err := models.NormalizeTarget(platform, rawURL)
	if err != nil {
		return nil, err
	}

	preview := &Preview{Platform: platform, Target: target}
	e.fill(ctx, rawURL, preview)
	return preview, nil
}

// fill fetches the page and copies its Open Graph tags into the preview.
// Fetch and parse failures leave the preview as-is.
func (e *Extractor) fill(ctx context.Context, rawURL string, preview *Preview) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", "channel-analyzer/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return
	}

	preview.Title = ogTag(doc, "og:title")
	preview.Description = ogTag(doc, "og:description")
	preview.Image = ogTag(doc, "og:image")
	if preview.Title == "" {
		preview.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
}

func ogTag(doc *goquery.Document, property string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if prop, _ := sel.Attr("property"); prop != property {
			return true
		}
		content, _ = sel.Attr("content")
		return false
	})
	return strings.TrimSpace(content)
}

// platformFor maps a profile URL's host to its platform.
func platformFor(rawURL string) (models.Platform, error) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return models.PlatformYouTube, nil
	case strings.Contains(lower, "instagram.com"):
		return models.PlatformInstagram, nil
	default:
		return "", fmt.Errorf("URL %q: %w", rawURL, models.ErrUnknownPlatform)
	}
}
