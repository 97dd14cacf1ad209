// Package collector defines the boundary between the job pipeline and
// platform-specific media collection.
package collector

import (
	"context"
	"errors"

	"github.com/jonesrussell/channel-analyzer/internal/models"
)

// Profile describes the channel or account being analyzed, fetched before
// any media items stream in.
type Profile struct {
	Target string
	Title  string
	// OwnerMetric is the audience size: subscribers on YouTube, followers
	// on Instagram.
	OwnerMetric int64
}

// Sink receives collection output as it is produced. Implementations are
// called from the collector's goroutine; a non-nil error tells the
// collector to stop immediately.
type Sink interface {
	// OnProfile is called once, before the first item.
	OnProfile(ctx context.Context, p Profile) error
	// OnItem is called per collected item with the collector's progress
	// estimate in [0, 100].
	OnItem(ctx context.Context, item models.MediaItem, progress int) error
}

// Collector fetches a channel's profile and recent media. Implementations
// must honor ctx cancellation between network calls and return its error.
type Collector interface {
	Collect(ctx context.Context, platform models.Platform, target string, sink Sink) error
}

// Collection failure classes. Collectors wrap their underlying errors with
// one of these so the pipeline can record a structured failure kind.
var (
	// ErrTargetNotFound means the platform reported no such channel/account.
	ErrTargetNotFound = errors.New("target not found on platform")
	// ErrUpstream covers transport failures, 5xx responses, and rate limits.
	ErrUpstream = errors.New("upstream failure")
)

// KindFor maps a collection error to the failure kind recorded on the job.
func KindFor(err error) models.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrKindTimeout
	case errors.Is(err, ErrTargetNotFound):
		return models.ErrKindTargetNotFound
	default:
		return models.ErrKindUpstream
	}
}
