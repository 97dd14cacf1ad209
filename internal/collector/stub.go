package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/jonesrussell/channel-analyzer/internal/models"
)

// StubCollector synthesizes deterministic media data per target. It stands
// in for the real platform collectors in local development and demos; the
// data for a given (platform, target) pair is stable across runs.
type StubCollector struct {
	// ItemCount is how many items to emit per target. Zero means 30.
	ItemCount int
	// Delay is an optional pause between items, to exercise cancellation
	// and progress polling by hand.
	Delay time.Duration
}

func (c *StubCollector) Collect(ctx context.Context, platform models.Platform, target string, sink Sink) error {
	count := c.ItemCount
	if count <= 0 {
		count = 30
	}

	rng := rand.New(rand.NewSource(seed(platform, target)))
	ownerMetric := int64(rng.Intn(5_000_000) + 500)

	err := sink.OnProfile(ctx, Profile{
		Target:      target,
		Title:       target,
		OwnerMetric: ownerMetric,
	})
	if err != nil {
		return err
	}

	base := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		if c.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		views := int64(rng.Intn(2_000_000))
		published := base.AddDate(0, 0, -i)
		item := models.MediaItem{
			ID:           fmt.Sprintf("%s-%s-%03d", platform, target, i),
			Title:        fmt.Sprintf("%s post %d", target, i+1),
			URL:          fmt.Sprintf("https://%s.example/%s/%d", platform, target, i),
			ViewCount:    views,
			LikeCount:    views / 20,
			CommentCount: views / 400,
			PublishedAt:  &published,
		}

		progress := (i + 1) * 100 / count
		if err := sink.OnItem(ctx, item, progress); err != nil {
			return err
		}
	}
	return nil
}

func seed(platform models.Platform, target string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(platform) + "|" + target))
	return int64(h.Sum64())
}
