// Package segment classifies media items into performance bands.
//
// Classification is a pure function of the item's view count and, in ratio
// mode, the owner's audience size at analysis time. Segments are computed
// whenever items are read and are never stored.
package segment

import "fmt"

// Segment is a performance band for a media item.
type Segment string

const (
	SegmentViral    Segment = "viral"
	SegmentVeryHigh Segment = "veryHigh"
	SegmentHigh     Segment = "high"
	SegmentMedium   Segment = "medium"
	SegmentLow      Segment = "low"
)

// Mode selects how view counts are bucketed.
type Mode string

const (
	// ModeAbsolute buckets by raw view count with strict thresholds.
	ModeAbsolute Mode = "absolute"
	// ModeRatio buckets by the views-to-audience ratio, with inclusive
	// thresholds. It surfaces outliers: items that reached far beyond the
	// owner's own audience.
	ModeRatio Mode = "ratio"
)

// Absolute view-count thresholds. A count must strictly exceed a threshold
// to reach its band.
const (
	absViral    = 1_000_000
	absVeryHigh = 100_000
	absHigh     = 10_000
	absMedium   = 1_000
)

// Ratio thresholds in multiples of the owner's audience size. Reaching a
// threshold is enough (inclusive comparison).
const (
	ratioViral    = 100.0
	ratioVeryHigh = 75.0
	ratioHigh     = 50.0
	ratioMedium   = 25.0
)

// ParseMode validates a mode string; the empty string selects ModeAbsolute.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAbsolute:
		return ModeAbsolute, nil
	case ModeRatio:
		return ModeRatio, nil
	default:
		return "", fmt.Errorf("unknown segmentation mode %q", s)
	}
}

// Classify buckets a view count under the given mode. ownerMetric is only
// consulted in ratio mode.
func Classify(mode Mode, viewCount, ownerMetric int64) Segment {
	if mode == ModeRatio {
		return Ratio(viewCount, ownerMetric)
	}
	return Absolute(viewCount)
}

// Absolute buckets by raw view count: strictly more than 1M is viral,
// more than 100k very high, more than 10k high, more than 1k medium,
// anything else low.
func Absolute(viewCount int64) Segment {
	switch {
	case viewCount > absViral:
		return SegmentViral
	case viewCount > absVeryHigh:
		return SegmentVeryHigh
	case viewCount > absHigh:
		return SegmentHigh
	case viewCount > absMedium:
		return SegmentMedium
	default:
		return SegmentLow
	}
}

// Ratio buckets by views divided by the owner's audience size: 100 times
// the audience or more is viral, 75 times very high, 50 high, 25 medium,
// anything below low. An owner metric below one counts as one so the
// ratio stays defined.
func Ratio(viewCount, ownerMetric int64) Segment {
	if ownerMetric < 1 {
		ownerMetric = 1
	}
	ratio := float64(viewCount) / float64(ownerMetric)

	switch {
	case ratio >= ratioViral:
		return SegmentViral
	case ratio >= ratioVeryHigh:
		return SegmentVeryHigh
	case ratio >= ratioHigh:
		return SegmentHigh
	case ratio >= ratioMedium:
		return SegmentMedium
	default:
		return SegmentLow
	}
}
