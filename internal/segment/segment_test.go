package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsolute(t *testing.T) {
	tests := []struct {
		name  string
		views int64
		want  Segment
	}{
		{name: "zero", views: 0, want: SegmentLow},
		{name: "at medium threshold stays low", views: 1_000, want: SegmentLow},
		{name: "just above medium threshold", views: 1_001, want: SegmentMedium},
		{name: "at high threshold stays medium", views: 10_000, want: SegmentMedium},
		{name: "just above high threshold", views: 10_001, want: SegmentHigh},
		{name: "at veryHigh threshold stays high", views: 100_000, want: SegmentHigh},
		{name: "just above veryHigh threshold", views: 100_001, want: SegmentVeryHigh},
		{name: "at viral threshold stays veryHigh", views: 1_000_000, want: SegmentVeryHigh},
		{name: "just above viral threshold", views: 1_000_001, want: SegmentViral},
		{name: "huge", views: 250_000_000, want: SegmentViral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Absolute(tt.views))
		})
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name  string
		views int64
		owner int64
		want  Segment
	}{
		{name: "exactly 100x audience is viral", views: 100_000, owner: 1_000, want: SegmentViral},
		{name: "far above audience size", views: 500_000, owner: 1_000, want: SegmentViral},
		{name: "exactly 75x audience", views: 75_000, owner: 1_000, want: SegmentVeryHigh},
		{name: "just under 75x audience", views: 74_999, owner: 1_000, want: SegmentHigh},
		{name: "exactly 50x audience", views: 50_000, owner: 1_000, want: SegmentHigh},
		{name: "50x a single-follower audience", views: 50, owner: 1, want: SegmentHigh},
		{name: "exactly 25x audience", views: 25_000, owner: 1_000, want: SegmentMedium},
		{name: "just under 25x audience", views: 24_999, owner: 1_000, want: SegmentLow},
		{name: "views equal to audience size stay low", views: 1_000, owner: 1_000, want: SegmentLow},
		{name: "zero views", views: 0, owner: 1_000, want: SegmentLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ratio(tt.views, tt.owner))
		})
	}
}

func TestRatio_ZeroOwnerMetric(t *testing.T) {
	// Division never happens against zero: an owner metric below one is
	// treated as one, so the view count itself becomes the ratio.
	assert.Equal(t, SegmentLow, Ratio(1, 0))
	assert.Equal(t, SegmentViral, Ratio(500, 0))
	assert.Equal(t, SegmentViral, Ratio(100, 0))
	assert.Equal(t, SegmentLow, Ratio(0, 0))
	assert.Equal(t, SegmentMedium, Ratio(30, -3))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAbsolute, m)

	m, err = ParseMode("absolute")
	require.NoError(t, err)
	assert.Equal(t, ModeAbsolute, m)

	m, err = ParseMode("ratio")
	require.NoError(t, err)
	assert.Equal(t, ModeRatio, m)

	_, err = ParseMode("percentile")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, SegmentViral, Classify(ModeAbsolute, 2_000_000, 0))
	assert.Equal(t, SegmentViral, Classify(ModeRatio, 100_000, 1_000))
	assert.Equal(t, SegmentLow, Classify(ModeRatio, 1_000, 1_000))
	assert.Equal(t, SegmentLow, Classify(ModeAbsolute, 1_000, 1_000))
}
