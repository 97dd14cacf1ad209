// Package paging provides the shared pagination primitive used by the item
// and job listing endpoints. Both surfaces reduce to a Window (limit and
// offset) after their own parameter conventions are applied and clamped.
package paging

const (
	// DefaultItemLimit is the page size for media item listings.
	DefaultItemLimit = 50
	// DefaultListLimit is the page size for job listings.
	DefaultListLimit = 20
	// MaxLimit caps the page size for every listing surface.
	MaxLimit = 100
)

// Window is a half-open slice [Offset, Offset+Limit) over an ordered
// collection.
type Window struct {
	Limit  int
	Offset int
}

// ItemPage builds a Window from 1-based page/limit parameters, clamping
// out-of-range values instead of rejecting them. Zero values select the
// defaults.
func ItemPage(page, limit int) Window {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultItemLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Window{Limit: limit, Offset: (page - 1) * limit}
}

// List builds a Window from limit/offset parameters, clamping out-of-range
// values. Zero values select the defaults.
func List(limit, offset int) Window {
	if limit < 1 {
		limit = DefaultListLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Window{Limit: limit, Offset: offset}
}

// Page returns the 1-based page number this window corresponds to.
func (w Window) Page() int {
	if w.Limit <= 0 {
		return 1
	}
	return w.Offset/w.Limit + 1
}

// HasMore reports whether elements exist beyond this window in a collection
// of the given total size.
func (w Window) HasMore(total int) bool {
	return w.Offset+w.Limit < total
}

// Bounds clamps the window to a collection of the given size and returns
// slice indexes. A window past the end yields an empty range.
func (w Window) Bounds(total int) (lo, hi int) {
	lo = w.Offset
	if lo > total {
		lo = total
	}
	hi = lo + w.Limit
	if hi > total {
		hi = total
	}
	return lo, hi
}

// Cut applies the window to an in-memory slice.
func Cut[T any](items []T, w Window) []T {
	lo, hi := w.Bounds(len(items))
	return items[lo:hi]
}
