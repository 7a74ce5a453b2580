package catalog

import (
	"strconv"
	"strings"
)

// Window is an optional pagination window. It only applies when both Start and Size
// are set.
type Window struct {
	Start *int
	Size  *int
}

// ParseWindow builds a window from raw start/size values. Values that are missing,
// not integers or negative are treated as absent.
func ParseWindow(start, size string) Window {
	return Window{
		Start: parseNonNegative(start),
		Size:  parseNonNegative(size),
	}
}

// NewWindow returns a window with both bounds set
func NewWindow(start, size int) Window {
	return Window{Start: &start, Size: &size}
}

// Active reports whether the window slices results
func (w Window) Active() bool {
	return w.Start != nil && w.Size != nil
}

// Bounds returns the half-open range [lo, hi) the window selects from n items
func (w Window) Bounds(n int) (int, int) {
	if !w.Active() {
		return 0, n
	}
	lo := *w.Start
	if lo > n {
		lo = n
	}
	hi := lo + *w.Size
	if hi > n || hi < lo {
		hi = n
	}
	return lo, hi
}

// Paginate slices items to the window. Out of range bounds truncate silently.
func Paginate[T any](items []T, w Window) []T {
	lo, hi := w.Bounds(len(items))
	return items[lo:hi]
}

func parseNonNegative(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
