package volume

import (
	"time"

	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
)

const DefaultWindow = 5 * time.Minute

type entry struct {
	timestamp time.Time
	size      float64
}

// RollingVolumeTracker keeps the running trade volume and count for one
// instrument over a trailing time window. Not safe for concurrent use;
// each instrument's tracker must have a single owner (see the detection
// engine's registry).
type RollingVolumeTracker struct {
	window      time.Duration
	entries     []entry
	totalVolume float64
	now         func() time.Time
}

// NewRollingVolumeTracker builds a tracker for the given window. A
// non-positive window falls back to DefaultWindow.
func NewRollingVolumeTracker(window time.Duration) *RollingVolumeTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RollingVolumeTracker{
		window: window,
		now:    time.Now,
	}
}

// Update evicts expired entries, then folds the trade into the window.
// Trades are expected in non-decreasing timestamp order; a trade already
// older than the window is evicted by the trailing trim on the next call.
func (t *RollingVolumeTracker) Update(trade *marketdata.Trade) {
	t.Trim()
	t.entries = append(t.entries, entry{timestamp: trade.Timestamp, size: trade.Size})
	t.totalVolume += trade.Size
}

// Trim evicts entries older than now-window from the oldest end. Cost is
// proportional to the number of evicted entries.
func (t *RollingVolumeTracker) Trim() {
	cutoff := t.now().Add(-t.window)
	evicted := 0
	for evicted < len(t.entries) && t.entries[evicted].timestamp.Before(cutoff) {
		t.totalVolume -= t.entries[evicted].size
		evicted++
	}
	if evicted == 0 {
		return
	}
	remaining := len(t.entries) - evicted
	if remaining == 0 {
		t.entries = t.entries[:0]
		t.totalVolume = 0
		return
	}
	copy(t.entries, t.entries[evicted:])
	t.entries = t.entries[:remaining]
}

// CurrentVolume returns the running volume over retained entries.
func (t *RollingVolumeTracker) CurrentVolume() float64 {
	return t.totalVolume
}

// TradeCount returns the number of retained entries.
func (t *RollingVolumeTracker) TradeCount() int {
	return len(t.entries)
}

// RecentSizes returns the sizes of the n most recently retained entries,
// newest last.
func (t *RollingVolumeTracker) RecentSizes(n int) []float64 {
	if n <= 0 || len(t.entries) == 0 {
		return nil
	}
	if n > len(t.entries) {
		n = len(t.entries)
	}
	sizes := make([]float64, 0, n)
	for _, e := range t.entries[len(t.entries)-n:] {
		sizes = append(sizes, e.size)
	}
	return sizes
}

// IsEmpty reports whether no entries are retained.
func (t *RollingVolumeTracker) IsEmpty() bool {
	return len(t.entries) == 0
}
