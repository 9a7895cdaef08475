package detection

import (
	"sync"
	"time"

	"github.com/Dmurillo722/moby/internal/analytics/volume"
	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
)

// trackerRegistry owns all per-instrument window state. Every tracker is
// guarded by its own mutex so two workers handling the same symbol can
// never race the running totals, while different symbols proceed in
// parallel.
type trackerRegistry struct {
	window time.Duration

	mu    sync.RWMutex
	slots map[string]*trackerSlot
}

type trackerSlot struct {
	mu      sync.Mutex
	tracker *volume.RollingVolumeTracker
}

func newTrackerRegistry(window time.Duration) *trackerRegistry {
	return &trackerRegistry{
		window: window,
		slots:  make(map[string]*trackerSlot),
	}
}

// observe folds the trade into its symbol's window and returns the
// trade's impact ratio against the volume retained before it.
func (r *trackerRegistry) observe(trade *marketdata.Trade) float64 {
	slot := r.slot(trade.Symbol)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.tracker.Trim()
	ratio := volume.ImpactRatio(trade.Size, slot.tracker.CurrentVolume())
	slot.tracker.Update(trade)
	return ratio
}

func (r *trackerRegistry) slot(symbol string) *trackerSlot {
	r.mu.RLock()
	slot, ok := r.slots[symbol]
	r.mu.RUnlock()
	if ok {
		return slot
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok = r.slots[symbol]; ok {
		return slot
	}
	slot = &trackerSlot{tracker: volume.NewRollingVolumeTracker(r.window)}
	r.slots[symbol] = slot
	return slot
}

func (r *trackerRegistry) forget(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, symbol)
}

func (r *trackerRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}
