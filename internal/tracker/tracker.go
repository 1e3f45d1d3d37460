// Package tracker maintains baseline and current prices per venue and decides
// when the market has moved enough to justify a fresh analysis cycle.
package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Observation is one venue's price component at a point in time.
type Observation struct {
	Price float64
	Time  time.Time
}

// PriceTracker holds a baseline and a current price per venue. Deviation is
// measured per venue against the baseline; after every completed analysis
// cycle the baseline is reset to current so the next cycle measures
// incremental movement, not cumulative drift since startup.
type PriceTracker struct {
	mu       sync.RWMutex
	baseline map[domain.VenueID]Observation
	current  map[domain.VenueID]Observation
}

// New creates an empty PriceTracker.
func New() *PriceTracker {
	return &PriceTracker{
		baseline: make(map[domain.VenueID]Observation),
		current:  make(map[domain.VenueID]Observation),
	}
}

// Update records a new price for the venue and reports the venue's deviation
// from its baseline in percent. The first observation for a venue seeds both
// baseline and current and reports zero deviation.
func (t *PriceTracker) Update(venue domain.VenueID, price float64, ts time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	obs := Observation{Price: price, Time: ts}
	base, ok := t.baseline[venue]
	if !ok {
		t.baseline[venue] = obs
		t.current[venue] = obs
		return 0
	}
	t.current[venue] = obs

	if base.Price == 0 {
		return 0
	}
	return (price - base.Price) / base.Price * 100
}

// Exceeded reports whether any venue's absolute deviation from baseline is at
// or above thresholdPct.
func (t *PriceTracker) Exceeded(thresholdPct float64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for venue, base := range t.baseline {
		cur, ok := t.current[venue]
		if !ok || base.Price == 0 {
			continue
		}
		change := (cur.Price - base.Price) / base.Price * 100
		if math.Abs(change) >= thresholdPct {
			return true
		}
	}
	return false
}

// ResetBaseline sets every venue's baseline to its current observation.
// Called after every completed analysis cycle, successful or not.
func (t *PriceTracker) ResetBaseline() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for venue, cur := range t.current {
		t.baseline[venue] = cur
	}
}

// Current returns the latest observation for a venue.
func (t *PriceTracker) Current(venue domain.VenueID) (Observation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	obs, ok := t.current[venue]
	return obs, ok
}

// Deviations returns each tracked venue's percent change from baseline.
func (t *PriceTracker) Deviations() map[domain.VenueID]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[domain.VenueID]float64, len(t.baseline))
	for venue, base := range t.baseline {
		cur, ok := t.current[venue]
		if !ok || base.Price == 0 {
			continue
		}
		out[venue] = (cur.Price - base.Price) / base.Price * 100
	}
	return out
}
