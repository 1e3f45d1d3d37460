package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// MemoryDedup suppresses redelivered trade events by transaction id within a
// TTL window. It is the in-process fallback when no shared cache is
// configured; entries are pruned lazily on each call.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryDedup creates a MemoryDedup with the given window.
func NewMemoryDedup(ttl time.Duration) *MemoryDedup {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryDedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

var _ domain.EventDedup = (*MemoryDedup)(nil)

// Seen reports whether txID was recorded inside the TTL window and records it
// otherwise.
func (d *MemoryDedup) Seen(_ context.Context, txID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[txID]; ok && now.Sub(last) < d.ttl {
		return true, nil
	}
	d.seen[txID] = now

	// Prune expired entries while we hold the lock; the event rate is low
	// enough that a full sweep is fine.
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
	return false, nil
}
