package pipeline

import (
	"context"
	"sync"

	"novel2video/store"
)

// Tracker accumulates per-service call counts and costs across one task.
type Tracker struct {
	mu    sync.Mutex
	calls map[string]int
	costs map[string]float64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		calls: make(map[string]int),
		costs: make(map[string]float64),
	}
}

// Record adds one call for a service.
func (t *Tracker) Record(service string, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[service]++
	t.costs[service] += cost
}

// TotalCost sums costs across services.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0.0
	for _, c := range t.costs {
		total += c
	}
	return total
}

// Flush writes the daily aggregates to the store.
func (t *Tracker) Flush(ctx context.Context, st store.Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for service, cost := range t.costs {
		st.TrackDailyCost(ctx, service, cost)
	}
}
