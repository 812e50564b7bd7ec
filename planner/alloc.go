// Package planner assigns per-shot durations against a target total.
package planner

import (
	"math"

	"novel2video/models"
)

// Allocator distributes a target duration across a shot list. Dynamic
// shots get a fixed length; static shots share what remains.
type Allocator struct {
	cfg models.PlanningConfig
}

// NewAllocator builds an allocator from planning config.
func NewAllocator(cfg models.PlanningConfig) *Allocator {
	return &Allocator{cfg: cfg}
}

// MarkDynamic flags shots for clip generation when the upstream plan left
// none marked, spreading the configured count evenly across the list.
// A plan that already marks any shot is kept as-is.
func (a *Allocator) MarkDynamic(shots []models.Shot) []models.Shot {
	count := a.cfg.DynamicShotCount
	if count <= 0 || len(shots) == 0 {
		return shots
	}
	for _, s := range shots {
		if s.Dynamic {
			return shots
		}
	}
	if count > len(shots) {
		count = len(shots)
	}

	out := make([]models.Shot, len(shots))
	copy(out, shots)
	for k := 0; k < count; k++ {
		out[k*len(out)/count].Dynamic = true
	}
	return out
}

// Allocate fills Duration on every shot. Static shots split the remainder
// in whole seconds, the integer leftover going one second at a time to the
// earliest static shots. Every duration is clamped to the configured range,
// so the total is conserved only within clamp limits.
func (a *Allocator) Allocate(shots []models.Shot, target float64) []models.Shot {
	out := make([]models.Shot, len(shots))
	copy(out, shots)
	if len(out) == 0 {
		return out
	}

	staticCount := 0
	dynamicTotal := 0.0
	for _, s := range out {
		if s.Dynamic {
			dynamicTotal += a.cfg.DynamicShotSeconds
		} else {
			staticCount++
		}
	}

	base, leftover := 0, 0
	if staticCount > 0 {
		remaining := int(math.Max(0, target-dynamicTotal))
		base = remaining / staticCount
		leftover = remaining - base*staticCount
	}

	assigned := 0
	for i := range out {
		if out[i].Dynamic {
			out[i].Duration = a.clamp(a.cfg.DynamicShotSeconds)
			continue
		}
		d := float64(base)
		if assigned < leftover {
			d++
		}
		assigned++
		out[i].Duration = a.clamp(d)
	}

	return a.Rebalance(out, target)
}

// Rebalance rescales static shots proportionally when the allocated total
// drifts past the tolerance. Dynamic durations are held fixed.
func (a *Allocator) Rebalance(shots []models.Shot, target float64) []models.Shot {
	total := Total(shots)
	if math.Abs(total-target) <= a.cfg.RebalanceTolerance {
		return shots
	}

	staticTotal := 0.0
	dynamicTotal := 0.0
	for _, s := range shots {
		if s.Dynamic {
			dynamicTotal += s.Duration
		} else {
			staticTotal += s.Duration
		}
	}
	if staticTotal == 0 {
		return shots
	}

	factor := (target - dynamicTotal) / staticTotal

	out := make([]models.Shot, len(shots))
	copy(out, shots)
	for i := range out {
		if !out[i].Dynamic {
			if factor <= 0 {
				out[i].Duration = a.cfg.MinShotSeconds
			} else {
				out[i].Duration = a.clamp(out[i].Duration * factor)
			}
		}
	}
	return out
}

func (a *Allocator) clamp(d float64) float64 {
	if d < a.cfg.MinShotSeconds {
		return a.cfg.MinShotSeconds
	}
	if d > a.cfg.MaxShotSeconds {
		return a.cfg.MaxShotSeconds
	}
	return d
}

// Total sums the allocated durations.
func Total(shots []models.Shot) float64 {
	sum := 0.0
	for _, s := range shots {
		sum += s.Duration
	}
	return sum
}
