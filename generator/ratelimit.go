package generator

import (
	"context"
	"sync"
	"time"

	"novel2video/models"
)

const rateWindow = time.Minute

// RateLimiter enforces sliding-window per-minute quotas per service.
// Services without an explicit quota fall back to the default. Safe for
// concurrent use.
type RateLimiter struct {
	mu     sync.Mutex
	quotas map[string]int
	def    int
	calls  map[string][]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter builds a limiter from config quotas.
func NewRateLimiter(cfg models.RateLimitConfig) *RateLimiter {
	quotas := make(map[string]int, len(cfg.Services))
	for svc, q := range cfg.Services {
		quotas[svc] = q
	}
	return &RateLimiter{
		quotas: quotas,
		def:    cfg.Default,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func (l *RateLimiter) quota(service string) int {
	if q, ok := l.quotas[service]; ok {
		return q
	}
	return l.def
}

// Acquire blocks until the service is under quota, then records the call.
// Returns the context error when cancelled while waiting.
func (l *RateLimiter) Acquire(ctx context.Context, service string) error {
	for {
		l.mu.Lock()
		now := l.now()
		window := l.prune(service, now)

		if len(window) < l.quota(service) {
			l.calls[service] = append(window, now)
			l.mu.Unlock()
			return nil
		}

		// Wait until the oldest call in the window ages out.
		wait := window[0].Add(rateWindow).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops calls older than the window. Caller holds the lock.
func (l *RateLimiter) prune(service string, now time.Time) []time.Time {
	window := l.calls[service]
	cutoff := now.Add(-rateWindow)
	for len(window) > 0 && !window[0].After(cutoff) {
		window = window[1:]
	}
	l.calls[service] = window
	return window
}

// Stats reports calls currently inside each service's window.
func (l *RateLimiter) Stats() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stats := make(map[string]int, len(l.calls))
	for svc := range l.calls {
		stats[svc] = len(l.prune(svc, now))
	}
	return stats
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
