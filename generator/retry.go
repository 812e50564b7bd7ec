package generator

import (
	"context"
	"log"
	"math"
	"time"

	"novel2video/models"
)

type strategy struct {
	attempts   int
	multiplier float64
}

// Per-class retry budgets. Rate limits are worth waiting out; server
// errors usually are not.
var strategies = map[ErrorClass]strategy{
	ClassTimeout:      {attempts: 3, multiplier: 1.5},
	ClassRateLimited:  {attempts: 5, multiplier: 2.0},
	ClassServerError:  {attempts: 2, multiplier: 1.0},
	ClassNetworkError: {attempts: 3, multiplier: 1.2},
	ClassOther:        {attempts: 3, multiplier: 2.0},
}

// Retrier re-runs provider calls with class-dependent exponential backoff.
type Retrier struct {
	base  time.Duration
	max   time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier builds a retrier from config delays.
func NewRetrier(cfg models.RetryConfig) *Retrier {
	return &Retrier{
		base:  cfg.BaseDelay(),
		max:   cfg.MaxDelay(),
		sleep: sleepCtx,
	}
}

// Do runs fn until it succeeds or the attempt budget for its failure class
// runs out. The last error is returned on exhaustion; callers degrade to a
// fallback rather than propagate it.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}

		class := Classify(lastErr)
		st := strategies[class]
		if attempt >= st.attempts-1 {
			return lastErr
		}

		delay := r.Delay(class, attempt)
		log.Printf("Warning: %s attempt %d failed (%s), retrying in %s: %v",
			op, attempt+1, class, delay, lastErr)
		if err := r.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
}

// Delay computes the backoff before the next attempt.
func (r *Retrier) Delay(class ErrorClass, attempt int) time.Duration {
	st := strategies[class]
	d := time.Duration(float64(r.base) * math.Pow(st.multiplier, float64(attempt)))
	if d > r.max {
		d = r.max
	}
	return d
}
