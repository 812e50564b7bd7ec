package generator

import (
	"context"
	"testing"
	"time"

	"novel2video/models"
)

// fakeClock drives the limiter without real sleeping: sleeps advance the
// clock instead.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(c *fakeClock, quotas map[string]int, def int) *RateLimiter {
	l := NewRateLimiter(models.RateLimitConfig{Default: def, Services: quotas})
	l.now = c.Now
	l.sleep = c.Sleep
	return l
}

func TestAcquireUnderQuotaNeverSleeps(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[string]int{"video": 20}, 60)

	for i := 0; i < 20; i++ {
		if err := l.Acquire(context.Background(), "video"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if clock.sleeps != 0 {
		t.Errorf("slept %d times under quota", clock.sleeps)
	}
	if got := l.Stats()["video"]; got != 20 {
		t.Errorf("window has %d calls, want 20", got)
	}
}

func TestAcquireBlocksUntilOldestAgesOut(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[string]int{"video": 2}, 60)

	ctx := context.Background()
	if err := l.Acquire(ctx, "video"); err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(10 * time.Second)
	if err := l.Acquire(ctx, "video"); err != nil {
		t.Fatal(err)
	}

	// Third call is over quota; it must wait until the first call leaves
	// the 60s window, i.e. 50 more seconds.
	if err := l.Acquire(ctx, "video"); err != nil {
		t.Fatal(err)
	}
	if clock.sleeps == 0 {
		t.Fatal("expected a sleep for the over-quota acquire")
	}
	if got := clock.slept[0]; got != 50*time.Second {
		t.Errorf("waited %s, want 50s", got)
	}
}

func TestAcquireNeverExceedsQuotaPerWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[string]int{"image": 5}, 60)

	ctx := context.Background()
	for i := 0; i < 17; i++ {
		if err := l.Acquire(ctx, "image"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if got := l.Stats()["image"]; got > 5 {
			t.Fatalf("window holds %d calls after acquire %d, quota is 5", got, i)
		}
	}
}

func TestAcquireUnknownServiceUsesDefault(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[string]int{"image": 5}, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx, "mystery"); err != nil {
			t.Fatal(err)
		}
	}
	if clock.sleeps != 0 {
		t.Fatalf("slept before reaching the default quota")
	}
	if err := l.Acquire(ctx, "mystery"); err != nil {
		t.Fatal(err)
	}
	if clock.sleeps == 0 {
		t.Error("expected the default quota to force a wait")
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[string]int{"video": 1}, 60)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	ctx := context.Background()
	if err := l.Acquire(ctx, "video"); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx, "video"); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
