package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"novel2video/models"
)

// jitterGenerator finishes requests in scrambled order to stress result
// ordering.
type jitterGenerator struct {
	inFlight int32
	peak     int32
	mu       sync.Mutex
}

func (g *jitterGenerator) Generate(_ context.Context, req models.GenerationRequest) models.GeneratedAsset {
	cur := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)

	g.mu.Lock()
	if cur > g.peak {
		g.peak = cur
	}
	g.mu.Unlock()

	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	return models.GeneratedAsset{
		Kind:  models.KindImage,
		Index: req.Index,
		Path:  fmt.Sprintf("asset_%d.png", req.Index),
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestFanOutPreservesOrder(t *testing.T) {
	o := NewOrchestrator(models.ConcurrencyConfig{Images: 3, Videos: 1, Speech: 2})
	o.sleep = noSleep

	reqs := make([]models.GenerationRequest, 17)
	for i := range reqs {
		reqs[i] = models.GenerationRequest{Index: i}
	}

	gen := &jitterGenerator{}
	results := o.GenerateImages(context.Background(), gen, reqs)

	if len(results) != len(reqs) {
		t.Fatalf("got %d results, want %d", len(results), len(reqs))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("results[%d] holds asset %d", i, r.Index)
		}
	}
}

func TestFanOutRespectsConcurrencyCap(t *testing.T) {
	o := NewOrchestrator(models.ConcurrencyConfig{Images: 3, Videos: 1, Speech: 2})
	o.sleep = noSleep

	reqs := make([]models.GenerationRequest, 9)
	for i := range reqs {
		reqs[i] = models.GenerationRequest{Index: i}
	}

	gen := &jitterGenerator{}
	o.GenerateClips(context.Background(), gen, reqs)

	if gen.peak > 1 {
		t.Errorf("video fan-out peaked at %d concurrent calls, cap is 1", gen.peak)
	}
}

func TestFanOutCoolsDownBetweenBatches(t *testing.T) {
	o := NewOrchestrator(models.ConcurrencyConfig{Images: 2, Videos: 1, Speech: 2, CoolDownSeconds: 2})
	pauses := 0
	o.sleep = func(_ context.Context, d time.Duration) error {
		if d != 2*time.Second {
			t.Errorf("cool-down of %s, want 2s", d)
		}
		pauses++
		return nil
	}

	reqs := make([]models.GenerationRequest, 5)
	for i := range reqs {
		reqs[i] = models.GenerationRequest{Index: i}
	}
	o.GenerateImages(context.Background(), &jitterGenerator{}, reqs)

	// 5 requests in batches of 2 -> 3 batches -> 2 pauses.
	if pauses != 2 {
		t.Errorf("paused %d times, want 2", pauses)
	}
}

func TestFanOutEmptyInput(t *testing.T) {
	o := NewOrchestrator(models.ConcurrencyConfig{Images: 3, Videos: 1, Speech: 2})
	o.sleep = noSleep

	results := o.GenerateImages(context.Background(), &jitterGenerator{}, nil)
	if len(results) != 0 {
		t.Errorf("got %d results for empty input", len(results))
	}
}

func TestSummary(t *testing.T) {
	assets := []models.GeneratedAsset{
		{Cost: 0.025},
		{Cost: 0, Fallback: true},
		{Cost: 0.15},
	}
	cost, fallbacks := Summary(assets)
	if math.Abs(cost-0.175) > 1e-9 {
		t.Errorf("cost = %v, want 0.175", cost)
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
}
