package generator

import (
	"context"
	"log"
	"sync"
	"time"

	"novel2video/models"
)

// Generator is anything that turns one request into one asset without
// failing. All three concrete generators satisfy it.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) models.GeneratedAsset
}

// Orchestrator fans generation requests out under per-kind concurrency
// caps, preserving input order in its output.
type Orchestrator struct {
	cfg   models.ConcurrencyConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator builds an orchestrator from concurrency config.
func NewOrchestrator(cfg models.ConcurrencyConfig) *Orchestrator {
	return &Orchestrator{cfg: cfg, sleep: sleepCtx}
}

// GenerateImages fans out under the image cap.
func (o *Orchestrator) GenerateImages(ctx context.Context, gen Generator, reqs []models.GenerationRequest) []models.GeneratedAsset {
	return o.fanOut(ctx, gen, reqs, o.cfg.Images)
}

// GenerateClips fans out under the video cap.
func (o *Orchestrator) GenerateClips(ctx context.Context, gen Generator, reqs []models.GenerationRequest) []models.GeneratedAsset {
	return o.fanOut(ctx, gen, reqs, o.cfg.Videos)
}

// GenerateSpeech fans out under the speech cap.
func (o *Orchestrator) GenerateSpeech(ctx context.Context, gen Generator, reqs []models.GenerationRequest) []models.GeneratedAsset {
	return o.fanOut(ctx, gen, reqs, o.cfg.Speech)
}

// fanOut works through reqs in batches of limit with a cool-down between
// batches. results[i] always corresponds to reqs[i]; lengths are equal.
func (o *Orchestrator) fanOut(ctx context.Context, gen Generator, reqs []models.GenerationRequest, limit int) []models.GeneratedAsset {
	if limit < 1 {
		limit = 1
	}
	results := make([]models.GeneratedAsset, len(reqs))

	var mu sync.Mutex
	for start := 0; start < len(reqs); start += limit {
		end := start + limit
		if end > len(reqs) {
			end = len(reqs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				asset := gen.Generate(ctx, reqs[i])
				mu.Lock()
				results[i] = asset
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		if end < len(reqs) && o.cfg.CoolDown() > 0 {
			if err := o.sleep(ctx, o.cfg.CoolDown()); err != nil {
				log.Printf("Warning: batch cool-down interrupted: %v", err)
			}
		}
	}

	return results
}

// Summary aggregates cost and fallback counts over a result set.
func Summary(assets []models.GeneratedAsset) (totalCost float64, fallbacks int) {
	for _, a := range assets {
		totalCost += a.Cost
		if a.Fallback {
			fallbacks++
		}
	}
	return totalCost, fallbacks
}
