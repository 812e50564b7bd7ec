// Package pipeline runs whole tasks: allocation, generation, assembly,
// delivery and bookkeeping.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"novel2video/engine"
	"novel2video/generator"
	"novel2video/models"
	"novel2video/planner"
	"novel2video/store"
	"novel2video/utils"
)

// Pipeline owns the long-lived pieces: limiter, retrier, provider, process
// runner and store. Generators and the editor are built per task so a
// request's quality override gets its own tier wiring.
type Pipeline struct {
	cfg      *models.Config
	store    store.Store
	provider generator.Provider
	ffmpeg   *utils.FFmpeg
	limiter  *generator.RateLimiter
	retrier  *generator.Retrier
	orch     *generator.Orchestrator
}

// New wires a pipeline.
func New(cfg *models.Config, st store.Store, provider generator.Provider, ffmpeg *utils.FFmpeg) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		provider: provider,
		ffmpeg:   ffmpeg,
		limiter:  generator.NewRateLimiter(cfg.RateLimits),
		retrier:  generator.NewRetrier(cfg.Retry),
		orch:     generator.NewOrchestrator(cfg.Concurrency),
	}
}

// Run executes one task under a fresh id.
func (p *Pipeline) Run(ctx context.Context, req models.TaskRequest) models.TaskResult {
	return p.RunTask(ctx, uuid.New().String(), req)
}

// RunTask executes one task. It always returns a result; Status tells
// whether a video was delivered. Intermediate artifacts are removed on
// every exit path, including cancellation.
func (p *Pipeline) RunTask(ctx context.Context, taskID string, req models.TaskRequest) models.TaskResult {
	start := time.Now()
	result := models.TaskResult{TaskID: taskID, Status: models.StatusFailed}

	cfg := p.taskConfig(req)

	defer func() {
		removed := utils.CleanupTaskFiles(cfg.Video.TempDir, taskID)
		if removed > 0 {
			log.Printf("Cleaned up %d temp files for task %s", removed, taskID)
		}
	}()

	p.store.CreateTask(ctx, taskID, req)

	fail := func(err error) models.TaskResult {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		p.store.FailTask(ctx, taskID, result.Error)
		return result
	}

	if len(req.Shots) == 0 {
		return fail(fmt.Errorf("task has no shots"))
	}
	if err := utils.EnsureDirectoryExists(cfg.Video.TempDir); err != nil {
		return fail(fmt.Errorf("create temp directory: %w", err))
	}

	p.store.UpdateTaskStatus(ctx, taskID, models.StatusProcessing)

	target := req.TargetDuration
	if target <= 0 {
		target = cfg.Planning.DynamicShotSeconds * float64(len(req.Shots))
	}

	alloc := planner.NewAllocator(cfg.Planning)
	shots := alloc.Allocate(alloc.MarkDynamic(req.Shots), target)
	log.Printf("Task %s: %d shots over %.1fs target (allocated %.1fs)",
		taskID, len(shots), target, planner.Total(shots))

	narration := req.NarrationText()
	tracker := NewTracker()
	assets, narrationAudio := p.generate(ctx, cfg, taskID, shots, narration, target, tracker)
	if ctx.Err() != nil {
		return fail(ctx.Err())
	}

	editor := engine.NewVideoEditor(p.ffmpeg, cfg)
	outputPath, report, err := editor.Compose(ctx, taskID, req.Title, shots, assets, narrationAudio, narration, target)
	if err != nil {
		return fail(err)
	}
	if !report.OK {
		log.Printf("Warning: task %s output failed validation: %v", taskID, report.Reasons)
	}

	tracker.Flush(ctx, p.store)

	_, fallbacks := generator.Summary(assets)
	result.Status = models.StatusCompleted
	result.OutputPath = outputPath
	result.Duration = report.Info.Duration
	result.TotalCost = tracker.TotalCost()
	result.FallbackCount = fallbacks
	result.Elapsed = time.Since(start)
	p.store.CompleteTask(ctx, taskID, result)

	log.Printf("Task %s completed: %s (%.1fs, $%.4f, %d fallbacks)",
		taskID, outputPath, result.Duration, result.TotalCost, result.FallbackCount)
	return result
}

// taskConfig applies a valid per-request quality override on a copy.
func (p *Pipeline) taskConfig(req models.TaskRequest) *models.Config {
	if req.Quality == "" || req.Quality == p.cfg.Video.Quality {
		return p.cfg
	}
	if _, _, ok := models.ResolutionFor(req.Quality); !ok {
		log.Printf("Warning: ignoring unknown quality %q", req.Quality)
		return p.cfg
	}
	cfg := *p.cfg
	cfg.Video.Quality = req.Quality
	return &cfg
}

// generate produces one asset per shot plus the narration track. Dynamic
// shots prefer their generated clip; everything else uses the still image.
func (p *Pipeline) generate(ctx context.Context, cfg *models.Config, taskID string, shots []models.Shot, narration string, target float64, tracker *Tracker) ([]models.GeneratedAsset, string) {
	imageGen := generator.NewImageGenerator(p.provider, p.limiter, p.retrier, cfg)
	clipGen := generator.NewClipGenerator(p.provider, p.limiter, p.retrier, p.ffmpeg, cfg)
	speechGen := generator.NewSpeechGenerator(p.provider, p.limiter, p.retrier, p.ffmpeg, cfg)

	imageReqs := make([]models.GenerationRequest, len(shots))
	for i, shot := range shots {
		imageReqs[i] = models.GenerationRequest{
			TaskID:      taskID,
			Index:       i,
			Description: shot.Description,
		}
	}
	images := p.orch.GenerateImages(ctx, imageGen, imageReqs)
	p.record(ctx, taskID, images, imageReqs, tracker)

	var clipReqs []models.GenerationRequest
	for i, shot := range shots {
		if !shot.Dynamic {
			continue
		}
		clipReqs = append(clipReqs, models.GenerationRequest{
			TaskID:      taskID,
			Index:       i,
			Description: shot.Description,
			ImagePath:   images[i].Path,
			Duration:    shot.Duration,
		})
	}
	clips := p.orch.GenerateClips(ctx, clipGen, clipReqs)
	p.record(ctx, taskID, clips, clipReqs, tracker)

	clipByShot := make(map[int]models.GeneratedAsset, len(clips))
	for _, clip := range clips {
		clipByShot[clip.Index] = clip
	}

	assets := make([]models.GeneratedAsset, len(shots))
	for i, shot := range shots {
		if clip, ok := clipByShot[i]; ok && shot.Dynamic {
			assets[i] = clip
		} else {
			assets[i] = images[i]
		}
	}

	narrationAudio := ""
	if narration != "" {
		speechReqs := []models.GenerationRequest{{
			TaskID:   taskID,
			Index:    0,
			Text:     narration,
			Duration: target,
		}}
		speech := p.orch.GenerateSpeech(ctx, speechGen, speechReqs)
		p.record(ctx, taskID, speech, speechReqs, tracker)
		narrationAudio = speech[0].Path
	}

	return assets, narrationAudio
}

// record writes audit rows and feeds the cost tracker.
func (p *Pipeline) record(ctx context.Context, taskID string, assets []models.GeneratedAsset, reqs []models.GenerationRequest, tracker *Tracker) {
	for i, asset := range assets {
		tracker.Record(asset.Kind, asset.Cost)

		size, _ := utils.GetFileSize(asset.Path)
		desc := ""
		if i < len(reqs) {
			desc = reqs[i].Description
			if desc == "" {
				desc = reqs[i].Text
			}
		}
		p.store.SaveMediaGeneration(ctx, store.MediaGeneration{
			TaskID:         taskID,
			MediaType:      asset.Kind,
			Description:    desc,
			FilePath:       asset.Path,
			FileSize:       size,
			Duration:       asset.Duration,
			Cost:           asset.Cost,
			Fallback:       asset.Fallback,
			ProcessingSecs: asset.Elapsed.Seconds(),
		})
	}
}
