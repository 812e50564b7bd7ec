package generator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"novel2video/models"
)

const clipCallCost = 0.15

// Runner is the subset of the ffmpeg process runner the generators need
// for fallback synthesis and output validation.
type Runner interface {
	Run(ctx context.Context, args ...string) error
	Duration(ctx context.Context, path string) (float64, error)
	Probe(ctx context.Context, path string) (models.MediaInfo, error)
}

// ClipGenerator produces short motion clips for dynamic shots via
// image-to-video generation. On failure it degrades to a static clip
// rendered locally from the shot's image.
type ClipGenerator struct {
	provider Provider
	limiter  *RateLimiter
	retrier  *Retrier
	ffmpeg   Runner
	rules    models.ValidationConfig
	tempDir  string
	width    int
	height   int
	fps      int
}

// NewClipGenerator wires a clip generator for the configured quality tier.
func NewClipGenerator(provider Provider, limiter *RateLimiter, retrier *Retrier, ffmpeg Runner, cfg *models.Config) *ClipGenerator {
	w, h, _ := models.ResolutionFor(cfg.Video.Quality)
	return &ClipGenerator{
		provider: provider,
		limiter:  limiter,
		retrier:  retrier,
		ffmpeg:   ffmpeg,
		rules:    cfg.Validation,
		tempDir:  cfg.Video.TempDir,
		width:    w,
		height:   h,
		fps:      cfg.Video.FPS,
	}
}

// Generate fetches a clip and validates its duration; any failure yields a
// locally rendered static clip of the requested length.
func (g *ClipGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GeneratedAsset {
	start := time.Now()
	path := filepath.Join(g.tempDir, fmt.Sprintf("%s_clip_%d.mp4", req.TaskID, req.Index))

	asset := models.GeneratedAsset{
		Kind:     models.KindVideo,
		Index:    req.Index,
		Path:     path,
		Duration: req.Duration,
	}

	if err := g.fetch(ctx, req, path); err != nil {
		log.Printf("Warning: clip %d generation failed: %v", req.Index, err)
	} else if dur, err := g.ffmpeg.Duration(ctx, path); err != nil {
		log.Printf("Warning: clip %d unreadable: %v", req.Index, err)
	} else if dur < req.Duration*g.rules.DurationRatio {
		log.Printf("Warning: clip %d too short: %.2fs of %.2fs requested", req.Index, dur, req.Duration)
	} else {
		asset.Duration = dur
		asset.Cost = clipCallCost
		asset.Elapsed = time.Since(start)
		return asset
	}

	if err := g.staticClip(ctx, req.ImagePath, req.Duration, path); err != nil {
		log.Printf("Warning: static clip fallback %d failed: %v", req.Index, err)
		if err := g.colorClip(ctx, req.Duration, path); err != nil {
			log.Printf("Warning: color clip fallback %d failed: %v", req.Index, err)
		}
	}
	asset.Fallback = true
	asset.Elapsed = time.Since(start)
	return asset
}

func (g *ClipGenerator) fetch(ctx context.Context, req models.GenerationRequest, path string) error {
	if req.ImagePath == "" {
		return fmt.Errorf("no source frame for clip %d", req.Index)
	}
	if err := g.limiter.Acquire(ctx, models.KindVideo); err != nil {
		return err
	}
	return g.retrier.Do(ctx, "clip generation", func(ctx context.Context) error {
		data, err := g.provider.GenerateClip(ctx, req.ImagePath, req.Description, req.Duration)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	})
}

// staticClip loops the source image for the requested duration.
func (g *ClipGenerator) staticClip(ctx context.Context, imagePath string, seconds float64, out string) error {
	if imagePath == "" {
		return fmt.Errorf("no source image")
	}
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		g.width, g.height, g.width, g.height)
	return g.ffmpeg.Run(ctx,
		"-loop", "1",
		"-i", imagePath,
		"-t", fmt.Sprintf("%.2f", seconds),
		"-vf", scale,
		"-r", fmt.Sprintf("%d", g.fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		out,
	)
}

// colorClip is the last resort when even the source image is unusable.
func (g *ClipGenerator) colorClip(ctx context.Context, seconds float64, out string) error {
	src := fmt.Sprintf("color=c=gray:s=%dx%d:d=%.2f:r=%d", g.width, g.height, seconds, g.fps)
	return g.ffmpeg.Run(ctx,
		"-f", "lavfi",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		out,
	)
}
