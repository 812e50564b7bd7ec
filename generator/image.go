package generator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "image/jpeg"

	"novel2video/models"
)

const imageCallCost = 0.025

// ImageGenerator produces one still frame per shot. It never fails: when
// the provider or validation gives up it writes a flat placeholder at the
// exact target resolution instead.
type ImageGenerator struct {
	provider Provider
	limiter  *RateLimiter
	retrier  *Retrier
	rules    models.ValidationConfig
	tempDir  string
	width    int
	height   int
}

// NewImageGenerator wires an image generator for the configured quality tier.
func NewImageGenerator(provider Provider, limiter *RateLimiter, retrier *Retrier, cfg *models.Config) *ImageGenerator {
	w, h, _ := models.ResolutionFor(cfg.Video.Quality)
	return &ImageGenerator{
		provider: provider,
		limiter:  limiter,
		retrier:  retrier,
		rules:    cfg.Validation,
		tempDir:  cfg.Video.TempDir,
		width:    w,
		height:   h,
	}
}

// Generate runs the full attempt ladder: strict pass, relaxed pass with an
// augmented description, then the local placeholder.
func (g *ImageGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GeneratedAsset {
	start := time.Now()
	path := filepath.Join(g.tempDir, fmt.Sprintf("%s_image_%d.png", req.TaskID, req.Index))

	asset := models.GeneratedAsset{
		Kind:  models.KindImage,
		Index: req.Index,
		Path:  path,
	}

	for pass := 0; pass < 2; pass++ {
		desc := req.Description
		relaxed := pass == 1
		if relaxed {
			desc += ", high quality, detailed, cinematic lighting"
		}

		if err := g.fetch(ctx, desc, path); err != nil {
			log.Printf("Warning: image %d generation failed: %v", req.Index, err)
			continue
		}
		if err := g.validate(path, relaxed); err != nil {
			log.Printf("Warning: image %d rejected: %v", req.Index, err)
			continue
		}

		asset.Cost = imageCallCost
		asset.Elapsed = time.Since(start)
		return asset
	}

	if err := g.placeholder(path); err != nil {
		log.Printf("Warning: failed to write placeholder image %d: %v", req.Index, err)
	}
	asset.Fallback = true
	asset.Elapsed = time.Since(start)
	return asset
}

func (g *ImageGenerator) fetch(ctx context.Context, description, path string) error {
	if err := g.limiter.Acquire(ctx, models.KindImage); err != nil {
		return err
	}
	return g.retrier.Do(ctx, "image generation", func(ctx context.Context) error {
		data, err := g.provider.GenerateImage(ctx, description, g.width, g.height)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	})
}

// validate checks the written file against resolution, size and aspect
// floors. The relaxed pass only requires a smaller file and a minimal
// resolution.
func (g *ImageGenerator) validate(path string, relaxed bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("undecodable image: %w", err)
	}

	if relaxed {
		if info.Size() < g.rules.ImageRelaxedMinBytes {
			return fmt.Errorf("file too small: %d bytes", info.Size())
		}
		if cfg.Width < 200 || cfg.Height < 200 {
			return fmt.Errorf("resolution too low: %dx%d", cfg.Width, cfg.Height)
		}
		return nil
	}

	if info.Size() < g.rules.ImageMinBytes {
		return fmt.Errorf("file too small: %d bytes", info.Size())
	}
	minW := int(float64(g.width) * g.rules.ImageMinScale)
	minH := int(float64(g.height) * g.rules.ImageMinScale)
	if cfg.Width < minW || cfg.Height < minH {
		return fmt.Errorf("resolution %dx%d below %dx%d", cfg.Width, cfg.Height, minW, minH)
	}

	want := float64(g.width) / float64(g.height)
	got := float64(cfg.Width) / float64(cfg.Height)
	if math.Abs(got-want) > g.rules.AspectTolerance {
		return fmt.Errorf("aspect ratio %.2f too far from %.2f", got, want)
	}
	return nil
}

// placeholder writes a flat gray frame at the target resolution.
func (g *ImageGenerator) placeholder(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	gray := color.RGBA{R: 64, G: 64, B: 64, A: 255}
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.Set(x, y, gray)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
