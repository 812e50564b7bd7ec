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

const speechCostPerChar = 0.0002

// SpeechGenerator narrates text through the TTS provider. On failure it
// degrades to a silent track so the mux step always has an audio input.
type SpeechGenerator struct {
	provider Provider
	limiter  *RateLimiter
	retrier  *Retrier
	ffmpeg   Runner
	rules    models.ValidationConfig
	tempDir  string
}

// NewSpeechGenerator wires a speech generator.
func NewSpeechGenerator(provider Provider, limiter *RateLimiter, retrier *Retrier, ffmpeg Runner, cfg *models.Config) *SpeechGenerator {
	return &SpeechGenerator{
		provider: provider,
		limiter:  limiter,
		retrier:  retrier,
		ffmpeg:   ffmpeg,
		rules:    cfg.Validation,
		tempDir:  cfg.Video.TempDir,
	}
}

// Generate synthesizes req.Text. The returned asset always points at a
// playable audio file.
func (g *SpeechGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GeneratedAsset {
	start := time.Now()
	path := filepath.Join(g.tempDir, fmt.Sprintf("%s_speech_%d.mp3", req.TaskID, req.Index))

	asset := models.GeneratedAsset{
		Kind:  models.KindSpeech,
		Index: req.Index,
		Path:  path,
	}

	if err := g.fetch(ctx, req.Text, path); err != nil {
		log.Printf("Warning: speech %d synthesis failed: %v", req.Index, err)
	} else if info, err := g.validate(ctx, path); err != nil {
		log.Printf("Warning: speech %d rejected: %v", req.Index, err)
	} else {
		asset.Duration = info.Duration
		asset.Cost = speechCostPerChar * float64(len([]rune(req.Text)))
		asset.Elapsed = time.Since(start)
		return asset
	}

	seconds := req.Duration
	if seconds <= 0 {
		seconds = 2
	}
	if err := g.silence(ctx, seconds, path); err != nil {
		log.Printf("Warning: silence fallback %d failed: %v", req.Index, err)
	}
	asset.Duration = seconds
	asset.Fallback = true
	asset.Elapsed = time.Since(start)
	return asset
}

func (g *SpeechGenerator) fetch(ctx context.Context, text, path string) error {
	if text == "" {
		return fmt.Errorf("empty narration")
	}
	if err := g.limiter.Acquire(ctx, models.KindSpeech); err != nil {
		return err
	}
	return g.retrier.Do(ctx, "speech synthesis", func(ctx context.Context) error {
		data, err := g.provider.Synthesize(ctx, text)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	})
}

func (g *SpeechGenerator) validate(ctx context.Context, path string) (models.MediaInfo, error) {
	info, err := g.ffmpeg.Probe(ctx, path)
	if err != nil {
		return info, err
	}
	if size, err := os.Stat(path); err != nil || size.Size() <= 1024 {
		return info, fmt.Errorf("file too small")
	}
	if info.Duration < 0.5 {
		return info, fmt.Errorf("audio too short: %.2fs", info.Duration)
	}
	if info.SampleRate > 0 && info.SampleRate < 8000 {
		return info, fmt.Errorf("sample rate too low: %d", info.SampleRate)
	}
	return info, nil
}

// silence renders a mono silent track of the given length.
func (g *SpeechGenerator) silence(ctx context.Context, seconds float64, out string) error {
	src := "anullsrc=channel_layout=mono:sample_rate=24000"
	return g.ffmpeg.Run(ctx,
		"-f", "lavfi",
		"-i", src,
		"-t", fmt.Sprintf("%.2f", seconds),
		"-q:a", "9",
		out,
	)
}
