package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"novel2video/models"
)

// TierSettings are the encoder knobs for one quality tier.
type TierSettings struct {
	Preset       string
	CRF          int
	MaxRate      string
	BufSize      string
	AudioBitrate string
}

// SettingsFor maps a quality tier to encoder settings. Unknown tiers get
// the medium settings.
func SettingsFor(quality string) TierSettings {
	switch quality {
	case "low":
		return TierSettings{Preset: "fast", CRF: 28, MaxRate: "1000k", BufSize: "2000k", AudioBitrate: "96k"}
	case "high":
		return TierSettings{Preset: "slow", CRF: 18, MaxRate: "4000k", BufSize: "8000k", AudioBitrate: "192k"}
	default:
		return TierSettings{Preset: "medium", CRF: 23, MaxRate: "2000k", BufSize: "4000k", AudioBitrate: "128k"}
	}
}

// Encoder performs the final quality-tier encode.
type Encoder struct {
	ffmpeg   Runner
	tempDir  string
	settings TierSettings
}

// NewEncoder wires an encoder for the configured tier.
func NewEncoder(ffmpeg Runner, cfg *models.Config) *Encoder {
	return &Encoder{
		ffmpeg:   ffmpeg,
		tempDir:  cfg.Video.TempDir,
		settings: SettingsFor(cfg.Video.Quality),
	}
}

// Optimize re-encodes for delivery. Best-effort: on failure the input
// artifact ships as-is.
func (e *Encoder) Optimize(ctx context.Context, taskID, in string) string {
	out := filepath.Join(e.tempDir, fmt.Sprintf("%s_final.mp4", taskID))
	s := e.settings

	err := e.ffmpeg.Run(ctx,
		"-i", in,
		"-c:v", "libx264",
		"-preset", s.Preset,
		"-crf", fmt.Sprintf("%d", s.CRF),
		"-maxrate", s.MaxRate,
		"-bufsize", s.BufSize,
		"-c:a", "aac",
		"-b:a", s.AudioBitrate,
		"-ar", "44100",
		"-ac", "2",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	)
	if err != nil {
		log.Printf("Warning: final encode failed, shipping unoptimized video: %v", err)
		return in
	}
	return out
}
