package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"novel2video/models"
)

// Muxer attaches narration audio and burns subtitles. Both operations are
// best-effort: on failure the previous artifact ships unchanged.
type Muxer struct {
	ffmpeg  Runner
	tempDir string
}

// NewMuxer wires a muxer.
func NewMuxer(ffmpeg Runner, cfg *models.Config) *Muxer {
	return &Muxer{ffmpeg: ffmpeg, tempDir: cfg.Video.TempDir}
}

// AddNarration muxes the audio track onto the video, trimming to the
// shorter stream.
func (m *Muxer) AddNarration(ctx context.Context, taskID, videoPath, audioPath string) string {
	if audioPath == "" {
		return videoPath
	}
	out := filepath.Join(m.tempDir, fmt.Sprintf("%s_narrated.mp4", taskID))

	err := m.ffmpeg.Run(ctx,
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		out,
	)
	if err != nil {
		log.Printf("Warning: narration mux failed, shipping silent video: %v", err)
		return videoPath
	}
	return out
}

// BurnSubtitles renders the SRT file into the frames.
func (m *Muxer) BurnSubtitles(ctx context.Context, taskID, videoPath, srtPath string) string {
	if srtPath == "" {
		return videoPath
	}
	out := filepath.Join(m.tempDir, fmt.Sprintf("%s_subtitled.mp4", taskID))

	err := m.ffmpeg.Run(ctx,
		"-i", videoPath,
		"-vf", "subtitles="+escapeFilterPath(srtPath),
		"-c:a", "copy",
		out,
	)
	if err != nil {
		log.Printf("Warning: subtitle burn failed, shipping without captions: %v", err)
		return videoPath
	}
	return out
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter argument.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	return p
}
