package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"novel2video/models"
	"novel2video/utils"
)

// VideoEditor drives the whole assembly: segments, transitions, narration,
// subtitles, final encode, delivery and validation.
type VideoEditor struct {
	cfg         *models.Config
	segments    *SegmentAssembler
	subtitles   *SubtitleTimeline
	transitions *TransitionCompositor
	muxer       *Muxer
	encoder     *Encoder
	validator   *FinalValidator
}

// NewVideoEditor wires the assembly stages against one process runner.
func NewVideoEditor(ffmpeg Runner, cfg *models.Config) *VideoEditor {
	return &VideoEditor{
		cfg:         cfg,
		segments:    NewSegmentAssembler(ffmpeg, cfg),
		subtitles:   NewSubtitleTimeline(cfg.Subtitles),
		transitions: NewTransitionCompositor(ffmpeg, cfg),
		muxer:       NewMuxer(ffmpeg, cfg),
		encoder:     NewEncoder(ffmpeg, cfg),
		validator:   NewFinalValidator(ffmpeg, cfg),
	}
}

// Compose assembles one video from per-shot assets and a narration track.
// assets[i] must correspond to shots[i]. Returns the delivered path and the
// validation report; an error means not even a degraded video could be
// produced.
func (ve *VideoEditor) Compose(ctx context.Context, taskID, title string, shots []models.Shot, assets []models.GeneratedAsset, narrationAudio, narration string, targetDuration float64) (string, models.ValidationReport, error) {
	var report models.ValidationReport

	if len(shots) == 0 || len(shots) != len(assets) {
		return "", report, fmt.Errorf("shot/asset mismatch: %d shots, %d assets", len(shots), len(assets))
	}

	log.Printf("Assembling %d segments for task %s", len(shots), taskID)
	segments := make([]models.Segment, len(shots))
	for i, shot := range shots {
		segments[i] = ve.segments.Build(ctx, taskID, assets[i], shot.Duration, i)
	}

	merged, err := ve.transitions.Merge(ctx, taskID, segments)
	if err != nil {
		return "", report, err
	}

	current := ve.muxer.AddNarration(ctx, taskID, merged, narrationAudio)

	if ve.cfg.Subtitles.Enabled && narration != "" {
		total, err := ve.totalDuration(ctx, current, segments)
		if err != nil {
			log.Printf("Warning: cannot time subtitles: %v", err)
		} else if cues := ve.subtitles.Build(narration, total); len(cues) > 0 {
			srtPath := filepath.Join(ve.cfg.Video.TempDir, fmt.Sprintf("%s_subtitles.srt", taskID))
			if err := os.WriteFile(srtPath, []byte(ve.subtitles.SRT(cues)), 0644); err != nil {
				log.Printf("Warning: cannot write subtitle file: %v", err)
			} else {
				current = ve.muxer.BurnSubtitles(ctx, taskID, current, srtPath)
			}
		}
	}

	current = ve.encoder.Optimize(ctx, taskID, current)

	if err := utils.EnsureDirectoryExists(ve.cfg.Video.OutputDir); err != nil {
		return "", report, fmt.Errorf("create output directory: %w", err)
	}
	finalPath := filepath.Join(ve.cfg.Video.OutputDir,
		fmt.Sprintf("%s_%s.mp4", utils.SanitizeFilename(title), taskID))
	if err := utils.MoveFile(current, finalPath); err != nil {
		return "", report, fmt.Errorf("deliver output: %w", err)
	}

	report = ve.validator.Validate(ctx, finalPath, targetDuration)
	return finalPath, report, nil
}

// totalDuration prefers the probed duration of the current artifact and
// falls back to the summed segment durations.
func (ve *VideoEditor) totalDuration(ctx context.Context, path string, segments []models.Segment) (float64, error) {
	if d, err := ve.segments.ffmpeg.Duration(ctx, path); err == nil && d > 0 {
		return d, nil
	}
	sum := 0.0
	for _, s := range segments {
		sum += s.Duration
	}
	if sum <= 0 {
		return 0, fmt.Errorf("no usable duration")
	}
	return sum, nil
}
