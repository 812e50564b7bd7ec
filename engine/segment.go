// Package engine assembles generated assets into a finished video.
package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"novel2video/models"
)

// Runner is the subset of the ffmpeg process runner the engine needs.
type Runner interface {
	Run(ctx context.Context, args ...string) error
	Duration(ctx context.Context, path string) (float64, error)
	Probe(ctx context.Context, path string) (models.MediaInfo, error)
}

// MotionEffect is the Ken Burns preset applied to a still image segment.
type MotionEffect int

const (
	ZoomIn MotionEffect = iota
	ZoomOut
	PanLeft
	PanRight
)

func (e MotionEffect) String() string {
	switch e {
	case ZoomIn:
		return "zoom in"
	case ZoomOut:
		return "zoom out"
	case PanLeft:
		return "pan left"
	case PanRight:
		return "pan right"
	default:
		return "zoom"
	}
}

// MotionFor picks the preset for a segment position. The cycle is fixed so
// re-running a task reproduces the same video.
func MotionFor(index int) MotionEffect {
	return MotionEffect(index % 4)
}

// SegmentAssembler turns one asset into one normalized video segment.
// It never fails: broken inputs become flat placeholder segments.
type SegmentAssembler struct {
	ffmpeg  Runner
	tempDir string
	width   int
	height  int
	fps     int
}

// NewSegmentAssembler wires an assembler for the configured quality tier.
func NewSegmentAssembler(ffmpeg Runner, cfg *models.Config) *SegmentAssembler {
	w, h, _ := models.ResolutionFor(cfg.Video.Quality)
	return &SegmentAssembler{
		ffmpeg:  ffmpeg,
		tempDir: cfg.Video.TempDir,
		width:   w,
		height:  h,
		fps:     cfg.Video.FPS,
	}
}

// Build renders the segment for one shot. Video assets are normalized to
// the output format; image assets get a deterministic motion effect.
func (sa *SegmentAssembler) Build(ctx context.Context, taskID string, asset models.GeneratedAsset, duration float64, index int) models.Segment {
	out := filepath.Join(sa.tempDir, fmt.Sprintf("%s_segment_%d.mp4", taskID, index))

	seg := models.Segment{
		Index:    index,
		Path:     out,
		Duration: duration,
		Fallback: asset.Fallback,
	}

	var err error
	switch asset.Kind {
	case models.KindVideo:
		err = sa.normalizeClip(ctx, asset.Path, duration, out)
	default:
		err = sa.motionSegment(ctx, asset.Path, duration, index, out)
	}

	if err != nil {
		log.Printf("Warning: segment %d assembly failed, using placeholder: %v", index, err)
		if err := sa.placeholder(ctx, duration, out); err != nil {
			log.Printf("Warning: placeholder segment %d failed: %v", index, err)
		}
		seg.Fallback = true
	}

	return seg
}

// normalizeClip rescales a generated clip to the output geometry and trims
// it to the allocated duration.
func (sa *SegmentAssembler) normalizeClip(ctx context.Context, in string, duration float64, out string) error {
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		sa.width, sa.height, sa.width, sa.height)
	return sa.ffmpeg.Run(ctx,
		"-i", in,
		"-t", fmt.Sprintf("%.2f", duration),
		"-vf", scale,
		"-r", fmt.Sprintf("%d", sa.fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	)
}

// motionSegment animates a still image with the preset for its position.
func (sa *SegmentAssembler) motionSegment(ctx context.Context, imagePath string, duration float64, index int, out string) error {
	filter := sa.motionFilter(MotionFor(index), duration)
	return sa.ffmpeg.Run(ctx,
		"-loop", "1",
		"-i", imagePath,
		"-t", fmt.Sprintf("%.2f", duration),
		"-vf", filter,
		"-r", fmt.Sprintf("%d", sa.fps),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	)
}

// motionFilter builds the zoompan expression for an effect. Images are
// prescaled 2x so subpixel panning stays smooth.
func (sa *SegmentAssembler) motionFilter(effect MotionEffect, duration float64) string {
	totalFrames := int(duration * float64(sa.fps))
	if totalFrames < 1 {
		totalFrames = 1
	}
	scaledWidth := sa.width * 2
	scaledHeight := sa.height * 2

	switch effect {
	case ZoomOut:
		return fmt.Sprintf("scale=%d:%d,zoompan=z='max(1.2-%.6f*on,1.0)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d",
			scaledWidth, scaledHeight,
			0.2/float64(totalFrames), totalFrames, sa.width, sa.height)

	case PanLeft:
		return fmt.Sprintf("scale=%d:%d,zoompan=z=1.2:d=%d:x='(iw-iw/zoom)*(1-on/%d)':y='ih/2-(ih/zoom/2)':s=%dx%d",
			scaledWidth, scaledHeight,
			totalFrames, totalFrames, sa.width, sa.height)

	case PanRight:
		return fmt.Sprintf("scale=%d:%d,zoompan=z=1.2:d=%d:x='(iw-iw/zoom)*on/%d':y='ih/2-(ih/zoom/2)':s=%dx%d",
			scaledWidth, scaledHeight,
			totalFrames, totalFrames, sa.width, sa.height)

	default: // ZoomIn
		return fmt.Sprintf("scale=%d:%d,zoompan=z='min(1+%.6f*on,1.2)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d",
			scaledWidth, scaledHeight,
			0.2/float64(totalFrames), totalFrames, sa.width, sa.height)
	}
}

// placeholder renders a flat gray segment of the allocated duration.
func (sa *SegmentAssembler) placeholder(ctx context.Context, duration float64, out string) error {
	src := fmt.Sprintf("color=c=gray:s=%dx%d:d=%.2f:r=%d", sa.width, sa.height, duration, sa.fps)
	return sa.ffmpeg.Run(ctx,
		"-f", "lavfi",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		out,
	)
}
