package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"novel2video/models"
	"novel2video/utils"
)

// Crossfade effects applied round-robin between consecutive segments.
var transitionEffects = []string{"fade", "dissolve", "wipeleft", "wiperight"}

// xfadeNode is one typed crossfade in the filter graph. Offsets are
// absolute positions on the output timeline.
type xfadeNode struct {
	effect   string
	duration float64
	offset   float64
}

// TransitionPlan is the typed filter graph for a merge. It is only turned
// into filter syntax at the process boundary.
type TransitionPlan struct {
	nodes []xfadeNode
}

// PlanTransitions builds the crossfade chain for segments of the given
// durations. Each crossfade consumes `seconds` from the running total, so
// offsets shrink accordingly.
func PlanTransitions(durations []float64, seconds float64) TransitionPlan {
	var plan TransitionPlan
	if len(durations) < 2 {
		return plan
	}

	elapsed := 0.0
	for i := 0; i < len(durations)-1; i++ {
		elapsed += durations[i]
		offset := elapsed - float64(i+1)*seconds
		if offset < 0 {
			offset = 0
		}
		plan.nodes = append(plan.nodes, xfadeNode{
			effect:   transitionEffects[i%len(transitionEffects)],
			duration: seconds,
			offset:   offset,
		})
	}
	return plan
}

// Empty reports whether the plan has any crossfades.
func (p TransitionPlan) Empty() bool {
	return len(p.nodes) == 0
}

// FilterComplex serializes the graph for -filter_complex. The last chain
// label is always [final].
func (p TransitionPlan) FilterComplex() string {
	var b strings.Builder
	prev := "[0]"
	for i, n := range p.nodes {
		label := fmt.Sprintf("[v%d]", i+1)
		if i == len(p.nodes)-1 {
			label = "[final]"
		}
		if i > 0 {
			b.WriteString(";")
		}
		b.WriteString(fmt.Sprintf("%s[%d]xfade=transition=%s:duration=%.2f:offset=%.2f%s",
			prev, i+1, n.effect, n.duration, n.offset, label))
		prev = label
	}
	return b.String()
}

// TransitionCompositor merges segments into one continuous video. Crossfade
// failure degrades to a plain concat; only a concat failure is an error.
type TransitionCompositor struct {
	ffmpeg  Runner
	tempDir string
	enabled bool
	seconds float64
}

// NewTransitionCompositor wires a compositor from video config.
func NewTransitionCompositor(ffmpeg Runner, cfg *models.Config) *TransitionCompositor {
	return &TransitionCompositor{
		ffmpeg:  ffmpeg,
		tempDir: cfg.Video.TempDir,
		enabled: cfg.Video.Transitions,
		seconds: cfg.Video.TransitionSeconds,
	}
}

// Merge joins the segments in order. A single segment passes through
// untouched; an empty slice is an error.
func (tc *TransitionCompositor) Merge(ctx context.Context, taskID string, segments []models.Segment) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("no segments to merge")
	}
	if len(segments) == 1 {
		return segments[0].Path, nil
	}

	out := filepath.Join(tc.tempDir, fmt.Sprintf("%s_merged.mp4", taskID))

	if tc.enabled {
		if err := tc.crossfade(ctx, segments, out); err == nil {
			return out, nil
		} else {
			log.Printf("Warning: crossfade merge failed, falling back to concat: %v", err)
		}
	}

	if err := tc.concat(ctx, taskID, segments, out); err != nil {
		return "", fmt.Errorf("concat merge: %w", err)
	}
	return out, nil
}

func (tc *TransitionCompositor) crossfade(ctx context.Context, segments []models.Segment, out string) error {
	durations := make([]float64, len(segments))
	for i, s := range segments {
		durations[i] = s.Duration
	}
	plan := PlanTransitions(durations, tc.seconds)
	if plan.Empty() {
		return fmt.Errorf("nothing to crossfade")
	}

	args := make([]string, 0, len(segments)*2+8)
	for _, s := range segments {
		args = append(args, "-i", s.Path)
	}
	args = append(args,
		"-filter_complex", plan.FilterComplex(),
		"-map", "[final]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		out,
	)
	return tc.ffmpeg.Run(ctx, args...)
}

func (tc *TransitionCompositor) concat(ctx context.Context, taskID string, segments []models.Segment, out string) error {
	paths := make([]string, len(segments))
	for i, s := range segments {
		paths[i] = s.Path
	}

	listPath := filepath.Join(tc.tempDir, fmt.Sprintf("%s_concat.txt", taskID))
	if err := utils.CreateConcatFile(paths, listPath); err != nil {
		return err
	}

	return tc.ffmpeg.Run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		out,
	)
}
