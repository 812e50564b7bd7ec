package engine

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"novel2video/models"
)

// fakeRunner records ffmpeg invocations and fails any call whose args
// contain a configured marker.
type fakeRunner struct {
	calls    [][]string
	failOn   string
	duration float64
	info     models.MediaInfo
	probeErr error
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) error {
	f.calls = append(f.calls, args)
	if f.failOn != "" {
		for _, a := range args {
			if strings.Contains(a, f.failOn) {
				return fmt.Errorf("simulated failure on %s", f.failOn)
			}
		}
	}
	return nil
}

func (f *fakeRunner) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func (f *fakeRunner) Probe(ctx context.Context, path string) (models.MediaInfo, error) {
	if f.probeErr != nil {
		return models.MediaInfo{}, f.probeErr
	}
	return f.info, nil
}

func testEngineConfig(t *testing.T) *models.Config {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.Video.TempDir = t.TempDir()
	cfg.Video.OutputDir = t.TempDir()
	return cfg
}

func TestPlanTransitionsOffsets(t *testing.T) {
	plan := PlanTransitions([]float64{5, 4, 6}, 0.5)

	if len(plan.nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(plan.nodes))
	}
	// First crossfade starts 0.5s before the first segment ends, the
	// second loses another 0.5s to the first overlap.
	wantOffsets := []float64{4.5, 8.0}
	wantEffects := []string{"fade", "dissolve"}
	for i, n := range plan.nodes {
		if math.Abs(n.offset-wantOffsets[i]) > 1e-9 {
			t.Errorf("node %d offset %.2f, want %.2f", i, n.offset, wantOffsets[i])
		}
		if n.effect != wantEffects[i] {
			t.Errorf("node %d effect %s, want %s", i, n.effect, wantEffects[i])
		}
	}
}

func TestPlanTransitionsEffectCycle(t *testing.T) {
	plan := PlanTransitions([]float64{5, 5, 5, 5, 5, 5}, 0.5)

	want := []string{"fade", "dissolve", "wipeleft", "wiperight", "fade"}
	if len(plan.nodes) != len(want) {
		t.Fatalf("got %d nodes, want %d", len(plan.nodes), len(want))
	}
	for i, n := range plan.nodes {
		if n.effect != want[i] {
			t.Errorf("node %d effect %s, want %s", i, n.effect, want[i])
		}
	}
}

func TestPlanTransitionsSingleSegment(t *testing.T) {
	if plan := PlanTransitions([]float64{5}, 0.5); !plan.Empty() {
		t.Error("single segment should have an empty plan")
	}
	if plan := PlanTransitions(nil, 0.5); !plan.Empty() {
		t.Error("no segments should have an empty plan")
	}
}

func TestPlanTransitionsOffsetNeverNegative(t *testing.T) {
	plan := PlanTransitions([]float64{0.2, 0.2, 0.2}, 0.5)
	for i, n := range plan.nodes {
		if n.offset < 0 {
			t.Errorf("node %d offset %.2f is negative", i, n.offset)
		}
	}
}

func TestFilterComplexSerialization(t *testing.T) {
	plan := PlanTransitions([]float64{5, 4, 6}, 0.5)
	got := plan.FilterComplex()

	want := "[0][1]xfade=transition=fade:duration=0.50:offset=4.50[v1];" +
		"[v1][2]xfade=transition=dissolve:duration=0.50:offset=8.00[final]"
	if got != want {
		t.Errorf("filter graph mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestFilterComplexTwoSegments(t *testing.T) {
	plan := PlanTransitions([]float64{3, 3}, 0.5)
	got := plan.FilterComplex()

	if !strings.HasSuffix(got, "[final]") {
		t.Errorf("graph must end with [final]: %s", got)
	}
	if strings.Contains(got, ";") {
		t.Errorf("single crossfade must not contain chain separators: %s", got)
	}
}

func TestMergeEmptyFails(t *testing.T) {
	tc := NewTransitionCompositor(&fakeRunner{}, testEngineConfig(t))
	if _, err := tc.Merge(context.Background(), "t1", nil); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}

func TestMergeSingleSegmentPassesThrough(t *testing.T) {
	runner := &fakeRunner{}
	tc := NewTransitionCompositor(runner, testEngineConfig(t))

	segments := []models.Segment{{Index: 0, Path: "/tmp/seg0.mp4", Duration: 5}}
	out, err := tc.Merge(context.Background(), "t1", segments)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if out != "/tmp/seg0.mp4" {
		t.Errorf("got %s, want the segment path untouched", out)
	}
	if len(runner.calls) != 0 {
		t.Errorf("single segment merged with %d ffmpeg calls, want 0", len(runner.calls))
	}
}

func TestMergeUsesCrossfade(t *testing.T) {
	runner := &fakeRunner{}
	cfg := testEngineConfig(t)
	tc := NewTransitionCompositor(runner, cfg)

	segments := []models.Segment{
		{Index: 0, Path: filepath.Join(cfg.Video.TempDir, "s0.mp4"), Duration: 5},
		{Index: 1, Path: filepath.Join(cfg.Video.TempDir, "s1.mp4"), Duration: 5},
	}
	out, err := tc.Merge(context.Background(), "t1", segments)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !strings.HasSuffix(out, "t1_merged.mp4") {
		t.Errorf("unexpected output path %s", out)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("got %d ffmpeg calls, want 1", len(runner.calls))
	}
	if !argsContain(runner.calls[0], "-filter_complex") {
		t.Errorf("merge did not use -filter_complex: %v", runner.calls[0])
	}
}

func TestMergeDegradesToConcat(t *testing.T) {
	runner := &fakeRunner{failOn: "-filter_complex"}
	cfg := testEngineConfig(t)
	tc := NewTransitionCompositor(runner, cfg)

	segments := []models.Segment{
		{Index: 0, Path: filepath.Join(cfg.Video.TempDir, "s0.mp4"), Duration: 5},
		{Index: 1, Path: filepath.Join(cfg.Video.TempDir, "s1.mp4"), Duration: 5},
	}
	out, err := tc.Merge(context.Background(), "t1", segments)
	if err != nil {
		t.Fatalf("Merge should fall back to concat, got: %v", err)
	}
	if !strings.HasSuffix(out, "t1_merged.mp4") {
		t.Errorf("unexpected output path %s", out)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("got %d ffmpeg calls, want crossfade attempt plus concat", len(runner.calls))
	}
	last := runner.calls[1]
	if !argsContain(last, "concat") {
		t.Errorf("fallback call is not a concat: %v", last)
	}
}

func TestMergeDisabledTransitionsGoStraightToConcat(t *testing.T) {
	runner := &fakeRunner{}
	cfg := testEngineConfig(t)
	cfg.Video.Transitions = false
	tc := NewTransitionCompositor(runner, cfg)

	segments := []models.Segment{
		{Index: 0, Path: filepath.Join(cfg.Video.TempDir, "s0.mp4"), Duration: 5},
		{Index: 1, Path: filepath.Join(cfg.Video.TempDir, "s1.mp4"), Duration: 5},
	}
	if _, err := tc.Merge(context.Background(), "t1", segments); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("got %d ffmpeg calls, want 1", len(runner.calls))
	}
	if argsContain(runner.calls[0], "-filter_complex") {
		t.Errorf("disabled transitions still built a filter graph: %v", runner.calls[0])
	}
}

func argsContain(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
