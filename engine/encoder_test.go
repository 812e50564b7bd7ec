package engine

import (
	"context"
	"strings"
	"testing"
)

func TestSettingsForTiers(t *testing.T) {
	tests := []struct {
		quality string
		want    TierSettings
	}{
		{"low", TierSettings{Preset: "fast", CRF: 28, MaxRate: "1000k", BufSize: "2000k", AudioBitrate: "96k"}},
		{"medium", TierSettings{Preset: "medium", CRF: 23, MaxRate: "2000k", BufSize: "4000k", AudioBitrate: "128k"}},
		{"high", TierSettings{Preset: "slow", CRF: 18, MaxRate: "4000k", BufSize: "8000k", AudioBitrate: "192k"}},
		{"ultra", TierSettings{Preset: "medium", CRF: 23, MaxRate: "2000k", BufSize: "4000k", AudioBitrate: "128k"}},
	}
	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			if got := SettingsFor(tt.quality); got != tt.want {
				t.Errorf("SettingsFor(%s) = %+v, want %+v", tt.quality, got, tt.want)
			}
		})
	}
}

func TestOptimizeAppliesTierSettings(t *testing.T) {
	runner := &fakeRunner{}
	cfg := testEngineConfig(t)
	cfg.Video.Quality = "high"
	e := NewEncoder(runner, cfg)

	out := e.Optimize(context.Background(), "t1", "/tmp/in.mp4")
	if !strings.HasSuffix(out, "t1_final.mp4") {
		t.Errorf("unexpected output path %s", out)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("got %d ffmpeg calls, want 1", len(runner.calls))
	}
	args := runner.calls[0]
	for _, want := range []string{"-crf", "18", "-preset", "slow", "-movflags", "+faststart"} {
		if !argsContain(args, want) {
			t.Errorf("missing %s in encode args: %v", want, args)
		}
	}
}

func TestOptimizeShipsInputOnFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "-crf"}
	e := NewEncoder(runner, testEngineConfig(t))

	if out := e.Optimize(context.Background(), "t1", "/tmp/in.mp4"); out != "/tmp/in.mp4" {
		t.Errorf("failed encode should return the input path, got %s", out)
	}
}
