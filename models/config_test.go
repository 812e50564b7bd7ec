package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "8090" {
		t.Errorf("port %s, want default 8090", cfg.Server.Port)
	}
	if !cfg.Video.Transitions || !cfg.Subtitles.Enabled {
		t.Error("feature defaults should be enabled")
	}
	if got := cfg.RateLimits.Services[KindVideo]; got != 20 {
		t.Errorf("video rate limit %d, want 20", got)
	}
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
video:
  quality: high
  transitions: false
retry:
  base_delay_seconds: 2
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Video.Quality != "high" {
		t.Errorf("quality %s, want high", cfg.Video.Quality)
	}
	if cfg.Video.Transitions {
		t.Error("transitions should be disabled by the file")
	}
	if cfg.Retry.BaseDelay() != 2*time.Second {
		t.Errorf("base delay %v, want 2s", cfg.Retry.BaseDelay())
	}
	// Untouched sections keep their defaults.
	if cfg.Video.FPS != 24 {
		t.Errorf("fps %d, want default 24", cfg.Video.FPS)
	}
	if cfg.Subtitles.MaxLineLength != 15 {
		t.Errorf("max line length %d, want default 15", cfg.Subtitles.MaxLineLength)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://envhost:27017")
	t.Setenv("MEDIA_API_KEY", "env-key")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://envhost:27017" {
		t.Errorf("mongo uri %s not taken from environment", cfg.Mongo.URI)
	}
	if cfg.Providers.APIKey != "env-key" {
		t.Errorf("api key %s not taken from environment", cfg.Providers.APIKey)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("video: [broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"unknown quality", func(c *Config) { c.Video.Quality = "4k" }, false},
		{"inverted shot bounds", func(c *Config) { c.Planning.MinShotSeconds = 30 }, false},
		{"zero concurrency", func(c *Config) { c.Concurrency.Videos = 0 }, false},
		{"inverted cue bounds", func(c *Config) { c.Subtitles.MinCueSeconds = 10 }, false},
		{"zero rate limit", func(c *Config) { c.RateLimits.Default = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResolutionFor(t *testing.T) {
	tests := []struct {
		quality string
		w, h    int
		ok      bool
	}{
		{"low", 480, 854, true},
		{"medium", 720, 1280, true},
		{"high", 1080, 1920, true},
		{"ultra", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, ok := ResolutionFor(tt.quality)
		if w != tt.w || h != tt.h || ok != tt.ok {
			t.Errorf("ResolutionFor(%s) = %d, %d, %v", tt.quality, w, h, ok)
		}
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Providers.RequestTimeout() != 120*time.Second {
		t.Errorf("request timeout %v", cfg.Providers.RequestTimeout())
	}
	if cfg.Retry.MaxDelay() != 30*time.Second {
		t.Errorf("max delay %v", cfg.Retry.MaxDelay())
	}
	if cfg.Concurrency.CoolDown() != 2*time.Second {
		t.Errorf("cool down %v", cfg.Concurrency.CoolDown())
	}
}
