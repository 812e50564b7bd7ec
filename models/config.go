package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole pipeline configuration, loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Providers   ProviderConfig    `yaml:"providers"`
	RateLimits  RateLimitConfig   `yaml:"rate_limits"`
	Retry       RetryConfig       `yaml:"retry"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Planning    PlanningConfig    `yaml:"shot_planning"`
	Video       VideoConfig       `yaml:"video"`
	Subtitles   SubtitleConfig    `yaml:"subtitles"`
	Validation  ValidationConfig  `yaml:"validation"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type ProviderConfig struct {
	ImageURL       string `yaml:"image_url"`
	VideoURL       string `yaml:"video_url"`
	SpeechURL      string `yaml:"speech_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RequestTimeout is the per-call provider timeout.
func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type RateLimitConfig struct {
	Default  int            `yaml:"default"` // per minute, unknown services
	Services map[string]int `yaml:"services"`
}

type RetryConfig struct {
	BaseDelaySeconds float64 `yaml:"base_delay_seconds"`
	MaxDelaySeconds  float64 `yaml:"max_delay_seconds"`
}

// BaseDelay is the first-attempt backoff delay.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds * float64(time.Second))
}

// MaxDelay caps the grown backoff delay.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds * float64(time.Second))
}

type ConcurrencyConfig struct {
	Images          int     `yaml:"images"`
	Videos          int     `yaml:"videos"`
	Speech          int     `yaml:"speech"`
	CoolDownSeconds float64 `yaml:"cool_down_seconds"` // pause between batches
}

// CoolDown is the pause between work batches.
func (c ConcurrencyConfig) CoolDown() time.Duration {
	return time.Duration(c.CoolDownSeconds * float64(time.Second))
}

type PlanningConfig struct {
	MinShotSeconds     float64 `yaml:"min_shot_seconds"`
	MaxShotSeconds     float64 `yaml:"max_shot_seconds"`
	DynamicShotSeconds float64 `yaml:"dynamic_shot_seconds"`
	DynamicShotCount   int     `yaml:"dynamic_shot_count"`
	RebalanceTolerance float64 `yaml:"rebalance_tolerance"`
}

type VideoConfig struct {
	Quality           string  `yaml:"quality"` // low, medium, high
	FPS               int     `yaml:"fps"`
	Transitions       bool    `yaml:"transitions"`
	TransitionSeconds float64 `yaml:"transition_seconds"`
	OutputDir         string  `yaml:"output_dir"`
	TempDir           string  `yaml:"temp_dir"`
}

type SubtitleConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MaxLineLength  int     `yaml:"max_line_length"`
	MaxSentenceLen int     `yaml:"max_sentence_length"`
	MinCueSeconds  float64 `yaml:"min_cue_seconds"`
	MaxCueSeconds  float64 `yaml:"max_cue_seconds"`
	FadeSeconds    float64 `yaml:"fade_seconds"`
}

type ValidationConfig struct {
	ImageMinBytes        int64   `yaml:"image_min_bytes"`
	ImageRelaxedMinBytes int64   `yaml:"image_relaxed_min_bytes"`
	ImageMinScale        float64 `yaml:"image_min_scale"`  // fraction of target resolution
	AspectTolerance      float64 `yaml:"aspect_tolerance"` // allowed aspect ratio drift
	DurationRatio        float64 `yaml:"duration_ratio"`   // min fraction of requested duration
	FinalMinSeconds      float64 `yaml:"final_min_seconds"`
	FinalMinBytes        int64   `yaml:"final_min_bytes"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8090"},
		Mongo:  MongoConfig{Database: "novel2video"},
		Providers: ProviderConfig{
			TimeoutSeconds: 120,
		},
		RateLimits: RateLimitConfig{
			Default: 60,
			Services: map[string]int{
				KindImage:  60,
				KindVideo:  20,
				KindSpeech: 40,
			},
		},
		Retry: RetryConfig{
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  30,
		},
		Concurrency: ConcurrencyConfig{
			Images:          3,
			Videos:          1,
			Speech:          2,
			CoolDownSeconds: 2,
		},
		Planning: PlanningConfig{
			MinShotSeconds:     3,
			MaxShotSeconds:     25,
			DynamicShotSeconds: 5,
			DynamicShotCount:   3,
			RebalanceTolerance: 5,
		},
		Video: VideoConfig{
			Quality:           "medium",
			FPS:               24,
			Transitions:       true,
			TransitionSeconds: 0.5,
			OutputDir:         "./output",
			TempDir:           "./temp",
		},
		Subtitles: SubtitleConfig{
			Enabled:        true,
			MaxLineLength:  15,
			MaxSentenceLen: 20,
			MinCueSeconds:  1,
			MaxCueSeconds:  5,
			FadeSeconds:    0.5,
		},
		Validation: ValidationConfig{
			ImageMinBytes:        20 * 1024,
			ImageRelaxedMinBytes: 10 * 1024,
			ImageMinScale:        0.7,
			AspectTolerance:      0.5,
			DurationRatio:        0.8,
			FinalMinSeconds:      120,
			FinalMinBytes:        1024 * 1024,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults and validates the
// result. A missing file yields pure defaults. MONGO_URI and MEDIA_API_KEY
// environment variables override their file counterparts.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if key := os.Getenv("MEDIA_API_KEY"); key != "" {
		cfg.Providers.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, _, ok := ResolutionFor(c.Video.Quality); !ok {
		return fmt.Errorf("unknown quality tier %q (want low, medium or high)", c.Video.Quality)
	}
	if c.Planning.MinShotSeconds > c.Planning.MaxShotSeconds {
		return fmt.Errorf("min_shot_seconds %.1f exceeds max_shot_seconds %.1f",
			c.Planning.MinShotSeconds, c.Planning.MaxShotSeconds)
	}
	if c.Concurrency.Images < 1 || c.Concurrency.Videos < 1 || c.Concurrency.Speech < 1 {
		return fmt.Errorf("concurrency caps must be at least 1")
	}
	if c.Subtitles.MinCueSeconds > c.Subtitles.MaxCueSeconds {
		return fmt.Errorf("min_cue_seconds %.1f exceeds max_cue_seconds %.1f",
			c.Subtitles.MinCueSeconds, c.Subtitles.MaxCueSeconds)
	}
	if c.RateLimits.Default < 1 {
		return fmt.Errorf("rate limit default must be at least 1")
	}
	return nil
}

// ResolutionFor maps a quality tier to the portrait output resolution.
func ResolutionFor(quality string) (width, height int, ok bool) {
	switch quality {
	case "low":
		return 480, 854, true
	case "medium":
		return 720, 1280, true
	case "high":
		return 1080, 1920, true
	}
	return 0, 0, false
}
