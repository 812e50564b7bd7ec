package models

import (
	"strings"
	"time"
)

// Task statuses persisted to the store.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Asset kinds produced by the generators.
const (
	KindImage  = "image"
	KindVideo  = "video"
	KindSpeech = "speech"
)

// Shot is one planned unit of the final video. Dynamic shots become
// generated motion clips; static shots become Ken Burns image segments.
type Shot struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Narration   string  `json:"narration"`
	Dynamic     bool    `json:"dynamic"`
	Duration    float64 `json:"duration"` // seconds, filled by the planner
}

// GenerationRequest is what a single generator call works from.
type GenerationRequest struct {
	TaskID      string
	Index       int
	Description string
	Text        string  // narration text, speech only
	ImagePath   string  // source frame, video clips only
	Duration    float64 // requested seconds, video/speech only
}

// GeneratedAsset is the tagged outcome of one generation. Generators never
// fail: when the provider or validation gives up, Fallback is true and Path
// points at a locally synthesized stand-in.
type GeneratedAsset struct {
	Kind     string
	Index    int
	Path     string
	Duration float64
	Cost     float64
	Fallback bool
	Elapsed  time.Duration
}

// Segment is a finished per-shot video piece, ready for transitions.
type Segment struct {
	Index    int
	Path     string
	Duration float64
	Fallback bool
}

// SubtitleCue is one timed caption. Start/End are seconds from video start.
type SubtitleCue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// MediaInfo is what ffprobe reports about a finished file.
type MediaInfo struct {
	Duration   float64
	Width      int
	Height     int
	Size       int64
	SampleRate int
}

// ValidationReport is the outcome of final output validation.
type ValidationReport struct {
	OK      bool
	Reasons []string
	Info    MediaInfo
}

// TaskRequest is a submitted job: a title, full narration and a planned
// shot list. Shot planning itself happens upstream of this module.
type TaskRequest struct {
	Title          string  `json:"title"`
	Narration      string  `json:"narration"`
	Shots          []Shot  `json:"shots"`
	TargetDuration float64 `json:"target_duration"`
	Quality        string  `json:"quality,omitempty"`
}

// NarrationText returns the narration to synthesize. When the task-level
// field is empty it is assembled from the per-shot narration lines.
func (r TaskRequest) NarrationText() string {
	if r.Narration != "" {
		return r.Narration
	}
	var parts []string
	for _, s := range r.Shots {
		if s.Narration != "" {
			parts = append(parts, s.Narration)
		}
	}
	return strings.Join(parts, " ")
}

// TaskResult summarizes a finished pipeline run.
type TaskResult struct {
	TaskID        string        `json:"task_id"`
	Status        string        `json:"status"`
	OutputPath    string        `json:"output_path,omitempty"`
	Duration      float64       `json:"duration"`
	TotalCost     float64       `json:"total_cost"`
	FallbackCount int           `json:"fallback_count"`
	Elapsed       time.Duration `json:"elapsed"`
	Error         string        `json:"error,omitempty"`
}
