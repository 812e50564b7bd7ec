// Package store persists task, generation and cost records. It is a write
// sink: the pipeline never blocks on it and store failures never fail a
// task.
package store

import (
	"context"

	"novel2video/models"
)

// Store records pipeline progress. Implementations log and continue on
// write errors.
type Store interface {
	CreateTask(ctx context.Context, taskID string, req models.TaskRequest)
	UpdateTaskStatus(ctx context.Context, taskID, status string)
	CompleteTask(ctx context.Context, taskID string, result models.TaskResult)
	FailTask(ctx context.Context, taskID, errorMsg string)
	GetTask(ctx context.Context, taskID string) (*TaskRecord, error)
	SaveMediaGeneration(ctx context.Context, rec MediaGeneration)
	TrackDailyCost(ctx context.Context, service string, cost float64)
	TodayCosts(ctx context.Context) (map[string]float64, error)
}

// TaskRecord is the stored view of a task.
type TaskRecord struct {
	TaskID        string  `bson:"task_id" json:"task_id"`
	Title         string  `bson:"title" json:"title"`
	Status        string  `bson:"status" json:"status"`
	OutputPath    string  `bson:"output_path,omitempty" json:"output_path,omitempty"`
	Duration      float64 `bson:"duration,omitempty" json:"duration,omitempty"`
	TotalCost     float64 `bson:"total_cost,omitempty" json:"total_cost,omitempty"`
	FallbackCount int     `bson:"fallback_count,omitempty" json:"fallback_count,omitempty"`
	ErrorMessage  string  `bson:"error_message,omitempty" json:"error_message,omitempty"`
}

// MediaGeneration is one generated asset's audit record.
type MediaGeneration struct {
	TaskID         string  `bson:"task_id"`
	MediaType      string  `bson:"media_type"`
	Description    string  `bson:"description"`
	FilePath       string  `bson:"file_path"`
	FileSize       int64   `bson:"file_size"`
	Duration       float64 `bson:"duration"`
	Cost           float64 `bson:"cost"`
	Fallback       bool    `bson:"fallback"`
	ProcessingSecs float64 `bson:"processing_seconds"`
}

// Discard is the sink used when no database is configured.
type Discard struct{}

var _ Store = Discard{}

func (Discard) CreateTask(context.Context, string, models.TaskRequest)     {}
func (Discard) UpdateTaskStatus(context.Context, string, string)           {}
func (Discard) CompleteTask(context.Context, string, models.TaskResult)    {}
func (Discard) FailTask(context.Context, string, string)                   {}
func (Discard) SaveMediaGeneration(context.Context, MediaGeneration)       {}
func (Discard) TrackDailyCost(context.Context, string, float64)            {}
func (Discard) GetTask(context.Context, string) (*TaskRecord, error) {
	return nil, ErrNotFound
}
func (Discard) TodayCosts(context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}
