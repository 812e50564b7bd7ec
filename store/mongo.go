package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"novel2video/models"
)

// ErrNotFound is returned when a task id has no record.
var ErrNotFound = errors.New("task not found")

// Mongo stores records in MongoDB collections tasks, media_generations and
// cost_tracking.
type Mongo struct {
	client      *mongo.Client
	tasks       *mongo.Collection
	generations *mongo.Collection
	costs       *mongo.Collection
}

var _ Store = (*Mongo)(nil)

// NewMongo connects, pings and prepares collections and indexes.
func NewMongo(ctx context.Context, cfg models.MongoConfig) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	m := &Mongo{
		client:      client,
		tasks:       db.Collection("tasks"),
		generations: db.Collection("media_generations"),
		costs:       db.Collection("cost_tracking"),
	}

	if err := m.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	fmt.Println("✓ MongoDB connected successfully")
	return m, nil
}

func (m *Mongo) createIndexes(ctx context.Context) error {
	_, err := m.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"task_id": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = m.generations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"task_id": 1},
	})
	if err != nil {
		return err
	}
	_, err = m.costs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "service", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateTask(ctx context.Context, taskID string, req models.TaskRequest) {
	_, err := m.tasks.InsertOne(ctx, bson.M{
		"task_id":         taskID,
		"title":           req.Title,
		"status":          models.StatusPending,
		"shot_count":      len(req.Shots),
		"target_duration": req.TargetDuration,
		"created_at":      time.Now(),
	})
	if err != nil {
		log.Printf("Warning: failed to create task record: %v", err)
	}
}

func (m *Mongo) UpdateTaskStatus(ctx context.Context, taskID, status string) {
	m.updateTask(ctx, taskID, bson.M{"status": status})
}

func (m *Mongo) CompleteTask(ctx context.Context, taskID string, result models.TaskResult) {
	m.updateTask(ctx, taskID, bson.M{
		"status":         models.StatusCompleted,
		"output_path":    result.OutputPath,
		"duration":       result.Duration,
		"total_cost":     result.TotalCost,
		"fallback_count": result.FallbackCount,
		"completed_at":   time.Now(),
	})
}

func (m *Mongo) FailTask(ctx context.Context, taskID, errorMsg string) {
	m.updateTask(ctx, taskID, bson.M{
		"status":        models.StatusFailed,
		"error_message": errorMsg,
		"completed_at":  time.Now(),
	})
}

func (m *Mongo) updateTask(ctx context.Context, taskID string, updateData bson.M) {
	_, err := m.tasks.UpdateOne(ctx,
		bson.M{"task_id": taskID},
		bson.M{"$set": updateData},
	)
	if err != nil {
		log.Printf("Warning: failed to update task %s: %v", taskID, err)
	}
}

func (m *Mongo) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	var rec TaskRecord
	err := m.tasks.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (m *Mongo) SaveMediaGeneration(ctx context.Context, rec MediaGeneration) {
	doc := bson.M{
		"task_id":            rec.TaskID,
		"media_type":         rec.MediaType,
		"description":        rec.Description,
		"file_path":          rec.FilePath,
		"file_size":          rec.FileSize,
		"duration":           rec.Duration,
		"cost":               rec.Cost,
		"fallback":           rec.Fallback,
		"processing_seconds": rec.ProcessingSecs,
		"created_at":         time.Now(),
	}
	if _, err := m.generations.InsertOne(ctx, doc); err != nil {
		log.Printf("Warning: failed to save media generation record: %v", err)
	}
}

// TrackDailyCost upserts the (date, service) aggregate.
func (m *Mongo) TrackDailyCost(ctx context.Context, service string, cost float64) {
	date := time.Now().Format("2006-01-02")
	_, err := m.costs.UpdateOne(ctx,
		bson.M{"date": date, "service": service},
		bson.M{
			"$inc": bson.M{"total_cost": cost, "call_count": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		log.Printf("Warning: failed to track daily cost: %v", err)
	}
}

// TodayCosts returns today's per-service cost totals.
func (m *Mongo) TodayCosts(ctx context.Context) (map[string]float64, error) {
	date := time.Now().Format("2006-01-02")
	cursor, err := m.costs.Find(ctx, bson.M{"date": date})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	totals := make(map[string]float64)
	for cursor.Next(ctx) {
		var doc struct {
			Service   string  `bson:"service"`
			TotalCost float64 `bson:"total_cost"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		totals[doc.Service] = doc.TotalCost
	}
	return totals, cursor.Err()
}
