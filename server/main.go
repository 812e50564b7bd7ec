package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"novel2video/generator"
	"novel2video/models"
	"novel2video/pipeline"
	"novel2video/store"
	"novel2video/utils"
)

type app struct {
	cfg      *models.Config
	store    store.Store
	pipeline *pipeline.Pipeline
}

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := models.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.ValidateInstalled(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := utils.EnsureDirectoryExists(cfg.Video.OutputDir); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if err := utils.EnsureDirectoryExists(cfg.Video.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}

	var st store.Store = store.Discard{}
	if cfg.Mongo.URI != "" {
		m, err := store.NewMongo(context.Background(), cfg.Mongo)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer m.Close(context.Background())
		st = m
	} else {
		log.Printf("Warning: no Mongo URI configured, task records will not be persisted")
	}

	a := &app{
		cfg:      cfg,
		store:    st,
		pipeline: pipeline.New(cfg, st, generator.NewHTTPProvider(cfg.Providers), utils.NewFFmpeg(0)),
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	r.GET("/health", a.healthCheck)
	r.POST("/api/tasks", a.submitTask)
	r.GET("/api/tasks/:taskId", a.getTask)
	r.GET("/api/costs/today", a.todayCosts)
	r.Static("/videos", cfg.Video.OutputDir)

	fmt.Println("🎬 novel2video API server starting...")
	fmt.Println("📚 Endpoints:")
	fmt.Println("   POST /api/tasks - Submit a generation task")
	fmt.Println("   GET  /api/tasks/{taskId} - Check task status")
	fmt.Println("   GET  /api/costs/today - Today's generation costs")
	fmt.Println("   GET  /videos/{filename} - Download finished videos")
	fmt.Println("   GET  /health - Health check")

	log.Printf("Server listening on port %s", cfg.Server.Port)
	log.Fatal(r.Run(":" + cfg.Server.Port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func (a *app) healthCheck(c *gin.Context) {
	ffmpegAvailable := utils.ValidateInstalled() == nil
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now().Format(time.RFC3339),
		"ffmpeg_available": ffmpegAvailable,
	})
}

func (a *app) submitTask(c *gin.Context) {
	var req models.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := validateTaskRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID := uuid.New().String()

	// The task outlives the HTTP request.
	go a.pipeline.RunTask(context.Background(), taskID, req)

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
		"status":  models.StatusPending,
	})
}

func (a *app) getTask(c *gin.Context) {
	taskID := c.Param("taskId")

	rec, err := a.store.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (a *app) todayCosts(c *gin.Context) {
	totals, err := a.store.TodayCosts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	grand := 0.0
	for _, v := range totals {
		grand += v
	}
	c.JSON(http.StatusOK, gin.H{
		"date":     time.Now().Format("2006-01-02"),
		"services": totals,
		"total":    grand,
	})
}

func validateTaskRequest(req *models.TaskRequest) error {
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(req.Shots) == 0 {
		return fmt.Errorf("at least one shot is required")
	}
	if req.TargetDuration < 0 {
		return fmt.Errorf("target_duration must not be negative")
	}
	for i, shot := range req.Shots {
		if shot.Description == "" {
			return fmt.Errorf("shot %d has no description", i)
		}
	}
	return nil
}
