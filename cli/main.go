package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"novel2video/generator"
	"novel2video/models"
	"novel2video/pipeline"
	"novel2video/store"
	"novel2video/utils"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	var (
		configPath string
		outDir     string
		quality    string
		batch      bool
	)

	root := &cobra.Command{
		Use:          "novel2video <script.json>",
		Short:        "Render a narrated video from a planned script",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], configPath, outDir, quality, batch)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().StringVar(&configPath, "config", "config.yaml", "Config file path")
	root.Flags().StringVar(&outDir, "out", "", "Output directory (overrides config)")
	root.Flags().StringVar(&quality, "quality", "", "Quality tier: low, medium or high")
	root.Flags().BoolVar(&batch, "batch", false, "Treat the argument as a directory of script files")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(input, configPath, outDir, quality string, batch bool) error {
	cfg, err := models.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if outDir != "" {
		cfg.Video.OutputDir = outDir
	}
	if quality != "" {
		cfg.Video.Quality = quality
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := utils.ValidateInstalled(); err != nil {
		return err
	}
	if err := utils.EnsureDirectoryExists(cfg.Video.TempDir); err != nil {
		return err
	}

	var st store.Store = store.Discard{}
	if cfg.Mongo.URI != "" {
		m, err := store.NewMongo(context.Background(), cfg.Mongo)
		if err != nil {
			return err
		}
		defer m.Close(context.Background())
		st = m
	}

	p := pipeline.New(cfg, st, generator.NewHTTPProvider(cfg.Providers), utils.NewFFmpeg(0))

	scripts, err := collectScripts(input, batch)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range scripts {
		req, err := loadScript(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			failed++
			continue
		}

		fmt.Printf("🎬 Rendering %q (%d shots)...\n", req.Title, len(req.Shots))
		result := p.Run(context.Background(), *req)
		if result.Status != models.StatusCompleted {
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", path, result.Error)
			failed++
			continue
		}
		fmt.Printf("✓ %s (%.1fs, $%.4f, %d fallbacks, took %s)\n",
			result.OutputPath, result.Duration, result.TotalCost,
			result.FallbackCount, result.Elapsed.Round(time.Second))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(scripts))
	}
	return nil
}

func collectScripts(input string, batch bool) ([]string, error) {
	if !batch {
		return []string{input}, nil
	}

	matches, err := filepath.Glob(filepath.Join(input, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no script files in %s", input)
	}
	sort.Strings(matches)
	return matches, nil
}

func loadScript(path string) (*models.TaskRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var req models.TaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	if req.Title == "" {
		req.Title = utils.SanitizeFilename(filepath.Base(path))
	}
	if len(req.Shots) == 0 {
		return nil, fmt.Errorf("script has no shots")
	}
	return &req, nil
}
