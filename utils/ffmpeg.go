package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"novel2video/models"
)

// FFmpeg runs ffmpeg and ffprobe as subprocesses with a shared timeout.
// The zero value is not usable; call NewFFmpeg.
type FFmpeg struct {
	BinPath   string
	ProbePath string
	Timeout   time.Duration
	Verbose   bool
}

// NewFFmpeg returns a runner using the ffmpeg/ffprobe binaries on PATH.
func NewFFmpeg(timeout time.Duration) *FFmpeg {
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	return &FFmpeg{BinPath: "ffmpeg", ProbePath: "ffprobe", Timeout: timeout}
}

// ValidateInstalled checks if FFmpeg and FFprobe are installed
func ValidateInstalled() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH. Please install FFmpeg")
	}

	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH. Please install FFmpeg")
	}

	return nil
}

// Run executes ffmpeg with the given arguments. On failure the captured
// output is folded into the returned error.
func (f *FFmpeg) Run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	if f.Verbose {
		log.Printf("ffmpeg %s", strings.Join(full, " "))
	}

	cmd := exec.CommandContext(ctx, f.BinPath, full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", f.Timeout)
		}
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, string(output))
	}
	return nil
}

// Duration returns the container duration of a media file in seconds.
func (f *FFmpeg) Duration(ctx context.Context, filePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ProbePath, "-v", "quiet", "-show_entries",
		"format=duration", "-of", "csv=p=0", filePath)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to get media duration: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe and reports its duration,
// dimensions, audio sample rate and size.
func (f *FFmpeg) Probe(ctx context.Context, filePath string) (models.MediaInfo, error) {
	var info models.MediaInfo

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ProbePath, "-v", "quiet",
		"-print_format", "json", "-show_format", "-show_streams", filePath)

	output, err := cmd.Output()
	if err != nil {
		return info, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return info, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	info.Size, _ = strconv.ParseInt(parsed.Format.Size, 10, 64)
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if info.SampleRate == 0 {
				info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			}
		}
	}

	if info.Size == 0 {
		if st, err := os.Stat(filePath); err == nil {
			info.Size = st.Size()
		}
	}

	return info, nil
}
