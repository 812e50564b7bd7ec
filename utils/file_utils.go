package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	reg := regexp.MustCompile(`[<>:"/\\|?*]`)
	sanitized := reg.ReplaceAllString(filename, "_")

	sanitized = strings.Trim(sanitized, " .")

	if sanitized == "" {
		sanitized = "untitled"
	}

	return sanitized
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, 0755)
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file in bytes
func GetFileSize(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CreateConcatFile writes the list file consumed by FFmpeg's concat demuxer.
func CreateConcatFile(files []string, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, f := range files {
		// Escape single quotes in file paths
		escapedPath := strings.ReplaceAll(f, "'", "\\'")
		fmt.Fprintf(file, "file '%s'\n", escapedPath)
	}

	return nil
}

// MoveFile renames src to dst, copying across filesystems when a plain
// rename is rejected.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// TaskFiles returns every artifact in dir belonging to the given task.
func TaskFiles(dir, taskID string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, taskID+"_*"))
}

// CleanupTaskFiles removes the task's intermediate artifacts, logging
// nothing and skipping files it cannot delete.
func CleanupTaskFiles(dir, taskID string) int {
	files, err := TaskFiles(dir, taskID)
	if err != nil {
		return 0
	}

	removed := 0
	for _, f := range files {
		if err := os.Remove(f); err == nil {
			removed++
		}
	}
	return removed
}
