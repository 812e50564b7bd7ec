package engine

import (
	"context"
	"fmt"
	"log"
	"os"

	"novel2video/models"
)

// FinalValidator checks that the delivered file is a plausible finished
// video rather than a truncated or empty artifact.
type FinalValidator struct {
	ffmpeg Runner
	rules  models.ValidationConfig
}

// NewFinalValidator wires a validator.
func NewFinalValidator(ffmpeg Runner, cfg *models.Config) *FinalValidator {
	return &FinalValidator{ffmpeg: ffmpeg, rules: cfg.Validation}
}

// Validate probes the output and applies the duration, size and geometry
// floors. minTarget is the task's target duration; when zero the configured
// floor applies. When probing itself fails only the size floor is applied.
func (v *FinalValidator) Validate(ctx context.Context, path string, minTarget float64) models.ValidationReport {
	report := models.ValidationReport{OK: true}

	info, err := v.ffmpeg.Probe(ctx, path)
	if err != nil {
		log.Printf("Warning: output probe failed, falling back to size check: %v", err)
		return v.sizeOnly(path)
	}
	report.Info = info

	if minTarget <= 0 {
		minTarget = v.rules.FinalMinSeconds
	}
	minDuration := v.rules.DurationRatio * minTarget
	if info.Duration < minDuration {
		report.OK = false
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("duration %.1fs below %.1fs", info.Duration, minDuration))
	}
	if info.Size <= v.rules.FinalMinBytes {
		report.OK = false
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("file size %d below %d bytes", info.Size, v.rules.FinalMinBytes))
	}
	if info.Width <= 0 || info.Height <= 0 {
		report.OK = false
		report.Reasons = append(report.Reasons, "no video stream dimensions")
	}

	return report
}

func (v *FinalValidator) sizeOnly(path string) models.ValidationReport {
	report := models.ValidationReport{OK: true}

	st, err := os.Stat(path)
	if err != nil {
		report.OK = false
		report.Reasons = append(report.Reasons, "output file missing")
		return report
	}
	report.Info.Size = st.Size()

	if st.Size() <= v.rules.FinalMinBytes {
		report.OK = false
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("file size %d below %d bytes", st.Size(), v.rules.FinalMinBytes))
	}
	return report
}
