package deps

import (
	"strings"

	"deepshield/internal/config"
)

// AnalysisRequirements lists the binaries the configured analysis pipeline executes.
func AnalysisRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	var requirements []Requirement
	frames := cfg.Analysis.Frames
	if frames.Extractor == config.ExtractorFFmpeg {
		requirements = append(requirements,
			Requirement{
				Name:        "FFmpeg",
				Command:     ResolveBinary(frames.FFmpegBinary, "ffmpeg"),
				Description: "Required for frame extraction",
			},
			Requirement{
				Name:        "FFprobe",
				Command:     ResolveBinary(frames.FFprobeBinary, "ffprobe"),
				Description: "Required for reading video duration",
			},
		)
	}
	if req, ok := detectorRequirement("Detector", cfg.Analysis.Detector, false); ok {
		requirements = append(requirements, req)
	}
	if req, ok := detectorRequirement("Secondary detector", cfg.Analysis.Secondary, true); ok {
		requirements = append(requirements, req)
	}
	return requirements
}

// ResolveBinary returns the configured binary or fallback when unset.
func ResolveBinary(configured, fallback string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return fallback
}

func detectorRequirement(name string, d config.Detector, optional bool) (Requirement, bool) {
	if d.Kind != config.DetectorCommand {
		return Requirement{}, false
	}
	fields := strings.Fields(d.Command)
	if len(fields) == 0 {
		return Requirement{Name: name, Description: "Command detector", Optional: optional}, true
	}
	return Requirement{
		Name:        name,
		Command:     fields[0],
		Description: "Command detector (" + d.Input + " input)",
		Optional:    optional,
	}, true
}
