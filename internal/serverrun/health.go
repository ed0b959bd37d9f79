package serverrun

import (
	"context"
	"strings"

	"deepshield/internal/config"
	"deepshield/internal/deps"
	"deepshield/internal/preflight"
	"deepshield/internal/workflow"
)

// HealthChecks returns one readiness check per configured analysis collaborator.
func HealthChecks(cfg *config.Config) []workflow.HealthCheck {
	checks := []workflow.HealthCheck{framesCheck(cfg.Analysis.Frames)}
	checks = append(checks, detectorCheck("detector", cfg.Analysis.Detector))
	if cfg.Analysis.Secondary.Kind != "" {
		checks = append(checks, detectorCheck("secondary", cfg.Analysis.Secondary))
	}
	return checks
}

func framesCheck(frames config.Frames) workflow.HealthCheck {
	return func(ctx context.Context) workflow.StageHealth {
		switch frames.Extractor {
		case config.ExtractorHTTP:
			return fromResult("frames", preflight.CheckEndpoint(ctx, "frames", frames.Endpoint))
		case config.ExtractorFFmpeg:
			return fromBinaries("frames", deps.CheckBinaries([]deps.Requirement{
				{Name: "ffmpeg", Command: deps.ResolveBinary(frames.FFmpegBinary, "ffmpeg")},
				{Name: "ffprobe", Command: deps.ResolveBinary(frames.FFprobeBinary, "ffprobe")},
			}))
		default:
			return workflow.HealthyStage("frames")
		}
	}
}

func detectorCheck(name string, d config.Detector) workflow.HealthCheck {
	return func(ctx context.Context) workflow.StageHealth {
		switch d.Kind {
		case config.DetectorHTTP:
			return fromResult(name, preflight.CheckEndpoint(ctx, name, d.Endpoint))
		case config.DetectorCommand:
			fields := strings.Fields(d.Command)
			if len(fields) == 0 {
				return workflow.UnhealthyStage(name, "command not configured")
			}
			return fromBinaries(name, deps.CheckBinaries([]deps.Requirement{{Name: name, Command: fields[0]}}))
		default:
			return workflow.UnhealthyStage(name, "detector not configured")
		}
	}
}

func fromResult(name string, result preflight.Result) workflow.StageHealth {
	if result.Passed {
		return workflow.HealthyStage(name)
	}
	return workflow.UnhealthyStage(name, result.Detail)
}

func fromBinaries(name string, statuses []deps.Status) workflow.StageHealth {
	var missing []string
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, status.Detail)
		}
	}
	if len(missing) > 0 {
		return workflow.UnhealthyStage(name, strings.Join(missing, "; "))
	}
	return workflow.HealthyStage(name)
}
