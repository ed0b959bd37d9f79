package preflight

import (
	"context"

	"deepshield/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
	}
	if cfg.Analysis.Frames.Extractor == config.ExtractorHTTP {
		results = append(results, CheckEndpoint(ctx, "Frame extractor", cfg.Analysis.Frames.Endpoint))
	}
	if cfg.Analysis.Detector.Kind == config.DetectorHTTP {
		results = append(results, CheckEndpoint(ctx, "Detector", cfg.Analysis.Detector.Endpoint))
	}
	if cfg.Analysis.Secondary.Kind == config.DetectorHTTP {
		results = append(results, CheckEndpoint(ctx, "Secondary detector", cfg.Analysis.Secondary.Endpoint))
	}
	return results
}
