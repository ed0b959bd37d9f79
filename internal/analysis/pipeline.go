package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"deepshield/internal/detection"
	"deepshield/internal/frames"
	"deepshield/internal/logging"
	"deepshield/internal/mediastore"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

// Pipeline runs extraction then detection for one video.
type Pipeline struct {
	extractor frames.Extractor
	detector  detection.Detector
	media     *mediastore.Store
	logger    *slog.Logger
}

// NewPipeline wires an extractor and detector. A nil extractor disables extraction.
func NewPipeline(extractor frames.Extractor, detector detection.Detector, media *mediastore.Store, logger *slog.Logger) *Pipeline {
	if extractor == nil {
		extractor = frames.Disabled{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{extractor: extractor, detector: detector, media: media, logger: logger}
}

// Run analyses the video at videoPath. Extracted frames stay on disk after a
// successful run so their public paths remain valid; they are removed when
// the run fails. A context deadline surfaces as services.ErrTimeout.
func (p *Pipeline) Run(ctx context.Context, videoPath string) (store.Analysis, error) {
	if p.detector == nil {
		return store.Analysis{}, services.Wrap(services.ErrConfiguration, "analysis", "run", "detector not configured", nil)
	}
	logger := logging.WithContext(ctx, p.logger)

	started := time.Now()
	extracted, err := p.extractor.Extract(ctx, videoPath)
	if err != nil {
		return store.Analysis{}, classify(ctx, "extract frames", err)
	}
	logger.Debug("frames extracted",
		logging.Int("frames", len(extracted.Frames)),
		logging.Duration("elapsed", time.Since(started)),
	)

	result, err := p.detect(ctx, videoPath, extracted)
	if err != nil {
		if extracted.Dir != "" && p.media != nil {
			if rmErr := p.media.Remove(extracted.Dir); rmErr != nil {
				logger.Warn("remove frames directory failed", logging.String("dir", extracted.Dir), logging.Error(rmErr))
			}
		}
		return store.Analysis{}, err
	}
	logger.Debug("detection finished",
		logging.Int("frames", result.Summary.TotalFrames),
		logging.String("verdict", result.Summary.Status),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (p *Pipeline) detect(ctx context.Context, videoPath string, extracted frames.Result) (store.Analysis, error) {
	verdicts, err := p.detector.Detect(ctx, detection.Input{VideoPath: videoPath, Frames: extracted.Frames})
	if err != nil {
		return store.Analysis{}, classify(ctx, "detect", err)
	}
	return Summarize(verdicts)
}

func classify(ctx context.Context, operation string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "analysis", operation, "analysis deadline exceeded", err)
	}
	return err
}
