package analysis

import (
	"math"

	"deepshield/internal/services"
	"deepshield/internal/store"
)

const (
	SummaryFake = "FAKE"
	SummaryReal = "REAL"
)

// Summarize aggregates per-frame verdicts. The overall verdict is fake when
// fake frames outnumber real ones; confidence is the mean frame confidence and
// confidence_percentage is the rounded share of fake frames.
func Summarize(verdicts []store.FrameAnalysis) (store.Analysis, error) {
	total := len(verdicts)
	if total == 0 {
		return store.Analysis{}, services.Wrap(services.ErrExternalTool, "analysis", "summarize", "no frames were analyzed", nil)
	}
	fake := 0
	sum := 0.0
	for _, v := range verdicts {
		if v.IsFake {
			fake++
		}
		sum += v.Confidence
	}
	realFrames := total - fake
	isFake := fake > realFrames
	status := SummaryReal
	if isFake {
		status = SummaryFake
	}

	framesCopy := make([]store.FrameAnalysis, total)
	copy(framesCopy, verdicts)
	return store.Analysis{
		FramesAnalysis: framesCopy,
		Confidence:     sum / float64(total),
		IsFake:         isFake,
		Summary: store.Summary{
			Status:               status,
			ConfidencePercentage: int(math.Round(float64(fake) / float64(total) * 100)),
			TotalFrames:          total,
			RealFrames:           realFrames,
			FakeFrames:           fake,
		},
	}, nil
}
