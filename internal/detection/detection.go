package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"

	"deepshield/internal/config"
	"deepshield/internal/frames"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

// Mode selects what a detector consumes.
type Mode string

const (
	ModeFrames Mode = config.DetectorInputFrames
	ModeVideo  Mode = config.DetectorInputVideo
)

// Input carries the material for one detection run.
type Input struct {
	VideoPath string
	Frames    []frames.Frame
}

// Detector classifies frames as fake or real.
type Detector interface {
	Detect(ctx context.Context, in Input) ([]store.FrameAnalysis, error)
}

// New constructs the detector described by cfg. An empty kind yields
// (nil, nil) so optional detectors can stay disabled.
func New(cfg config.Detector) (Detector, error) {
	mode := Mode(cfg.Input)
	if mode == "" {
		mode = ModeVideo
	}
	switch cfg.Kind {
	case "":
		return nil, nil
	case config.DetectorHTTP:
		return NewHTTP(cfg.Endpoint, mode), nil
	case config.DetectorCommand:
		cmd, err := NewCommand(cfg.Command, mode)
		if err != nil {
			return nil, err
		}
		return cmd, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "detection", "new detector", fmt.Sprintf("unknown detector kind %q", cfg.Kind), nil)
	}
}

type response struct {
	FramesAnalysis []store.FrameAnalysis `json:"frames_analysis"`
	Error          string                `json:"error"`
}

// decodeResponse parses a detector document, fills missing frame names and
// paths from the frames that were submitted, and returns the verdicts in
// frame order.
func decodeResponse(data []byte, in Input, mode Mode) ([]store.FrameAnalysis, error) {
	var payload response
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "detection", "decode response", "", err)
	}
	if payload.Error != "" {
		return nil, services.Wrap(services.ErrExternalTool, "detection", "detector error", payload.Error, nil)
	}
	if len(payload.FramesAnalysis) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "detection", "decode response", "No frames were analyzed", nil)
	}

	byName := make(map[string]frames.Frame, len(in.Frames))
	for _, frame := range in.Frames {
		byName[frame.Name] = frame
	}
	verdicts := payload.FramesAnalysis
	for i := range verdicts {
		v := &verdicts[i]
		if v.Frame == "" && v.FramePath != "" {
			v.Frame = path.Base(v.FramePath)
		}
		if v.Frame == "" && i < len(in.Frames) {
			v.Frame = in.Frames[i].Name
		}
		if v.FramePath == "" {
			if frame, ok := byName[v.Frame]; ok {
				v.FramePath = frame.URL
			}
		}
		if v.Confidence < 0 || v.Confidence > 1 {
			return nil, services.Wrap(services.ErrExternalTool, "detection", "decode response",
				fmt.Sprintf("confidence %v for %s outside [0,1]", v.Confidence, v.Frame), nil)
		}
	}
	if mode == ModeFrames {
		return inSubmissionOrder(verdicts, in.Frames)
	}
	return inFrameNumberOrder(verdicts)
}

// inSubmissionOrder matches each verdict to a submitted frame. Verdicts for
// frames that were never sent, or a second verdict for the same frame, fail
// the run.
func inSubmissionOrder(verdicts []store.FrameAnalysis, submitted []frames.Frame) ([]store.FrameAnalysis, error) {
	position := make(map[string]int, len(submitted))
	for i, frame := range submitted {
		position[frame.Name] = i
	}
	slots := make([]*store.FrameAnalysis, len(submitted))
	for i := range verdicts {
		v := &verdicts[i]
		at, ok := position[v.Frame]
		if !ok {
			return nil, services.Wrap(services.ErrExternalTool, "detection", "decode response",
				fmt.Sprintf("verdict for unknown frame %q", v.Frame), nil)
		}
		if slots[at] != nil {
			return nil, services.Wrap(services.ErrExternalTool, "detection", "decode response",
				fmt.Sprintf("duplicate verdict for %s", v.Frame), nil)
		}
		slots[at] = v
	}
	ordered := make([]store.FrameAnalysis, 0, len(verdicts))
	for _, v := range slots {
		if v != nil {
			ordered = append(ordered, *v)
		}
	}
	return ordered, nil
}

// inFrameNumberOrder sorts verdicts for self-extracted frames by frame number.
func inFrameNumberOrder(verdicts []store.FrameAnalysis) ([]store.FrameAnalysis, error) {
	seen := make(map[string]bool, len(verdicts))
	for _, v := range verdicts {
		if v.Frame == "" {
			continue
		}
		if seen[v.Frame] {
			return nil, services.Wrap(services.ErrExternalTool, "detection", "decode response",
				fmt.Sprintf("duplicate verdict for %s", v.Frame), nil)
		}
		seen[v.Frame] = true
	}
	slices.SortStableFunc(verdicts, func(a, b store.FrameAnalysis) int {
		return frames.CompareNames(a.Frame, b.Frame)
	})
	return verdicts, nil
}

func framePaths(in Input) ([]string, error) {
	if len(in.Frames) == 0 {
		return nil, services.Wrap(services.ErrValidation, "detection", "prepare input", "no frames to analyze", nil)
	}
	paths := make([]string, 0, len(in.Frames))
	for _, frame := range in.Frames {
		if strings.TrimSpace(frame.Path) == "" {
			return nil, services.Wrap(services.ErrValidation, "detection", "prepare input",
				fmt.Sprintf("frame %s has no local file", frame.Name), nil)
		}
		paths = append(paths, frame.Path)
	}
	return paths, nil
}
