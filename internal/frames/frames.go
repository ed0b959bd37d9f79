package frames

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"deepshield/internal/config"
	"deepshield/internal/mediastore"
	"deepshield/internal/services"
)

// Frame is one extracted still image.
type Frame struct {
	// Name is the file name, e.g. "frame-3.jpg".
	Name string `json:"frame"`
	// Path is the local filesystem location. Empty for remote extractors
	// that only return a public URL.
	Path string `json:"-"`
	// URL is the public path under /uploads.
	URL string `json:"frame_path"`
}

// Result is the output of one extraction.
type Result struct {
	// Dir is the frames directory to delete when the frames are no longer needed.
	Dir    string
	Frames []Frame
}

// Extractor produces an ordered frame sequence for a stored video.
type Extractor interface {
	Extract(ctx context.Context, videoPath string) (Result, error)
}

// New constructs the extractor named by cfg.Extractor.
func New(cfg config.Frames, media *mediastore.Store) (Extractor, error) {
	switch cfg.Extractor {
	case config.ExtractorFFmpeg:
		return NewFFmpeg(cfg, media), nil
	case config.ExtractorHTTP:
		return NewHTTP(cfg.Endpoint, media), nil
	case config.ExtractorNone, "":
		return Disabled{}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "frames", "new extractor", fmt.Sprintf("unknown extractor %q", cfg.Extractor), nil)
	}
}

// Disabled skips extraction. Detectors fed the raw video use it.
type Disabled struct{}

// Extract returns an empty result.
func (Disabled) Extract(context.Context, string) (Result, error) {
	return Result{}, nil
}

// Count returns the number of frames to sample from a clip of the given
// duration: one per whole second, clamped to [minFrames, maxFrames].
func Count(durationSeconds float64, minFrames, maxFrames int) int {
	n := minFrames
	if !math.IsNaN(durationSeconds) && !math.IsInf(durationSeconds, 0) && durationSeconds > 0 {
		n = int(math.Floor(durationSeconds))
	}
	return max(minFrames, min(maxFrames, n))
}

var frameNumber = regexp.MustCompile(`\d+`)

// ListDir returns the .jpg frames in dir in numeric order.
func ListDir(dir string, media *mediastore.Store) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".jpg") {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.SortFunc(names, CompareNames)

	frames := make([]Frame, 0, len(names))
	for _, name := range names {
		full := filepath.Join(dir, name)
		url, err := media.URLFor(full)
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Name: name, Path: full, URL: url})
	}
	return frames, nil
}

// CompareNames orders frame file names by their embedded frame number, so
// frame-2.jpg sorts before frame-10.jpg.
func CompareNames(a, b string) int {
	if diff := numberOf(a) - numberOf(b); diff != 0 {
		return diff
	}
	return strings.Compare(a, b)
}

func numberOf(name string) int {
	match := frameNumber.FindString(name)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
