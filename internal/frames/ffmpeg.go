package frames

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"deepshield/internal/config"
	"deepshield/internal/media/ffprobe"
	"deepshield/internal/mediastore"
	"deepshield/internal/services"
)

// FFmpeg extracts frames locally with ffprobe and ffmpeg.
type FFmpeg struct {
	ffmpeg    string
	ffprobe   string
	minFrames int
	maxFrames int
	width     int
	height    int
	media     *mediastore.Store
}

// NewFFmpeg constructs a local extractor writing into the media store.
func NewFFmpeg(cfg config.Frames, media *mediastore.Store) *FFmpeg {
	return &FFmpeg{
		ffmpeg:    cfg.FFmpegBinary,
		ffprobe:   cfg.FFprobeBinary,
		minFrames: cfg.MinFrames,
		maxFrames: cfg.MaxFrames,
		width:     cfg.Width,
		height:    cfg.Height,
		media:     media,
	}
}

// Extract samples Count(duration) evenly spaced frames into a fresh frames
// directory. The directory is removed when extraction fails.
func (f *FFmpeg) Extract(ctx context.Context, videoPath string) (Result, error) {
	probe, err := ffprobe.Probe(ctx, f.ffprobe, videoPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "ffprobe", "read video metadata", err)
	}
	if !probe.HasVideo() {
		return Result{}, services.Wrap(services.ErrValidation, "frames", "ffprobe", "file has no video stream", nil)
	}
	duration := probe.Seconds()
	count := Count(duration, f.minFrames, f.maxFrames)

	dir, err := f.media.NewFramesDir(videoPath)
	if err != nil {
		return Result{}, err
	}
	result, err := f.run(ctx, videoPath, dir, duration, count)
	if err != nil {
		_ = f.media.Remove(dir)
		return Result{}, err
	}
	return result, nil
}

func (f *FFmpeg) run(ctx context.Context, videoPath, dir string, duration float64, count int) (Result, error) {
	cmd := exec.CommandContext(ctx, f.ffmpeg, f.args(videoPath, dir, duration, count)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "ffmpeg", detail, err)
	}

	frames, err := ListDir(dir, f.media)
	if err != nil {
		return Result{}, err
	}
	if len(frames) == 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "ffmpeg", "no frames produced", nil)
	}
	return Result{Dir: dir, Frames: frames}, nil
}

func (f *FFmpeg) args(videoPath, dir string, duration float64, count int) []string {
	filter := fmt.Sprintf("scale=%d:%d", f.width, f.height)
	if duration > 0 && !math.IsNaN(duration) {
		rate := strconv.FormatFloat(float64(count)/duration, 'f', 6, 64)
		filter = "fps=" + rate + "," + filter
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", videoPath,
		"-vf", filter,
		"-frames:v", strconv.Itoa(count),
		"-q:v", "2",
		filepath.Join(dir, "frame-%d.jpg"),
	}
}
