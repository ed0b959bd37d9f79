package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Report is the subset of an ffprobe JSON report used for frame sampling.
type Report struct {
	Streams   []VideoStream `json:"streams"`
	Container Container     `json:"format"`
}

// VideoStream is one video stream of an upload.
type VideoStream struct {
	Index        int    `json:"index"`
	Codec        string `json:"codec_name"`
	Kind         string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	FrameCount   string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Container holds container-level fields.
type Container struct {
	Name     string `json:"format_name"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

// Probe runs ffprobe restricted to video streams and decodes its report.
func Probe(ctx context.Context, binary, videoPath string) (Report, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(videoPath) == "" {
		return Report{}, errors.New("ffprobe: empty video path")
	}
	args := []string{
		"-v", "error", "-hide_banner",
		"-select_streams", "v",
		"-show_entries", "format=format_name,duration,size:stream=index,codec_name,codec_type,width,height,duration,nb_frames,avg_frame_rate",
		"-of", "json",
		"--", videoPath,
	}
	out, err := exec.CommandContext(ctx, binary, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if detail := strings.TrimSpace(string(exitErr.Stderr)); detail != "" {
				return Report{}, fmt.Errorf("ffprobe %s: %w: %s", videoPath, err, detail)
			}
		}
		return Report{}, fmt.Errorf("ffprobe %s: %w", videoPath, err)
	}
	return Decode(out)
}

// Decode parses ffprobe JSON output.
func Decode(data []byte) (Report, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("decode ffprobe report: %w", err)
	}
	return report, nil
}

// HasVideo reports whether the upload carries at least one video stream.
func (r Report) HasVideo() bool {
	_, ok := r.primary()
	return ok
}

// Resolution returns the dimensions of the first video stream.
func (r Report) Resolution() (int, int) {
	s, ok := r.primary()
	if !ok {
		return 0, 0
	}
	return s.Width, s.Height
}

// Seconds estimates playback length. The container duration wins, then the
// primary stream duration, then frame count over average frame rate. Zero
// means unknown; NaN means ffprobe reported something unparseable.
func (r Report) Seconds() float64 {
	if d := seconds(r.Container.Duration); d != 0 {
		return d
	}
	s, ok := r.primary()
	if !ok {
		return 0
	}
	if d := seconds(s.Duration); d != 0 {
		return d
	}
	frames, err := strconv.Atoi(strings.TrimSpace(s.FrameCount))
	if err != nil || frames <= 0 {
		return 0
	}
	if fps := s.FrameRate(); fps > 0 {
		return float64(frames) / fps
	}
	return 0
}

// FrameRate parses avg_frame_rate ("30000/1001" or "25"). Zero means unknown.
func (s VideoStream) FrameRate() float64 {
	raw := strings.TrimSpace(s.AvgFrameRate)
	num, den, found := strings.Cut(raw, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func (r Report) primary() (VideoStream, bool) {
	for _, s := range r.Streams {
		if s.Kind == "" || strings.EqualFold(s.Kind, "video") {
			return s, true
		}
	}
	return VideoStream{}, false
}

func seconds(value string) float64 {
	v := strings.TrimSpace(value)
	if v == "" || v == "N/A" {
		return 0
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}
