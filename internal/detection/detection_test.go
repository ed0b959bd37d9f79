package detection_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deepshield/internal/config"
	"deepshield/internal/detection"
	"deepshield/internal/frames"
	"deepshield/internal/services"
	"deepshield/internal/testsupport"
)

func sampleFrames(t *testing.T, n int) []frames.Frame {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "frames_clip")
	out := make([]frames.Frame, 0, n)
	for i := 1; i <= n; i++ {
		name := "frame-" + string(rune('0'+i)) + ".jpg"
		p := filepath.Join(dir, name)
		testsupport.WriteFile(t, p, 16)
		out = append(out, frames.Frame{Name: name, Path: p, URL: "/uploads/frames_clip/" + name})
	}
	return out
}

func TestHTTPDetectorSendsVideoField(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 128)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(r.MultipartForm.File["video"]) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "No video file provided"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"frames_analysis": []map[string]any{
				{"frame": "frame-1.jpg", "frame_path": "/uploads/x/frame-1.jpg", "confidence": 0.2, "is_fake": true},
				{"frame": "frame-2.jpg", "frame_path": "/uploads/x/frame-2.jpg", "confidence": 0.9, "is_fake": false},
			},
		})
	}))
	defer server.Close()

	det := detection.NewHTTP(server.URL, detection.ModeVideo)
	verdicts, err := det.Detect(context.Background(), detection.Input{VideoPath: video})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(verdicts) != 2 || !verdicts[0].IsFake || verdicts[1].IsFake {
		t.Fatalf("unexpected verdicts %+v", verdicts)
	}
	if verdicts[1].FramePath != "/uploads/x/frame-2.jpg" {
		t.Fatalf("unexpected frame path %q", verdicts[1].FramePath)
	}
}

func TestHTTPDetectorSendsFramesAndFillsPaths(t *testing.T) {
	input := sampleFrames(t, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		files := r.MultipartForm.File["frames"]
		results := make([]map[string]any, 0, len(files))
		for _, fh := range files {
			results = append(results, map[string]any{"frame": fh.Filename, "confidence": 0.7, "is_fake": false})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"frames_analysis": results})
	}))
	defer server.Close()

	verdicts, err := detection.NewHTTP(server.URL, detection.ModeFrames).Detect(context.Background(), detection.Input{Frames: input})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(verdicts))
	}
	for i, v := range verdicts {
		if v.Frame != input[i].Name || v.FramePath != input[i].URL {
			t.Fatalf("verdict %d not matched to frame: %+v", i, v)
		}
	}
}

func TestHTTPDetectorErrorStatus(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"Failed to load model"}`)
	}))
	defer server.Close()

	_, err := detection.NewHTTP(server.URL, detection.ModeVideo).Detect(context.Background(), detection.Input{VideoPath: video})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Failed to load model") {
		t.Fatalf("expected detector message, got %v", err)
	}
}

func TestHTTPDetectorRejectsEmptyVerdicts(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"frames_analysis":[]}`)
	}))
	defer server.Close()

	_, err := detection.NewHTTP(server.URL, detection.ModeVideo).Detect(context.Background(), detection.Input{VideoPath: video})
	if err == nil || !strings.Contains(err.Error(), "No frames were analyzed") {
		t.Fatalf("expected empty verdict error, got %v", err)
	}
}

func TestHTTPDetectorHonoursDeadline(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 8)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := detection.NewHTTP(server.URL, detection.ModeVideo).Detect(ctx, detection.Input{VideoPath: video})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCommandDetectorParsesStdout(t *testing.T) {
	base := t.TempDir()
	script := filepath.Join(base, "detect.sh")
	testsupport.WriteScript(t, script, `test "$1" = "--threshold" || exit 3
shift 2
printf '{"frames_analysis":['
sep=""
for f; do
  printf '%s{"frame":"%s","confidence":0.4,"is_fake":true}' "$sep" "$(basename "$f")"
  sep=","
done
printf ']}'
`)
	det, err := detection.New(config.Detector{Kind: config.DetectorCommand, Command: script + " --threshold 0.5", Input: config.DetectorInputFrames})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	input := sampleFrames(t, 2)
	verdicts, err := det.Detect(context.Background(), detection.Input{Frames: input})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(verdicts) != 2 || verdicts[1].Frame != "frame-2.jpg" || verdicts[1].FramePath != input[1].URL {
		t.Fatalf("unexpected verdicts %+v", verdicts)
	}
}

func TestCommandDetectorFailureIncludesStderr(t *testing.T) {
	script := filepath.Join(t.TempDir(), "detect.sh")
	testsupport.WriteScript(t, script, "echo 'cuda unavailable' >&2\nexit 2\n")
	det, err := detection.NewCommand(script, detection.ModeVideo)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	_, err = det.Detect(context.Background(), detection.Input{VideoPath: script})
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "cuda unavailable") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFramesModeRequiresFrames(t *testing.T) {
	det := detection.NewHTTP("http://127.0.0.1:1", detection.ModeFrames)
	_, err := det.Detect(context.Background(), detection.Input{VideoPath: "/tmp/x.mp4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewDisabledAndUnknown(t *testing.T) {
	det, err := detection.New(config.Detector{})
	if err != nil || det != nil {
		t.Fatalf("expected disabled detector, got %v %v", det, err)
	}
	if _, err := detection.New(config.Detector{Kind: "grpc"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func framesServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFramesModeReturnsSubmissionOrder(t *testing.T) {
	input := sampleFrames(t, 3)
	server := framesServer(t, `{"frames_analysis":[
		{"frame":"frame-3.jpg","confidence":0.3,"is_fake":true},
		{"frame":"frame-1.jpg","confidence":0.1,"is_fake":false},
		{"frame":"frame-2.jpg","confidence":0.2,"is_fake":true}]}`)

	verdicts, err := detection.NewHTTP(server.URL, detection.ModeFrames).Detect(context.Background(), detection.Input{Frames: input})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(verdicts))
	}
	for i, v := range verdicts {
		if v.Frame != input[i].Name || v.FramePath != input[i].URL {
			t.Fatalf("verdict %d out of order: %+v", i, v)
		}
	}
}

func TestFramesModeRejectsDuplicateAndUnknownFrames(t *testing.T) {
	input := sampleFrames(t, 3)
	cases := map[string]string{
		"duplicate": `{"frames_analysis":[
			{"frame":"frame-3.jpg","confidence":0.3,"is_fake":true},
			{"frame":"frame-1.jpg","confidence":0.1,"is_fake":true},
			{"frame":"frame-1.jpg","confidence":0.1,"is_fake":true}]}`,
		"unknown": `{"frames_analysis":[
			{"frame":"frame-1.jpg","confidence":0.1,"is_fake":true},
			{"frame":"frame-9.jpg","confidence":0.9,"is_fake":true}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := framesServer(t, body)
			_, err := detection.NewHTTP(server.URL, detection.ModeFrames).Detect(context.Background(), detection.Input{Frames: input})
			if !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected external tool error, got %v", err)
			}
		})
	}
}

func TestVideoModeSortsByFrameNumber(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 8)
	server := framesServer(t, `{"frames_analysis":[
		{"frame":"frame-10.jpg","frame_path":"/uploads/x/frame-10.jpg","confidence":0.5,"is_fake":false},
		{"frame":"frame-2.jpg","frame_path":"/uploads/x/frame-2.jpg","confidence":0.5,"is_fake":false},
		{"frame":"frame-1.jpg","frame_path":"/uploads/x/frame-1.jpg","confidence":0.5,"is_fake":false}]}`)

	verdicts, err := detection.NewHTTP(server.URL, detection.ModeVideo).Detect(context.Background(), detection.Input{VideoPath: video})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []string{"frame-1.jpg", "frame-2.jpg", "frame-10.jpg"}
	if len(verdicts) != len(want) {
		t.Fatalf("expected %d verdicts, got %d", len(want), len(verdicts))
	}
	for i, v := range verdicts {
		if v.Frame != want[i] {
			t.Fatalf("verdict %d = %s, want %s", i, v.Frame, want[i])
		}
	}
}

func TestVideoModeRejectsDuplicateFrames(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, video, 8)
	server := framesServer(t, `{"frames_analysis":[
		{"frame":"frame-1.jpg","confidence":0.5,"is_fake":true},
		{"frame":"frame-1.jpg","confidence":0.5,"is_fake":true}]}`)

	_, err := detection.NewHTTP(server.URL, detection.ModeVideo).Detect(context.Background(), detection.Input{VideoPath: video})
	if err == nil || !strings.Contains(err.Error(), "duplicate verdict") {
		t.Fatalf("expected duplicate verdict error, got %v", err)
	}
}
