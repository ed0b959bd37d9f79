package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"deepshield/internal/config"
	"deepshield/internal/daemon"
	"deepshield/internal/logging"
	"deepshield/internal/store"
	"deepshield/internal/testsupport"
	"deepshield/internal/workflow"
)

type stubRunner struct {
	calls atomic.Int32
	// block, when set, holds every run until the channel closes or the run is cancelled.
	block chan struct{}
}

func (s *stubRunner) Run(ctx context.Context, _ string) (store.Analysis, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return store.Analysis{}, ctx.Err()
		}
	}
	return store.Analysis{
		FramesAnalysis: []store.FrameAnalysis{
			{Frame: "frame-1.jpg", FramePath: "/uploads/f/frame-1.jpg", Confidence: 0.2},
			{Frame: "frame-2.jpg", FramePath: "/uploads/f/frame-2.jpg", Confidence: 0.9, IsFake: true},
		},
		Confidence: 0.55,
		IsFake:     false,
		Summary: store.Summary{
			Status:               "REAL",
			ConfidencePercentage: 50,
			TotalFrames:          2,
			RealFrames:           1,
			FakeFrames:           1,
		},
	}, nil
}

func newDaemon(t *testing.T, cfg *config.Config, runner workflow.Runner) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, st, runner, logging.NewNop())
	d, err := daemon.New(cfg, st, logging.NewNop(), mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

type testServer struct {
	daemon *daemon.Daemon
	cfg    *config.Config
	base   string
}

func startServer(t *testing.T, runner workflow.Runner, opts ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}
	d := newDaemon(t, cfg, runner)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &testServer{daemon: d, cfg: cfg, base: "http://" + d.Address()}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.base+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func (s *testServer) postJSON(t *testing.T, path, token string, payload any) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return s.do(t, http.MethodPost, path, token, bytes.NewReader(data), "application/json")
}

// signup creates an account and returns its bearer token.
func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	status, body := s.postJSON(t, "/signup", "", map[string]string{
		"username":  username,
		"firstName": "test",
		"lastName":  "user",
		"password":  "secret-pass",
	})
	if status != http.StatusOK {
		t.Fatalf("signup status %d: %s", status, body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, body, &resp)
	if resp.Token == "" {
		t.Fatal("expected signup token")
	}
	return resp.Token
}

type mediaPart struct {
	field, filename, contentType string
}

func (s *testServer) createPost(t *testing.T, token string, media *mediaPart, title string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", title)
	_ = mw.WriteField("content", "posted from a test")
	if media != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+media.field+`"; filename="`+media.filename+`"`)
		header.Set("Content-Type", media.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write([]byte(strings.Repeat("x", 512)))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return s.do(t, http.MethodPost, "/api/posts", token, &buf, mw.FormDataContentType())
}

func decode(t *testing.T, data []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
