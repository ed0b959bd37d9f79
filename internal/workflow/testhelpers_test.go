package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deepshield/internal/config"
	"deepshield/internal/logging"
	"deepshield/internal/notifications"
	"deepshield/internal/store"
	"deepshield/internal/testsupport"
	"deepshield/internal/workflow"
)

type runnerFunc func(ctx context.Context, videoPath string) (store.Analysis, error)

type stubRunner struct {
	calls atomic.Int32
	fn    runnerFunc
}

func (s *stubRunner) Run(ctx context.Context, videoPath string) (store.Analysis, error) {
	s.calls.Add(1)
	return s.fn(ctx, videoPath)
}

func fixedAnalysis(fake bool) store.Analysis {
	status := "REAL"
	fakeFrames, realFrames := 0, 2
	if fake {
		status = "FAKE"
		fakeFrames, realFrames = 2, 0
	}
	return store.Analysis{
		FramesAnalysis: []store.FrameAnalysis{
			{Frame: "frame-1.jpg", FramePath: "/uploads/f/frame-1.jpg", Confidence: 0.6, IsFake: fake},
			{Frame: "frame-2.jpg", FramePath: "/uploads/f/frame-2.jpg", Confidence: 0.6, IsFake: fake},
		},
		Confidence: 0.6,
		IsFake:     fake,
		Summary: store.Summary{
			Status:               status,
			ConfidencePercentage: fakeFrames * 50,
			TotalFrames:          2,
			RealFrames:           realFrames,
			FakeFrames:           fakeFrames,
		},
	}
}

type recordedEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, payload: payload})
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	manager  *workflow.Manager
	notifier *recordingNotifier
	user     *store.User
}

func newHarness(t *testing.T, runner workflow.Runner, cfgOpts []testsupport.ConfigOption, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	opts = append([]workflow.ManagerOption{workflow.WithNotifier(notifier)}, opts...)
	mgr := workflow.NewManager(cfg, st, runner, logging.NewNop(), opts...)
	return &harness{
		cfg:      cfg,
		store:    st,
		manager:  mgr,
		notifier: notifier,
		user:     testsupport.NewUser(t, st, "owner@example.com"),
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.manager.Stop)
}

func (h *harness) waitForStatus(t *testing.T, postID string, want store.Status, timeout time.Duration) *store.Post {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		post, err := h.store.GetPost(context.Background(), postID)
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		if post != nil && post.AnalysisStatus == want {
			return post
		}
		if time.Now().After(deadline) {
			status := store.Status("missing")
			if post != nil {
				status = post.AnalysisStatus
			}
			t.Fatalf("post %s: status %q, want %q", postID, status, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type recordingRemover struct {
	mu      sync.Mutex
	removed []store.Analysis
}

func (r *recordingRemover) RemoveAnalysisFrames(a store.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, a)
	return nil
}

func (r *recordingRemover) snapshot() []store.Analysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Analysis(nil), r.removed...)
}

// numberedRunner tags each run's frame paths with the run number.
func numberedRunner() *stubRunner {
	var runs atomic.Int32
	return &stubRunner{fn: func(context.Context, string) (store.Analysis, error) {
		n := runs.Add(1)
		a := fixedAnalysis(false)
		for i := range a.FramesAnalysis {
			a.FramesAnalysis[i].FramePath = fmt.Sprintf("/uploads/frames_run%d/%s", n, a.FramesAnalysis[i].Frame)
		}
		return a, nil
	}}
}
