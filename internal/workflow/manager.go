package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"deepshield/internal/config"
	"deepshield/internal/logging"
	"deepshield/internal/notifications"
	"deepshield/internal/store"
)

// Runner analyses one stored video.
type Runner interface {
	Run(ctx context.Context, videoPath string) (store.Analysis, error)
}

// FramesRemover deletes the frames directories a superseded analysis refers to.
type FramesRemover interface {
	RemoveAnalysisFrames(a store.Analysis) error
}

// Manager coordinates background analysis of processing posts.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	primary   Runner
	secondary Runner
	notifier  notifications.Service
	frames    FramesRemover
	logger    *slog.Logger

	workers      int
	pollInterval time.Duration
	timeout      time.Duration
	heartbeat    *HeartbeatMonitor
	health       []HealthCheck

	wake chan struct{}

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastPostID string
	active     map[int]string

	secondaryMu       sync.Mutex
	secondaryInflight map[string]struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier routes lifecycle events to notifier.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithSecondary enables the secondary detector pipeline.
func WithSecondary(runner Runner) ManagerOption {
	return func(m *Manager) {
		m.secondary = runner
	}
}

// WithFramesRemover deletes the frames of an analysis once a re-analysis or a
// newer secondary run replaces it.
func WithFramesRemover(remover FramesRemover) ManagerOption {
	return func(m *Manager) {
		m.frames = remover
	}
}

// WithHealthChecks registers collaborator readiness checks reported by Status.
func WithHealthChecks(checks ...HealthCheck) ManagerOption {
	return func(m *Manager) {
		m.health = append(m.health, checks...)
	}
}

// NewManager constructs a workflow manager around the primary pipeline.
func NewManager(cfg *config.Config, st *store.Store, primary Runner, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Analysis.Workers
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:          cfg,
		store:        st,
		primary:      primary,
		notifier:     notifications.Noop(),
		logger:       logging.NewComponentLogger(logger, "workflow"),
		workers:      workers,
		pollInterval: time.Duration(cfg.Analysis.PollInterval) * time.Second,
		timeout:      cfg.AnalysisTimeout(),
		wake:         make(chan struct{}, 1),
		active:       make(map[int]string),

		secondaryInflight: make(map[string]struct{}),
	}
	m.heartbeat = NewHeartbeatMonitor(
		st,
		m.logger,
		time.Duration(cfg.Analysis.HeartbeatInterval)*time.Second,
		time.Duration(cfg.Analysis.HeartbeatTimeout)*time.Second,
	)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Workers returns the configured lane count.
func (m *Manager) Workers() int {
	return m.workers
}

// Submit wakes an idle lane. It never blocks.
func (m *Manager) Submit() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
