package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"deepshield/internal/api"
	"deepshield/internal/auth"
	"deepshield/internal/config"
	"deepshield/internal/deps"
	"deepshield/internal/logging"
	"deepshield/internal/mediastore"
	"deepshield/internal/notifications"
	"deepshield/internal/posts"
	"deepshield/internal/preflight"
	"deepshield/internal/store"
	"deepshield/internal/workflow"
)

// partialUploadMaxAge bounds how long an interrupted upload may linger.
const partialUploadMaxAge = time.Hour

// Daemon owns the server lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	media    *mediastore.Store
	workflow *workflow.Manager
	notifier notifications.Service

	auth  *auth.Service
	posts *posts.Service
	reads *api.PostService

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Bind         string
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies. notifier may be nil.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.Noop()
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	media := mediastore.New(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		media:    media,
		workflow: wf,
		notifier: notifier,
		auth:     auth.NewService(st, tokens, logger),
		posts:    posts.NewService(st, media, wf, logger, posts.WithNotifier(notifier)),
		reads:    api.NewPostService(st),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers analysis state, and starts the
// workflow lanes and the HTTP listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another deepshield server is already running for this data directory")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.recover(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("deepshield server started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("bind", d.server.address()),
		logging.Int("workers", d.workflow.Workers()),
	)
	return nil
}

func (d *Daemon) recover(ctx context.Context) error {
	released, err := d.store.ResetClaims(ctx)
	if err != nil {
		return fmt.Errorf("reset analysis claims: %w", err)
	}
	if released > 0 {
		d.logger.Info("released analysis claims from previous run",
			logging.String(logging.FieldEventType, "claims_reset"),
			logging.Int64("count", released),
		)
	}
	d.media.CleanPartials(ctx, partialUploadMaxAge, d.logger)
	return nil
}

func (d *Daemon) abortStart() {
	if d.cancel != nil {
		d.cancel()
	}
	_ = d.lock.Unlock()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops the listener and background analysis, then releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("deepshield server stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.posts.Wait()
	var errs []error
	if d.notifier != nil {
		errs = append(errs, d.notifier.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP handler serving the API.
func (d *Daemon) Handler() http.Handler {
	return d.server.handler
}

// Address returns the bound listener address once started.
func (d *Daemon) Address() string {
	return d.server.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.server.address(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}
