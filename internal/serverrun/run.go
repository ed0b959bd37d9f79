// Package serverrun assembles the DeepShield server process from configuration.
package serverrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"deepshield/internal/analysis"
	"deepshield/internal/config"
	"deepshield/internal/daemon"
	"deepshield/internal/deps"
	"deepshield/internal/detection"
	"deepshield/internal/frames"
	"deepshield/internal/logging"
	"deepshield/internal/mediastore"
	"deepshield/internal/notifications"
	"deepshield/internal/store"
	"deepshield/internal/workflow"
)

// Options configures server process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// Run starts the server and blocks until the context is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open post store", logging.Error(err))
		return err
	}

	d, err := Build(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return err
	}
	defer d.Close()

	logDependencySnapshot(logger, cfg)

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "server start failed", "daemon_start_failed", logging.Error(err))
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("write pid file", logging.Error(err))
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("deepshield server shutting down")
	return nil
}

// Build wires the analysis pipelines, notifier, and workflow manager into a
// daemon. The daemon owns st afterwards.
func Build(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	media := mediastore.New(cfg)

	primary, err := newPipeline(cfg.Analysis.Frames, cfg.Analysis.Detector, media, logger)
	if err != nil {
		return nil, fmt.Errorf("primary analysis: %w", err)
	}

	managerOpts := []workflow.ManagerOption{
		workflow.WithHealthChecks(HealthChecks(cfg)...),
		workflow.WithFramesRemover(media),
	}
	if cfg.Analysis.Secondary.Kind != "" {
		secondary, err := newPipeline(cfg.Analysis.Frames, cfg.Analysis.Secondary, media, logger)
		if err != nil {
			return nil, fmt.Errorf("secondary analysis: %w", err)
		}
		managerOpts = append(managerOpts, workflow.WithSecondary(secondary))
	}

	notifier, err := notifications.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}
	managerOpts = append(managerOpts, workflow.WithNotifier(notifier))

	mgr := workflow.NewManager(cfg, st, primary, logger, managerOpts...)
	d, err := daemon.New(cfg, st, logger, mgr, notifier)
	if err != nil {
		_ = notifier.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func newPipeline(framesCfg config.Frames, detectorCfg config.Detector, media *mediastore.Store, logger *slog.Logger) (*analysis.Pipeline, error) {
	extractor, err := frames.New(framesCfg, media)
	if err != nil {
		return nil, err
	}
	detector, err := detection.New(detectorCfg)
	if err != nil {
		return nil, err
	}
	return analysis.NewPipeline(extractor, detector, media, logger), nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("extractor", cfg.Analysis.Frames.Extractor),
		logging.String("detector", cfg.Analysis.Detector.Kind),
		logging.String("detector_input", cfg.Analysis.Detector.Input),
		logging.Bool("secondary_enabled", cfg.Analysis.Secondary.Kind != ""),
		logging.Bool("nats_enabled", cfg.Notifications.NATSURL != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	}
	for _, status := range deps.CheckBinaries(deps.AnalysisRequirements(cfg)) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
