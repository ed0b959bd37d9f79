package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"deepshield/internal/config"
)

// ConfigOption adjusts a NewConfig result.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns a validated-shape config rooted in a fresh temp
// directory: data, uploads, and logs live side by side under BaseDir, the
// server binds an ephemeral loopback port, and a single worker polls every
// second with a short analysis deadline.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.MediaDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Server.Bind = "127.0.0.1:0"

	analysis := &cfg.Analysis
	analysis.Workers = 1
	analysis.TimeoutSeconds = 5
	analysis.PollInterval = 1
	analysis.HeartbeatInterval = 1
	analysis.HeartbeatTimeout = 30

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp root behind a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithDetectorEndpoint points the primary detector at an HTTP endpoint.
func WithDetectorEndpoint(endpoint, input string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Analysis.Detector = config.Detector{Kind: config.DetectorHTTP, Endpoint: endpoint, Input: input}
	}
}

// WithSecondaryEndpoint enables the secondary detector at an HTTP endpoint.
func WithSecondaryEndpoint(endpoint, input string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Analysis.Secondary = config.Detector{Kind: config.DetectorHTTP, Endpoint: endpoint, Input: input}
	}
}

// WithAnalysisTimeout overrides the per-run analysis deadline in seconds.
func WithAnalysisTimeout(seconds int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Analysis.TimeoutSeconds = seconds
	}
}

// WithStubbedBinaries puts no-op executables for names (ffmpeg and ffprobe
// when empty) at the front of PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(BaseDir(cfg), "bin")
		for _, name := range names {
			WriteScript(t, filepath.Join(binDir, name), "exit 0\n")
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
