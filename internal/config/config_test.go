package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"deepshield/internal/config"
)

func clearOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DEEPSHIELD_CONFIG", "DEEPSHIELD_DATA_DIR", "DEEPSHIELD_API_TOKEN", "PORT", "DETECTOR_URL", "EXTRACTOR_URL", "NATS_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigUsesEnvSecretAndExpandsPaths(t *testing.T) {
	clearOverrides(t)
	t.Setenv("JWT_SECRET", "test-secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "deepshield")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.MediaDir != filepath.Join(wantData, "uploads") {
		t.Fatalf("unexpected media dir: %q", cfg.Paths.MediaDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "deepshield.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Server.Bind != "127.0.0.1:3000" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Fatalf("expected jwt secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Analysis.Frames.MinFrames != 10 || cfg.Analysis.Frames.MaxFrames != 20 {
		t.Fatalf("unexpected frame bounds: %d..%d", cfg.Analysis.Frames.MinFrames, cfg.Analysis.Frames.MaxFrames)
	}
	if cfg.AnalysisTimeout() != 5*time.Minute {
		t.Fatalf("unexpected analysis timeout: %s", cfg.AnalysisTimeout())
	}
	if cfg.Analysis.Secondary.Kind != "" {
		t.Fatalf("expected secondary detector disabled by default, got %q", cfg.Analysis.Secondary.Kind)
	}
	if cfg.Server.MaxUploadBytes != 100<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.Server.MaxUploadBytes)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	clearOverrides(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without jwt secret")
	}
	if !strings.Contains(err.Error(), "auth.jwt_secret") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomPathAndEnvOverrides(t *testing.T) {
	clearOverrides(t)
	t.Setenv("JWT_SECRET", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PORT", "8088")
	t.Setenv("DETECTOR_URL", "http://detector:5000/analyze")

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir":  "~/ds",
			"media_dir": "~/ds/media",
		},
		"server": map[string]any{
			"bind":         "0.0.0.0:3000",
			"cors_origins": []string{" http://localhost:5173 ", ""},
		},
		"auth": map[string]any{
			"jwt_secret": "from-file",
		},
		"analysis": map[string]any{
			"workers": 4,
			"frames": map[string]any{
				"extractor": "HTTP",
				"endpoint":  "http://frames:5001/extract",
			},
			"secondary": map[string]any{
				"kind":    "command",
				"command": "python3 detector.py",
			},
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "ds") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Server.Bind != "0.0.0.0:8088" {
		t.Fatalf("expected PORT override, got %q", cfg.Server.Bind)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins: %#v", cfg.Server.CORSOrigins)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("unexpected jwt secret: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Analysis.Workers != 4 {
		t.Fatalf("unexpected workers: %d", cfg.Analysis.Workers)
	}
	if cfg.Analysis.Frames.Extractor != config.ExtractorHTTP {
		t.Fatalf("unexpected extractor: %q", cfg.Analysis.Frames.Extractor)
	}
	if cfg.Analysis.Detector.Endpoint != "http://detector:5000/analyze" {
		t.Fatalf("expected DETECTOR_URL override, got %q", cfg.Analysis.Detector.Endpoint)
	}
	if cfg.Analysis.Secondary.Input != config.DetectorInputVideo {
		t.Fatalf("expected secondary input default, got %q", cfg.Analysis.Secondary.Input)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestValidateRejectsInvertedFrameBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Analysis.Frames.MinFrames = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for min_frames > max_frames")
	}
}

func TestValidateRejectsFramesInputWithoutExtractor(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Analysis.Frames.Extractor = config.ExtractorNone
	cfg.Analysis.Detector.Input = config.DetectorInputFrames
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for frames input without extractor")
	}
}

func TestValidateRequiresDetectorCommand(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Analysis.Detector = config.Detector{Kind: config.DetectorCommand, Input: config.DetectorInputVideo}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "analysis.detector.command") {
		t.Fatalf("expected command validation error, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearOverrides(t)
	t.Setenv("JWT_SECRET", "sample-secret")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Analysis.Detector.Kind != config.DetectorHTTP {
		t.Fatalf("unexpected detector kind: %q", cfg.Analysis.Detector.Kind)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.MediaDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
