package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
}

// Server contains HTTP listener configuration.
type Server struct {
	Bind           string   `toml:"bind"`
	CORSOrigins    []string `toml:"cors_origins"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
	APIToken       string   `toml:"api_token"`
}

// Auth contains bearer token settings.
type Auth struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// Frames configures the frame extractor collaborator.
type Frames struct {
	// Extractor selects the strategy: "ffmpeg", "http", or "none".
	Extractor     string `toml:"extractor"`
	Endpoint      string `toml:"endpoint"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	MinFrames     int    `toml:"min_frames"`
	MaxFrames     int    `toml:"max_frames"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
}

// Detector configures one detection collaborator.
type Detector struct {
	// Kind selects the strategy: "http" or "command". Empty disables the detector.
	Kind     string `toml:"kind"`
	Endpoint string `toml:"endpoint"`
	Command  string `toml:"command"`
	// Input is "frames" or "video".
	Input string `toml:"input"`
}

// Analysis contains background deepfake analysis settings.
type Analysis struct {
	Workers           int      `toml:"workers"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	PollInterval      int      `toml:"poll_interval"`
	HeartbeatInterval int      `toml:"heartbeat_interval"`
	HeartbeatTimeout  int      `toml:"heartbeat_timeout"`
	Frames            Frames   `toml:"frames"`
	Detector          Detector `toml:"detector"`
	Secondary         Detector `toml:"secondary"`
}

// Notifications contains configuration for event sinks.
type Notifications struct {
	NtfyTopic         string `toml:"ntfy_topic"`
	NATSURL           string `toml:"nats_url"`
	NATSSubjectPrefix string `toml:"nats_subject_prefix"`
	RequestTimeout    int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for DeepShield.
//
// Configuration sections by subsystem:
//   - Paths: database, media, and log directories
//   - Server: HTTP bind address, CORS, upload limits
//   - Auth: JWT signing secret and token lifetime
//   - Analysis: worker lanes, deadlines, extractor and detector collaborators
//   - Notifications: ntfy and NATS event sinks
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Auth          Auth          `toml:"auth"`
	Analysis      Analysis      `toml:"analysis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if value, ok := os.LookupEnv("DEEPSHIELD_CONFIG"); ok {
			path = strings.TrimSpace(value)
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("deepshield.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.MediaDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "deepshield.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "deepshield.lock")
}

// PIDPath returns the pid file written by a running server.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "deepshield.pid")
}

// AnalysisTimeout returns the per-run analysis deadline.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued bearer tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
