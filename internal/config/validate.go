package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be host:port: %w", err)
	}
	if c.Server.MaxUploadBytes < 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("auth.jwt_secret is required. Set JWT_SECRET env var or edit %s (create with 'deepshield config init')", defaultPath)
	}
	if c.Auth.TokenTTLHours <= 0 {
		return errors.New("auth.token_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if err := ensurePositiveMap(map[string]int{
		"analysis.workers":            c.Analysis.Workers,
		"analysis.timeout_seconds":    c.Analysis.TimeoutSeconds,
		"analysis.poll_interval":      c.Analysis.PollInterval,
		"analysis.heartbeat_interval": c.Analysis.HeartbeatInterval,
		"analysis.heartbeat_timeout":  c.Analysis.HeartbeatTimeout,
		"analysis.frames.min_frames":  c.Analysis.Frames.MinFrames,
		"analysis.frames.max_frames":  c.Analysis.Frames.MaxFrames,
		"analysis.frames.width":       c.Analysis.Frames.Width,
		"analysis.frames.height":      c.Analysis.Frames.Height,
	}); err != nil {
		return err
	}
	if c.Analysis.HeartbeatTimeout <= c.Analysis.HeartbeatInterval {
		return errors.New("analysis.heartbeat_timeout must exceed analysis.heartbeat_interval")
	}
	frames := c.Analysis.Frames
	if frames.MinFrames > frames.MaxFrames {
		return errors.New("analysis.frames.min_frames must not exceed analysis.frames.max_frames")
	}
	switch frames.Extractor {
	case ExtractorFFmpeg, ExtractorNone:
	case ExtractorHTTP:
		if frames.Endpoint == "" {
			return errors.New("analysis.frames.endpoint is required for the http extractor")
		}
	default:
		return fmt.Errorf("analysis.frames.extractor must be ffmpeg, http, or none (got %q)", frames.Extractor)
	}

	if c.Analysis.Detector.Kind == "" {
		return errors.New("analysis.detector.kind must be set")
	}
	if err := validateDetector("analysis.detector", c.Analysis.Detector); err != nil {
		return err
	}
	if c.Analysis.Secondary.Kind != "" {
		if err := validateDetector("analysis.secondary", c.Analysis.Secondary); err != nil {
			return err
		}
	}
	if frames.Extractor == ExtractorNone {
		secondaryFrames := c.Analysis.Secondary.Kind != "" && c.Analysis.Secondary.Input == DetectorInputFrames
		if c.Analysis.Detector.Input == DetectorInputFrames || secondaryFrames {
			return errors.New("frames detector input requires a frame extractor")
		}
	}
	return nil
}

func validateDetector(key string, d Detector) error {
	switch d.Kind {
	case DetectorHTTP:
		if d.Endpoint == "" {
			return fmt.Errorf("%s.endpoint is required for the http detector", key)
		}
	case DetectorCommand:
		if d.Command == "" {
			return fmt.Errorf("%s.command is required for the command detector", key)
		}
	default:
		return fmt.Errorf("%s.kind must be http or command (got %q)", key, d.Kind)
	}
	switch d.Input {
	case DetectorInputFrames, DetectorInputVideo:
	default:
		return fmt.Errorf("%s.input must be frames or video (got %q)", key, d.Input)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
