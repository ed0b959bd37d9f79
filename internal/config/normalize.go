package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeAuth()
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("DEEPSHIELD_DATA_DIR"); ok {
		c.Paths.DataDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		c.Paths.MediaDir = defaultMediaDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if port, ok := lookupEnv("PORT"); ok {
		host, _, err := net.SplitHostPort(c.Server.Bind)
		if err != nil {
			return fmt.Errorf("server.bind: %w", err)
		}
		c.Server.Bind = net.JoinHostPort(host, port)
	}
	origins := make([]string, 0, len(c.Server.CORSOrigins))
	for _, origin := range c.Server.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.CORSOrigins = origins
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := lookupEnv("DEEPSHIELD_API_TOKEN"); ok {
			c.Server.APIToken = value
		}
	}
	return nil
}

func (c *Config) normalizeAuth() {
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	if c.Auth.JWTSecret == "" {
		if value, ok := lookupEnv("JWT_SECRET"); ok {
			c.Auth.JWTSecret = value
		}
	}
}

func (c *Config) normalizeAnalysis() error {
	frames := &c.Analysis.Frames
	frames.Extractor = strings.ToLower(strings.TrimSpace(frames.Extractor))
	if frames.Extractor == "" {
		frames.Extractor = defaultExtractor
	}
	frames.Endpoint = strings.TrimSpace(frames.Endpoint)
	if value, ok := lookupEnv("EXTRACTOR_URL"); ok {
		frames.Endpoint = value
	}
	frames.FFmpegBinary = strings.TrimSpace(frames.FFmpegBinary)
	if frames.FFmpegBinary == "" {
		frames.FFmpegBinary = defaultFFmpegBinary
	}
	frames.FFprobeBinary = strings.TrimSpace(frames.FFprobeBinary)
	if frames.FFprobeBinary == "" {
		frames.FFprobeBinary = defaultFFprobeBinary
	}

	normalizeDetector(&c.Analysis.Detector)
	if value, ok := lookupEnv("DETECTOR_URL"); ok {
		c.Analysis.Detector.Endpoint = value
	}
	normalizeDetector(&c.Analysis.Secondary)
	return nil
}

func normalizeDetector(d *Detector) {
	d.Kind = strings.ToLower(strings.TrimSpace(d.Kind))
	d.Endpoint = strings.TrimSpace(d.Endpoint)
	d.Command = strings.TrimSpace(d.Command)
	d.Input = strings.ToLower(strings.TrimSpace(d.Input))
	if d.Kind != "" && d.Input == "" {
		d.Input = defaultDetectorInput
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.NATSURL = strings.TrimSpace(c.Notifications.NATSURL)
	if c.Notifications.NATSURL == "" {
		if value, ok := lookupEnv("NATS_URL"); ok {
			c.Notifications.NATSURL = value
		}
	}
	c.Notifications.NATSSubjectPrefix = strings.Trim(strings.TrimSpace(c.Notifications.NATSSubjectPrefix), ".")
	if c.Notifications.NATSSubjectPrefix == "" {
		c.Notifications.NATSSubjectPrefix = defaultNATSSubjectPrefix
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = defaultLogFormat
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
