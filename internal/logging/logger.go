package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deepshield/internal/config"
)

// LogFileName is the file written under paths.log_dir.
const LogFileName = "deepshield.log"

// Options describes logger construction parameters. Outputs accepts "stdout",
// "stderr", or file paths; an empty list means stdout.
type Options struct {
	Level       string
	Format      string
	Outputs     []string
	Development bool
}

// New builds a logger whose records also carry the request, post, user, and
// worker identifiers stored on the context passed to the *Context methods.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	writer, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		base = newJSONHandler(writer, levelVar, addSource)
	case "", "console":
		base = newConsoleHandler(writer, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(&contextHandler{next: base}), nil
}

// NewFromConfig logs to stdout plus LogFileName in the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, LogFileName))
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Outputs: outputs})
}

func parseLevel(raw string) slog.Level {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "warning" {
		value = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openOutputs(outputs []string) (io.Writer, error) {
	if len(outputs) == 0 {
		return os.Stdout, nil
	}
	seen := make(map[string]bool, len(outputs))
	writers := make([]io.Writer, 0, len(outputs))
	for _, raw := range outputs {
		target := strings.TrimSpace(raw)
		if target != "stdout" && target != "stderr" && target != "" {
			target = filepath.Clean(target)
		}
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true

		w, err := openOutput(target)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", target, err)
	}
	return file, nil
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: shortJSONKeys,
	})
}

func shortJSONKeys(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

// contextHandler appends ContextFields to each record, skipping keys the
// logger or the record already carries.
type contextHandler struct {
	next slog.Handler
	keys map[string]bool
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return h.next.Handle(ctx, record)
	}
	present := make(map[string]bool, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		return true
	})
	for _, field := range fields {
		if !h.keys[field.Key] && !present[field.Key] {
			record.AddAttrs(field)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	keys := make(map[string]bool, len(h.keys)+len(attrs))
	for k := range h.keys {
		keys[k] = true
	}
	for _, a := range attrs {
		keys[a.Key] = true
	}
	return &contextHandler{next: h.next.WithAttrs(attrs), keys: keys}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &contextHandler{next: h.next.WithGroup(name), keys: h.keys}
}
