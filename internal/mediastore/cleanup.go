package mediastore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deepshield/internal/logging"
	"deepshield/internal/store"
)

// CleanupResult contains the outcome of a partial-upload cleanup.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanPartials removes interrupted uploads older than maxAge from the media root.
func (s *Store) CleanPartials(ctx context.Context, maxAge time.Duration, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: s.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), partialSuffix) {
			continue
		}
		full := filepath.Join(s.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: full, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(full); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: full, Error: err})
			continue
		}
		result.Removed = append(result.Removed, full)
		if logger != nil {
			logger.Debug("removed partial upload", logging.String("path", full))
		}
	}
	return result
}

// RemoveAnalysisFrames deletes the frames directories that a's frame paths
// point into. Paths outside the media root or outside a frames directory are
// left alone.
func (s *Store) RemoveAnalysisFrames(a store.Analysis) error {
	dirs := make(map[string]struct{})
	for _, verdict := range a.FramesAnalysis {
		if verdict.FramePath == "" {
			continue
		}
		p, err := s.PathFor(verdict.FramePath)
		if err != nil {
			continue
		}
		dir := filepath.Dir(p)
		if filepath.Dir(dir) != filepath.Clean(s.root) || !strings.HasPrefix(filepath.Base(dir), framesDirPrefix) {
			continue
		}
		dirs[dir] = struct{}{}
	}
	var errs []error
	for dir := range dirs {
		if err := s.Remove(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
