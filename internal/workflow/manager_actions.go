package workflow

import (
	"context"
	"errors"
	"time"

	"deepshield/internal/logging"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

// Reanalyze moves a completed or failed video post back to processing and
// wakes a lane. Image posts are rejected as invalid and posts already being
// analysed as a conflict.
func (m *Manager) Reanalyze(ctx context.Context, postID string) (*store.Post, error) {
	post, err := m.videoPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AnalysisStatus == store.StatusProcessing {
		return nil, services.Wrap(services.ErrConflict, "", "", "Analysis already in progress", nil)
	}
	ok, err := m.store.RequeueAnalysis(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, services.Wrap(services.ErrConflict, "", "", "Analysis already in progress", nil)
	}
	logging.WithContext(services.WithPostID(ctx, postID), m.logger).Info("analysis requeued",
		logging.String(logging.FieldEventType, "analysis_requeued"),
		logging.String("previous_status", string(post.AnalysisStatus)),
	)
	m.discardFrames(ctx, postID, post.Analysis)
	m.Submit()

	updated, err := m.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "", "Post not found", nil)
	}
	return updated, nil
}

// SecondaryEnabled reports whether a secondary detector is configured.
func (m *Manager) SecondaryEnabled() bool {
	return m.secondary != nil
}

// RunSecondary analyses a video post with the secondary detector and stores
// the result, replacing any previous one. At most one run per post is allowed
// at a time.
func (m *Manager) RunSecondary(ctx context.Context, postID string) (*store.SecondaryAnalysis, error) {
	if m.secondary == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "", "Secondary detector not configured", nil)
	}
	post, err := m.videoPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !m.acquireSecondary(postID) {
		return nil, services.Wrap(services.ErrConflict, "", "", "Secondary analysis already in progress", nil)
	}
	defer m.releaseSecondary(postID)

	runCtx := services.WithPostID(ctx, postID)
	logger := logging.WithContext(runCtx, m.logger)
	runCtx, cancel := context.WithTimeout(runCtx, m.timeout)
	defer cancel()

	started := time.Now()
	analysis, err := m.secondary.Run(runCtx, post.MediaPath)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, "secondary", "run", "analysis deadline exceeded", err)
		}
		logging.ErrorWithContext(logger, "secondary analysis failed", "secondary_failed", logging.Error(err))
		return nil, err
	}
	previous, err := m.store.GetSecondaryAnalysis(ctx, postID)
	if err != nil {
		return nil, err
	}
	record, err := m.store.SaveSecondaryAnalysis(ctx, postID, analysis)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		m.discardFrames(ctx, postID, &previous.Analysis)
	}
	logger.Info("secondary analysis stored",
		logging.String(logging.FieldEventType, "secondary_completed"),
		logging.String("verdict", analysis.Summary.Status),
		logging.Duration("elapsed", time.Since(started)),
	)
	return record, nil
}

func (m *Manager) discardFrames(ctx context.Context, postID string, superseded *store.Analysis) {
	if m.frames == nil || superseded == nil {
		return
	}
	if err := m.frames.RemoveAnalysisFrames(*superseded); err != nil {
		logging.WarnWithContext(logging.WithContext(services.WithPostID(ctx, postID), m.logger),
			"superseded frames not removed", "frames_cleanup_failed", logging.Error(err))
	}
}

func (m *Manager) videoPost(ctx context.Context, postID string) (*store.Post, error) {
	post, err := m.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "", "Post not found", nil)
	}
	if post.MediaType != store.MediaVideo {
		return nil, services.Wrap(services.ErrValidation, "", "", "Only video posts can be analyzed", nil)
	}
	return post, nil
}

func (m *Manager) acquireSecondary(postID string) bool {
	m.secondaryMu.Lock()
	defer m.secondaryMu.Unlock()
	if _, busy := m.secondaryInflight[postID]; busy {
		return false
	}
	m.secondaryInflight[postID] = struct{}{}
	return true
}

func (m *Manager) releaseSecondary(postID string) {
	m.secondaryMu.Lock()
	delete(m.secondaryInflight, postID)
	m.secondaryMu.Unlock()
}
