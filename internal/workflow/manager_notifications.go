package workflow

import (
	"context"
	"errors"

	"deepshield/internal/logging"
	"deepshield/internal/notifications"
	"deepshield/internal/store"
)

func (m *Manager) notifyCompleted(ctx context.Context, postID string, analysis store.Analysis) {
	m.publish(ctx, notifications.EventAnalysisCompleted, notifications.Payload{
		"post_id":               postID,
		"title":                 m.postTitle(ctx, postID),
		"verdict":               analysis.Summary.Status,
		"confidence_percentage": analysis.Summary.ConfidencePercentage,
		"total_frames":          analysis.Summary.TotalFrames,
	})
}

func (m *Manager) notifyFailed(ctx context.Context, postID, message string) {
	m.publish(ctx, notifications.EventAnalysisFailed, notifications.Payload{
		"post_id": postID,
		"title":   m.postTitle(ctx, postID),
		"error":   message,
	})
}

func (m *Manager) postTitle(ctx context.Context, postID string) string {
	post, err := m.store.GetPost(ctx, postID)
	if err != nil || post == nil {
		return ""
	}
	return post.Title
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, notification not sent", logging.String("event", string(event)))
			return
		}
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "subscribers miss this event"),
		)
	}
}
