package posts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"deepshield/internal/logging"
	"deepshield/internal/mediastore"
	"deepshield/internal/notifications"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

// publishTimeout bounds a post.created delivery once the request has returned.
const publishTimeout = 30 * time.Second

// Submitter wakes background analysis.
type Submitter interface {
	Submit()
}

// Upload is the media file attached to a new post.
type Upload struct {
	Kind        store.MediaType
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreateRequest carries the fields of a new post.
type CreateRequest struct {
	Title     string
	Content   string
	CreatorID string
	Media     *Upload
}

// Service applies post mutations.
type Service struct {
	store    *store.Store
	media    *mediastore.Store
	queue    Submitter
	notifier notifications.Service
	logger   *slog.Logger

	publishing sync.WaitGroup
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithNotifier publishes post.created events to notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// NewService builds a post service. queue may be nil when analysis is driven elsewhere.
func NewService(st *store.Store, media *mediastore.Store, queue Submitter, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		media:    media,
		queue:    queue,
		notifier: notifications.Noop(),
		logger:   logging.NewComponentLogger(logger, "posts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores the upload and the post record. Video posts start processing.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Post, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if req.Media == nil || req.Media.Body == nil {
		return nil, services.Wrap(services.ErrValidation, "posts", "create", "No media file uploaded", nil)
	}
	if title == "" || content == "" {
		return nil, services.Wrap(services.ErrValidation, "posts", "create", "Title and content are required", nil)
	}
	if err := mediastore.ValidateType(req.Media.Kind, req.Media.ContentType); err != nil {
		return nil, err
	}

	saved, err := s.media.Save(req.Media.Body, req.Media.Filename, req.Media.ContentType)
	if err != nil {
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrTooLarge) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "posts", "create", "Error saving media file", err)
	}

	post, err := s.store.CreatePost(ctx, store.NewPost{
		Title:     title,
		Content:   content,
		MediaURL:  saved.URL,
		MediaPath: saved.Path,
		MediaType: req.Media.Kind,
		CreatorID: req.CreatorID,
	})
	if err != nil {
		if rmErr := s.media.Remove(saved.Path); rmErr != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "orphaned upload not removed", "media_cleanup_failed",
				logging.String("path", saved.Path),
				logging.Error(rmErr),
				logging.String(logging.FieldImpact, "unreferenced file remains in the media directory"),
			)
		}
		return nil, services.Wrap(services.ErrTransient, "posts", "create", "persist post", err)
	}

	logger := logging.WithContext(services.WithPostID(ctx, post.ID), s.logger)
	logger.Info("post created",
		logging.String(logging.FieldEventType, "post_created"),
		logging.String("media_type", string(post.MediaType)),
		logging.String("analysis_status", string(post.AnalysisStatus)),
		logging.Int64("size_bytes", saved.Size),
	)
	if post.AnalysisStatus == store.StatusProcessing && s.queue != nil {
		s.queue.Submit()
	}
	s.publishCreated(ctx, post)
	return post, nil
}

// ToggleLike flips the caller's like on a post and returns the new count.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (int, error) {
	count, err := s.store.ToggleLike(ctx, postID, userID)
	if errors.Is(err, store.ErrPostNotFound) {
		return 0, services.Wrap(services.ErrNotFound, "posts", "like", "Post not found", err)
	}
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "posts", "like", "toggle like", err)
	}
	return count, nil
}

// AddComment appends a comment authored by userID.
func (s *Service) AddComment(ctx context.Context, postID, userID, content string) (*store.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, services.Wrap(services.ErrValidation, "posts", "comment", "Comment content is required", nil)
	}
	comment, err := s.store.AddComment(ctx, postID, userID, content)
	if errors.Is(err, store.ErrPostNotFound) {
		return nil, services.Wrap(services.ErrNotFound, "posts", "comment", "Post not found", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "posts", "comment", "add comment", err)
	}
	return comment, nil
}

// Wait blocks until in-flight notifications have been delivered or timed out.
func (s *Service) Wait() {
	s.publishing.Wait()
}

// publishCreated delivers post.created in the background so a slow sink never
// delays the create response.
func (s *Service) publishCreated(ctx context.Context, post *store.Post) {
	payload := notifications.Payload{
		"post_id":         post.ID,
		"title":           post.Title,
		"media_type":      string(post.MediaType),
		"creator":         post.CreatorUsername,
		"analysis_status": string(post.AnalysisStatus),
	}
	ctx = services.WithPostID(context.WithoutCancel(ctx), post.ID)
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.notifier.Publish(ctx, notifications.EventPostCreated, payload); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notification_failed",
				logging.String("event", string(notifications.EventPostCreated)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "subscribers miss this event"),
			)
		}
	}()
}
