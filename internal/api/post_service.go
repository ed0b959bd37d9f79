package api

import (
	"context"

	"deepshield/internal/services"
	"deepshield/internal/store"
)

// PostReader abstracts the persistence reads needed for API queries.
type PostReader interface {
	ListPosts(ctx context.Context, opts store.ListOptions) ([]*store.Post, error)
	GetPost(ctx context.Context, id string) (*store.Post, error)
	ListComments(ctx context.Context, postID string) ([]*store.Comment, error)
	LikedBy(ctx context.Context, postID string) ([]string, error)
	GetSecondaryAnalysis(ctx context.Context, postID string) (*store.SecondaryAnalysis, error)
}

// PostService exposes read-only post operations returning API DTOs.
type PostService struct {
	store PostReader
}

// NewPostService constructs a PostService around the provided reader.
func NewPostService(store PostReader) *PostService {
	if store == nil {
		return nil
	}
	return &PostService{store: store}
}

// List returns every post, newest first.
func (s *PostService) List(ctx context.Context) ([]Post, error) {
	return s.list(ctx, store.ListOptions{})
}

// ListByCreator returns the posts authored by userID, newest first.
func (s *PostService) ListByCreator(ctx context.Context, userID string) ([]Post, error) {
	return s.list(ctx, store.ListOptions{CreatorID: userID})
}

// ListFiltered returns posts matching opts.
func (s *PostService) ListFiltered(ctx context.Context, opts store.ListOptions) ([]Post, error) {
	return s.list(ctx, opts)
}

func (s *PostService) list(ctx context.Context, opts store.ListOptions) ([]Post, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	posts, err := s.store.ListPosts(ctx, opts)
	if err != nil {
		return nil, err
	}
	return FromPosts(posts), nil
}

// Describe fetches a post with its comments and full analysis.
func (s *PostService) Describe(ctx context.Context, id string) (*PostDetail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, services.Wrap(services.ErrNotFound, "posts", "get", "Post not found", nil)
	}
	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	likes, err := s.store.LikedBy(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := FromPostDetail(post, comments, likes)
	return &detail, nil
}

// Secondary fetches the stored secondary analysis of a post.
func (s *PostService) Secondary(ctx context.Context, postID string) (*SecondaryAnalysis, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	record, err := s.store.GetSecondaryAnalysis(ctx, postID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, services.Wrap(services.ErrNotFound, "posts", "secondary", "Analysis not found", nil)
	}
	dto := FromSecondary(record)
	return &dto, nil
}
