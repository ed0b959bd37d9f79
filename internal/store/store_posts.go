package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListOptions filters post listings.
type ListOptions struct {
	CreatorID string
	Statuses  []Status
	Limit     int
}

// CreatePost inserts a post with the initial analysis status for its media type.
func (s *Store) CreatePost(ctx context.Context, input NewPost) (*Post, error) {
	if strings.TrimSpace(input.CreatorID) == "" {
		return nil, errors.New("creator is required")
	}
	if input.MediaType != MediaImage && input.MediaType != MediaVideo {
		return nil, fmt.Errorf("unknown media type %q", input.MediaType)
	}
	id := uuid.NewString()
	ts := now()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO posts (id, title, content, media_url, media_path, media_type, creator_id,
            analysis_status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		input.Title,
		input.Content,
		input.MediaURL,
		input.MediaPath,
		input.MediaType,
		input.CreatorID,
		InitialStatus(input.MediaType),
		ts,
		ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("insert post: %s missing after insert", id)
	}
	return post, nil
}

// GetPost fetches a post by identifier. Returns nil when absent.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+postColumns+` `+postFrom+` WHERE p.id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context, opts ListOptions) ([]*Post, error) {
	query := `SELECT ` + postColumns + ` ` + postFrom
	var (
		clauses []string
		args    []any
	)
	if opts.CreatorID != "" {
		clauses = append(clauses, "p.creator_id = ?")
		args = append(args, opts.CreatorID)
	}
	if len(opts.Statuses) > 0 {
		clauses = append(clauses, "p.analysis_status IN ("+makePlaceholders(len(opts.Statuses))+")")
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ToggleLike flips membership of userID in the post's like set and returns the new count.
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, postID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
				postID, userID, now(),
			); err != nil {
				return fmt.Errorf("add like: %w", err)
			}
		}
		return tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM post_likes WHERE post_id = ?`, postID).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LikedBy returns the user ids in the post's like set.
func (s *Store) LikedBy(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT user_id FROM post_likes WHERE post_id = ? ORDER BY created_at, user_id`, postID)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddComment appends a comment and returns it with the author's names.
func (s *Store) AddComment(ctx context.Context, postID, userID, content string) (*Comment, error) {
	ctx = ensureContext(ctx)
	id := uuid.NewString()
	created := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, postID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, post_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, postID, userID, content, formatTime(created),
		)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE posts SET updated_at = ? WHERE id = ?`, formatTime(created), postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	comments, err := s.queryComments(ctx, `c.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, fmt.Errorf("insert comment: %s missing after insert", id)
	}
	return comments[0], nil
}

// ListComments returns a post's comments in insertion order.
func (s *Store) ListComments(ctx context.Context, postID string) ([]*Comment, error) {
	return s.queryComments(ctx, `c.post_id = ?`, postID)
}

func (s *Store) queryComments(ctx context.Context, where string, args ...any) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT c.id, c.post_id, c.user_id, u.username, u.first_name, u.last_name, c.content, c.created_at
         FROM comments c JOIN users u ON u.id = c.user_id
         WHERE `+where+` ORDER BY c.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		var (
			comment    Comment
			createdRaw string
		)
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Username,
			&comment.FirstName, &comment.LastName, &comment.Content, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if created, err := parseTime(createdRaw); err == nil {
			comment.CreatedAt = created
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

// StatusCounts returns the number of posts in each analysis status.
func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT analysis_status, COUNT(1) FROM posts GROUP BY analysis_status`)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func postExists(ctx context.Context, q queryRower, postID string) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts WHERE id = ?`, postID).Scan(&count); err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if count == 0 {
		return ErrPostNotFound
	}
	return nil
}
