package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimNextAnalysis assigns a fresh claim token to the oldest processing post
// that no run owns yet. Returns nil when nothing is pending.
func (s *Store) ClaimNextAnalysis(ctx context.Context) (*Claim, error) {
	ctx = ensureContext(ctx)
	token := uuid.NewString()
	ts := now()
	claim, err := retryBusy(ctx, func() (*Claim, error) {
		row := s.db.QueryRowContext(ctx,
			`UPDATE posts
             SET claim_token = ?, last_heartbeat = ?, analysis_attempts = analysis_attempts + 1, updated_at = ?
             WHERE id = (
                 SELECT id FROM posts
                 WHERE analysis_status = ? AND claim_token IS NULL
                 ORDER BY created_at, rowid
                 LIMIT 1
             )
             RETURNING id, media_path, analysis_attempts`,
			token, ts, ts, StatusProcessing,
		)
		c := Claim{Token: token}
		if err := row.Scan(&c.PostID, &c.MediaPath, &c.Attempt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return &c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim analysis: %w", err)
	}
	return claim, nil
}

// UpdateHeartbeat refreshes the heartbeat of a claimed run. Returns false when
// the claim is no longer current.
func (s *Store) UpdateHeartbeat(ctx context.Context, claim Claim) (bool, error) {
	ts := now()
	res, err := s.execWithRetry(ctx,
		`UPDATE posts SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND claim_token = ? AND analysis_status = ?`,
		ts, ts, claim.PostID, claim.Token, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("update heartbeat: %w", err)
	}
	return affectedOne(res)
}

// CompleteAnalysis stores the analysis and marks the post completed in one
// statement. It only applies while the claim is current.
func (s *Store) CompleteAnalysis(ctx context.Context, claim Claim, analysis Analysis) (bool, error) {
	payload, err := encodeAnalysis(analysis)
	if err != nil {
		return false, err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE posts
         SET analysis_status = ?, analysis_json = ?, analysis_error = NULL,
             claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND claim_token = ? AND analysis_status = ?`,
		StatusCompleted, payload, now(), claim.PostID, claim.Token, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("complete analysis: %w", err)
	}
	return affectedOne(res)
}

// FailAnalysis marks the post failed and discards any analysis payload. It only
// applies while the claim is current.
func (s *Store) FailAnalysis(ctx context.Context, claim Claim, message string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE posts
         SET analysis_status = ?, analysis_json = NULL, analysis_error = ?,
             claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND claim_token = ? AND analysis_status = ?`,
		StatusFailed, message, now(), claim.PostID, claim.Token, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("fail analysis: %w", err)
	}
	return affectedOne(res)
}

// ReleaseClaim returns a claimed post to the pending pool without changing its status.
func (s *Store) ReleaseClaim(ctx context.Context, claim Claim) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE posts SET claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND claim_token = ?`,
		now(), claim.PostID, claim.Token,
	); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// ResetClaims releases every claim. Used at startup, when no run of this
// process can own a post yet.
func (s *Store) ResetClaims(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE posts SET claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE claim_token IS NOT NULL`,
		now(),
	)
	if err != nil {
		return 0, fmt.Errorf("reset claims: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStaleClaims releases claims whose heartbeat is older than cutoff so
// another run can pick the post up.
func (s *Store) ReclaimStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE posts SET claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE analysis_status = ? AND claim_token IS NOT NULL
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		now(), StatusProcessing, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale claims: %w", err)
	}
	return res.RowsAffected()
}

// RequeueAnalysis moves a video post in a terminal status back to processing,
// clearing its previous result. Returns false when the post is missing, is an
// image, or is already processing.
func (s *Store) RequeueAnalysis(ctx context.Context, postID string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE posts
         SET analysis_status = ?, analysis_json = NULL, analysis_error = NULL,
             claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND media_type = ? AND analysis_status IN (?, ?)`,
		StatusProcessing, now(), postID, MediaVideo, StatusCompleted, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("requeue analysis: %w", err)
	}
	return affectedOne(res)
}

// SaveSecondaryAnalysis stores or replaces the alternate detector result for a post.
func (s *Store) SaveSecondaryAnalysis(ctx context.Context, postID string, analysis Analysis) (*SecondaryAnalysis, error) {
	payload, err := encodeAnalysis(analysis)
	if err != nil {
		return nil, err
	}
	ts := now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO secondary_analyses (post_id, analysis_json, created_at, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(post_id) DO UPDATE SET analysis_json = excluded.analysis_json, updated_at = excluded.updated_at`,
		postID, payload, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("save secondary analysis: %w", err)
	}
	record, err := s.GetSecondaryAnalysis(ctx, postID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("save secondary analysis: %s missing after insert", postID)
	}
	return record, nil
}

// GetSecondaryAnalysis fetches the stored alternate detector result. Returns nil when absent.
func (s *Store) GetSecondaryAnalysis(ctx context.Context, postID string) (*SecondaryAnalysis, error) {
	var (
		payload    string
		createdRaw string
		updatedRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT analysis_json, created_at, updated_at FROM secondary_analyses WHERE post_id = ?`, postID,
	).Scan(&payload, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secondary analysis: %w", err)
	}
	analysis, err := decodeAnalysis(payload)
	if err != nil {
		return nil, fmt.Errorf("decode secondary analysis: %w", err)
	}
	record := &SecondaryAnalysis{PostID: postID, Analysis: *analysis}
	if created, err := parseTime(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
