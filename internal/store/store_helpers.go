package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const postColumns = `p.id, p.title, p.content, p.media_url, p.media_path, p.media_type, p.creator_id,
    u.username, u.first_name, u.last_name, p.analysis_status, p.analysis_json, p.analysis_error, p.analysis_attempts,
    p.claim_token, p.last_heartbeat, p.created_at, p.updated_at,
    (SELECT COUNT(1) FROM post_likes l WHERE l.post_id = p.id),
    (SELECT COUNT(1) FROM comments c WHERE c.post_id = p.id)`

const postFrom = `FROM posts p JOIN users u ON u.id = p.creator_id`

func scanPost(scanner interface{ Scan(dest ...any) error }) (*Post, error) {
	var (
		post          Post
		mediaType     string
		statusStr     string
		analysisJSON  sql.NullString
		analysisError sql.NullString
		claimToken    sql.NullString
		heartbeatRaw  sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.MediaURL,
		&post.MediaPath,
		&mediaType,
		&post.CreatorID,
		&post.CreatorUsername,
		&post.CreatorFirstName,
		&post.CreatorLastName,
		&statusStr,
		&analysisJSON,
		&analysisError,
		&post.Attempts,
		&claimToken,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
		&post.LikesCount,
		&post.CommentsCount,
	); err != nil {
		return nil, err
	}

	post.MediaType = MediaType(mediaType)
	post.AnalysisStatus = Status(statusStr)
	post.AnalysisError = analysisError.String
	post.ClaimToken = claimToken.String
	if analysisJSON.Valid && analysisJSON.String != "" {
		analysis, err := decodeAnalysis(analysisJSON.String)
		if err != nil {
			return nil, fmt.Errorf("decode analysis for post %s: %w", post.ID, err)
		}
		post.Analysis = analysis
	}
	if created, err := parseTime(createdRaw); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		post.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTime(heartbeatRaw.String); err == nil {
			post.LastHeartbeat = &heartbeat
		}
	}
	return &post, nil
}

func encodeAnalysis(analysis Analysis) (string, error) {
	if analysis.FramesAnalysis == nil {
		analysis.FramesAnalysis = []FrameAnalysis{}
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	return string(data), nil
}

func decodeAnalysis(raw string) (*Analysis, error) {
	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func now() string {
	return formatTime(time.Now())
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
