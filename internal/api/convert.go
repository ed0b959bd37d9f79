package api

import (
	"slices"
	"strings"
	"time"

	"deepshield/internal/auth"
	"deepshield/internal/store"
	"deepshield/internal/workflow"
)

// FromPost converts a post record to its list representation.
func FromPost(post *store.Post) Post {
	if post == nil {
		return Post{}
	}
	dto := Post{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		MediaURL:  post.MediaURL,
		MediaType: string(post.MediaType),
		CreatedAt: FormatTime(post.CreatedAt),
		UpdatedAt: FormatTime(post.UpdatedAt),
		Profiles: Profile{
			Username:    post.CreatorUsername,
			DisplayName: auth.DisplayName(post.CreatorFirstName, post.CreatorLastName, post.CreatorUsername),
		},
		LikesCount:     post.LikesCount,
		CommentsCount:  post.CommentsCount,
		AnalysisStatus: string(post.AnalysisStatus),
		AnalysisError:  post.AnalysisError,
	}
	if post.Analysis != nil {
		summary := post.Analysis.Summary
		dto.Summary = &summary
	}
	return dto
}

// FromPosts converts a slice of post records.
func FromPosts(posts []*store.Post) []Post {
	out := make([]Post, 0, len(posts))
	for _, post := range posts {
		if post == nil {
			continue
		}
		out = append(out, FromPost(post))
	}
	return out
}

// FromPostDetail builds the single-post response.
func FromPostDetail(post *store.Post, comments []*store.Comment, likes []string) PostDetail {
	detail := PostDetail{
		Post:     FromPost(post),
		Likes:    append([]string{}, likes...),
		Comments: make([]Comment, 0, len(comments)),
	}
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		detail.Comments = append(detail.Comments, FromComment(comment))
	}
	if post != nil && post.Analysis != nil {
		analysis := *post.Analysis
		analysis.FramesAnalysis = slices.Clone(post.Analysis.FramesAnalysis)
		detail.DeepfakeAnalysis = &analysis
	}
	return detail
}

// FromComment converts a comment record.
func FromComment(comment *store.Comment) Comment {
	if comment == nil {
		return Comment{}
	}
	return Comment{
		ID:        comment.ID,
		Content:   comment.Content,
		CreatedAt: FormatTime(comment.CreatedAt),
		Profiles: Profile{
			Username:    comment.Username,
			DisplayName: auth.DisplayName(comment.FirstName, comment.LastName, comment.Username),
		},
	}
}

// FromSecondary converts a stored secondary analysis.
func FromSecondary(record *store.SecondaryAnalysis) SecondaryAnalysis {
	if record == nil {
		return SecondaryAnalysis{}
	}
	frames := record.Analysis.FramesAnalysis
	if frames == nil {
		frames = []store.FrameAnalysis{}
	}
	return SecondaryAnalysis{
		PostID:         record.PostID,
		IsFake:         record.Analysis.IsFake,
		Confidence:     record.Analysis.Confidence,
		FramesAnalysis: frames,
		Summary:        record.Analysis.Summary,
		CreatedAt:      FormatTime(record.CreatedAt),
		UpdatedAt:      FormatTime(record.UpdatedAt),
	}
}

// FromSigninSession builds the signin response.
func FromSigninSession(session *auth.Session) SigninResponse {
	if session == nil || session.User == nil {
		return SigninResponse{}
	}
	user := session.User
	return SigninResponse{
		Token: session.Token,
		User: SigninUser{
			ID:          user.ID,
			Username:    user.Username,
			Email:       user.Username,
			DisplayName: auth.DisplayName(user.FirstName, user.LastName, user.Username),
		},
	}
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	active := summary.ActivePosts
	if active == nil {
		active = []string{}
	}
	return WorkflowStatus{
		Running:      summary.Running,
		Workers:      summary.Workers,
		ActivePosts:  active,
		StatusCounts: MergeStatusCounts(summary.StatusCounts),
		LastError:    summary.LastError,
		LastPostID:   summary.LastPostID,
		StageHealth:  StageHealthSlice(summary.Health),
	}
}

// MergeStatusCounts produces a string-keyed count map that always lists every status.
func MergeStatusCounts(counts map[store.Status]int) map[string]int {
	out := make(map[string]int, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		out[string(status)] = counts[status]
	}
	return out
}

// StageHealthSlice converts stage health records into a slice sorted by name.
func StageHealthSlice(health []workflow.StageHealth) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	slices.SortFunc(out, func(a, b StageHealth) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
