package api

import "deepshield/internal/store"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Profile identifies the author of a post or comment.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Post describes a post in list responses.
type Post struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	MediaURL       string         `json:"media_url"`
	MediaType      string         `json:"media_type"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	Profiles       Profile        `json:"profiles"`
	LikesCount     int            `json:"likes_count"`
	CommentsCount  int            `json:"comments_count"`
	AnalysisStatus string         `json:"analysis_status"`
	AnalysisError  string         `json:"analysis_error,omitempty"`
	Summary        *store.Summary `json:"summary,omitempty"`
}

// PostDetail is the single-post response.
type PostDetail struct {
	Post
	Likes            []string        `json:"likes"`
	Comments         []Comment       `json:"comments"`
	DeepfakeAnalysis *store.Analysis `json:"deepfake_analysis,omitempty"`
}

// Comment is one entry of a post's comment list.
type Comment struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"created_at,omitempty"`
	Profiles  Profile `json:"profiles"`
}

// SecondaryAnalysis is the stored secondary detector record for a post.
type SecondaryAnalysis struct {
	PostID         string                `json:"post_id"`
	IsFake         bool                  `json:"is_fake"`
	Confidence     float64               `json:"confidence"`
	FramesAnalysis []store.FrameAnalysis `json:"frames_analysis"`
	Summary        store.Summary         `json:"summary"`
	CreatedAt      string                `json:"created_at,omitempty"`
	UpdatedAt      string                `json:"updated_at,omitempty"`
}

// LikeResponse is returned by the like toggle.
type LikeResponse struct {
	Likes int `json:"likes"`
}

// SignupResponse is returned by a successful signup.
type SignupResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// SigninUser describes the account in a signin response.
type SigninUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// SigninResponse is returned by a successful signin.
type SigninResponse struct {
	Token string     `json:"token"`
	User  SigninUser `json:"user"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// WorkflowStatus summarizes background analysis state.
type WorkflowStatus struct {
	Running      bool           `json:"running"`
	Workers      int            `json:"workers"`
	ActivePosts  []string       `json:"active_posts"`
	StatusCounts map[string]int `json:"status_counts"`
	LastError    string         `json:"last_error,omitempty"`
	LastPostID   string         `json:"last_post_id,omitempty"`
	StageHealth  []StageHealth  `json:"stage_health"`
}

// StageHealth mirrors readiness reporting for analysis collaborators.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates server runtime information.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Bind         string             `json:"bind"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
