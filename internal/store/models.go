package store

import (
	"fmt"
	"strings"
	"time"
)

// MediaType identifies the kind of media attached to a post.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Status is the lifecycle state of a post's deepfake analysis.
type Status string

const (
	StatusNone       Status = "none"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusNone,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known analysis status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// IsTerminal reports whether no automatic transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusNone || s == StatusCompleted || s == StatusFailed
}

// InitialStatus returns the status a freshly created post starts in.
func InitialStatus(media MediaType) Status {
	if media == MediaVideo {
		return StatusProcessing
	}
	return StatusNone
}

// ParseMediaType converts a string into a MediaType.
func ParseMediaType(value string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(value))) {
	case MediaImage:
		return MediaImage, nil
	case MediaVideo:
		return MediaVideo, nil
	default:
		return "", fmt.Errorf("unknown media type %q", value)
	}
}

// User is a registered account.
type User struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}

// FrameAnalysis is the verdict for one extracted frame.
type FrameAnalysis struct {
	Frame      string  `json:"frame"`
	FramePath  string  `json:"frame_path"`
	Confidence float64 `json:"confidence"`
	IsFake     bool    `json:"is_fake"`
}

// Summary aggregates the verdicts of all frames of one video.
type Summary struct {
	Status               string `json:"status"`
	ConfidencePercentage int    `json:"confidence_percentage"`
	TotalFrames          int    `json:"total_frames"`
	RealFrames           int    `json:"real_frames"`
	FakeFrames           int    `json:"fake_frames"`
}

// Analysis is the completed deepfake analysis of a video post.
type Analysis struct {
	FramesAnalysis []FrameAnalysis `json:"frames_analysis"`
	Confidence     float64         `json:"confidence"`
	IsFake         bool            `json:"is_fake"`
	Summary        Summary         `json:"summary"`
}

// Post is a user-submitted media item.
type Post struct {
	ID               string
	Title            string
	Content          string
	MediaURL         string
	MediaPath        string
	MediaType        MediaType
	CreatorID        string
	CreatorUsername  string
	CreatorFirstName string
	CreatorLastName  string
	AnalysisStatus   Status
	Analysis         *Analysis
	AnalysisError    string
	Attempts         int
	ClaimToken       string
	LastHeartbeat    *time.Time
	LikesCount       int
	CommentsCount    int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Comment is one entry in a post's ordered comment list.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Username  string
	FirstName string
	LastName  string
	Content   string
	CreatedAt time.Time
}

// SecondaryAnalysis is the stored result of the alternate detector for a post.
type SecondaryAnalysis struct {
	PostID    string
	Analysis  Analysis
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Claim identifies an analysis run that owns a processing post.
type Claim struct {
	PostID    string
	Token     string
	MediaPath string
	Attempt   int
}

// NewPost holds the fields supplied at post creation.
type NewPost struct {
	Title     string
	Content   string
	MediaURL  string
	MediaPath string
	MediaType MediaType
	CreatorID string
}
