package api

import (
	"fmt"
	"time"
)

// VerdictLabel renders the analysis outcome of a post for terminal output.
func VerdictLabel(post Post) string {
	switch post.AnalysisStatus {
	case "completed":
		if post.Summary == nil {
			return "completed"
		}
		return fmt.Sprintf("%s (%d%% fake)", post.Summary.Status, post.Summary.ConfidencePercentage)
	case "none", "":
		return "-"
	default:
		return post.AnalysisStatus
	}
}

// ShortID truncates an identifier to its first eight characters.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// ParseTime parses an API timestamp. Unparseable values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{dateTimeFormat, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
