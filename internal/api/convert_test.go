package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"deepshield/internal/auth"
	"deepshield/internal/store"
	"deepshield/internal/workflow"
)

func samplePost() *store.Post {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &store.Post{
		ID:               "post-1",
		Title:            "Clip",
		Content:          "watch",
		MediaURL:         "/uploads/1-2.mp4",
		MediaType:        store.MediaVideo,
		CreatorUsername:  "ana@example.com",
		CreatorFirstName: "ana",
		CreatorLastName:  "lópez",
		AnalysisStatus:   store.StatusCompleted,
		Analysis: &store.Analysis{
			FramesAnalysis: []store.FrameAnalysis{
				{Frame: "frame-1.jpg", FramePath: "/uploads/f/frame-1.jpg", Confidence: 0.9, IsFake: true},
				{Frame: "frame-2.jpg", FramePath: "/uploads/f/frame-2.jpg", Confidence: 0.7, IsFake: false},
			},
			Confidence: 0.8,
			Summary:    store.Summary{Status: "REAL", ConfidencePercentage: 50, TotalFrames: 2, RealFrames: 1, FakeFrames: 1},
		},
		LikesCount:    3,
		CommentsCount: 1,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestFromPostCarriesSummaryNotFrames(t *testing.T) {
	dto := FromPost(samplePost())
	if dto.Summary == nil || dto.Summary.TotalFrames != 2 {
		t.Fatalf("expected summary, got %+v", dto.Summary)
	}
	if dto.Profiles.Username != "ana@example.com" || dto.Profiles.DisplayName != "Ana López" {
		t.Fatalf("unexpected profile: %+v", dto.Profiles)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected created_at: %q", dto.CreatedAt)
	}
	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, key := range []string{`"media_url"`, `"likes_count":3`, `"comments_count":1`, `"analysis_status":"completed"`, `"confidence_percentage":50`} {
		if !strings.Contains(body, key) {
			t.Fatalf("expected %s in %s", key, body)
		}
	}
	if strings.Contains(body, "frames_analysis") {
		t.Fatalf("list entries must not carry frame verdicts: %s", body)
	}
}

func TestFromPostWithoutAnalysisOmitsSummary(t *testing.T) {
	post := samplePost()
	post.AnalysisStatus = store.StatusProcessing
	post.Analysis = nil
	raw, err := json.Marshal(FromPost(post))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "summary") {
		t.Fatalf("expected no summary, got %s", raw)
	}
}

func TestFromPostDetailIncludesCommentsAndAnalysis(t *testing.T) {
	post := samplePost()
	comments := []*store.Comment{{ID: "c1", Content: "hi", Username: "bo@example.com", FirstName: "bo", LastName: "kim", CreatedAt: post.CreatedAt}}
	detail := FromPostDetail(post, comments, []string{"u1"})
	if len(detail.Comments) != 1 || detail.Comments[0].Profiles.DisplayName != "Bo Kim" {
		t.Fatalf("unexpected comments: %+v", detail.Comments)
	}
	if detail.DeepfakeAnalysis == nil || len(detail.DeepfakeAnalysis.FramesAnalysis) != 2 {
		t.Fatalf("expected full analysis, got %+v", detail.DeepfakeAnalysis)
	}
	detail.DeepfakeAnalysis.FramesAnalysis[0].Frame = "mutated"
	if post.Analysis.FramesAnalysis[0].Frame != "frame-1.jpg" {
		t.Fatal("detail must not alias the stored analysis")
	}

	empty := FromPostDetail(post, nil, nil)
	raw, err := json.Marshal(empty)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"comments":[]`) || !strings.Contains(string(raw), `"likes":[]`) {
		t.Fatalf("expected empty arrays, got %s", raw)
	}
}

func TestFromSecondaryFlattensAnalysis(t *testing.T) {
	record := &store.SecondaryAnalysis{PostID: "post-1", Analysis: *samplePost().Analysis}
	dto := FromSecondary(record)
	if dto.PostID != "post-1" || len(dto.FramesAnalysis) != 2 || dto.Summary.Status != "REAL" {
		t.Fatalf("unexpected secondary dto: %+v", dto)
	}
}

func TestFromSigninSessionUsesUsernameAsEmail(t *testing.T) {
	resp := FromSigninSession(&auth.Session{Token: "tok", User: &store.User{ID: "u1", Username: "ana@example.com", FirstName: "Ana", LastName: "Diaz"}})
	if resp.Token != "tok" || resp.User.Email != "ana@example.com" || resp.User.Username != "ana@example.com" {
		t.Fatalf("unexpected signin response: %+v", resp)
	}
}

func TestFromStatusSummaryFillsEveryStatus(t *testing.T) {
	wf := FromStatusSummary(workflow.StatusSummary{
		Running:      true,
		Workers:      2,
		StatusCounts: map[store.Status]int{store.StatusProcessing: 4},
		Health: []workflow.StageHealth{
			workflow.UnhealthyStage("detector", "unreachable"),
			workflow.HealthyStage("database"),
		},
	})
	if !wf.Running || wf.Workers != 2 {
		t.Fatalf("unexpected workflow status: %+v", wf)
	}
	if wf.StatusCounts["processing"] != 4 || wf.StatusCounts["failed"] != 0 || len(wf.StatusCounts) != 4 {
		t.Fatalf("unexpected counts: %v", wf.StatusCounts)
	}
	if len(wf.StageHealth) != 2 || wf.StageHealth[0].Name != "database" || wf.StageHealth[1].Ready {
		t.Fatalf("unexpected health: %+v", wf.StageHealth)
	}
	if wf.ActivePosts == nil {
		t.Fatal("expected non-nil active posts")
	}
}

func TestVerdictLabel(t *testing.T) {
	tests := []struct {
		post Post
		want string
	}{
		{FromPost(samplePost()), "REAL (50% fake)"},
		{Post{AnalysisStatus: "processing"}, "processing"},
		{Post{AnalysisStatus: "failed"}, "failed"},
		{Post{AnalysisStatus: "none"}, "-"},
	}
	for _, tc := range tests {
		if got := VerdictLabel(tc.post); got != tc.want {
			t.Fatalf("VerdictLabel(%s) = %q, want %q", tc.post.AnalysisStatus, got, tc.want)
		}
	}
	if ShortID("0123456789") != "01234567" || ShortID("abc") != "abc" {
		t.Fatal("unexpected ShortID behaviour")
	}
	if ParseTime("2026-03-01T12:00:00.000Z").IsZero() {
		t.Fatal("expected parsed time")
	}
}
