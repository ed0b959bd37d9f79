package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"deepshield/internal/store"
	"deepshield/internal/testsupport"
)

func sampleAnalysis() store.Analysis {
	return store.Analysis{
		FramesAnalysis: []store.FrameAnalysis{
			{Frame: "frame-1.jpg", FramePath: "/uploads/frames_x/frame-1.jpg", Confidence: 0.9, IsFake: true},
			{Frame: "frame-2.jpg", FramePath: "/uploads/frames_x/frame-2.jpg", Confidence: 0.2, IsFake: false},
		},
		Confidence: 0.55,
		IsFake:     false,
		Summary:    store.Summary{Status: "REAL", ConfidencePercentage: 50, TotalFrames: 2, RealFrames: 1, FakeFrames: 1},
	}
}

func TestCreatePostAssignsInitialStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	user := testsupport.NewUser(t, st, "alice@example.com")

	image := testsupport.NewPost(t, cfg, st, user, store.MediaImage)
	if image.AnalysisStatus != store.StatusNone {
		t.Fatalf("expected image status none, got %s", image.AnalysisStatus)
	}
	video := testsupport.NewPost(t, cfg, st, user, store.MediaVideo)
	if video.AnalysisStatus != store.StatusProcessing {
		t.Fatalf("expected video status processing, got %s", video.AnalysisStatus)
	}
	if video.Analysis != nil {
		t.Fatal("expected no analysis on a fresh video post")
	}
	if video.CreatorUsername != "alice@example.com" {
		t.Fatalf("unexpected creator username %q", video.CreatorUsername)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "Bob@Example.com", "Bob", "Builder", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := st.CreateUser(ctx, "bob@example.com", "Bob", "Again", "hash"); !errors.Is(err, store.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	found, err := st.UserByUsername(ctx, "BOB@example.com")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	if found == nil || found.FirstName != "Bob" {
		t.Fatalf("unexpected user: %#v", found)
	}
	missing, err := st.UserByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil user, got %#v %v", missing, err)
	}
}

func TestListPostsNewestFirstWithCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	alice := testsupport.NewUser(t, st, "alice@example.com")
	bob := testsupport.NewUser(t, st, "bob@example.com")

	first := testsupport.NewPost(t, cfg, st, alice, store.MediaImage)
	second := testsupport.NewPost(t, cfg, st, bob, store.MediaVideo)

	if _, err := st.ToggleLike(ctx, first.ID, bob.ID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if _, err := st.AddComment(ctx, first.ID, bob.ID, "nice"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	posts, err := st.ListPosts(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Fatalf("expected newest first, got %s then %s", posts[0].ID, posts[1].ID)
	}
	if posts[1].LikesCount != 1 || posts[1].CommentsCount != 1 {
		t.Fatalf("unexpected counts: likes=%d comments=%d", posts[1].LikesCount, posts[1].CommentsCount)
	}

	mine, err := st.ListPosts(ctx, store.ListOptions{CreatorID: alice.ID})
	if err != nil {
		t.Fatalf("ListPosts creator: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("unexpected creator listing: %#v", mine)
	}

	processing, err := st.ListPosts(ctx, store.ListOptions{Statuses: []store.Status{store.StatusProcessing}})
	if err != nil {
		t.Fatalf("ListPosts status: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != second.ID {
		t.Fatalf("unexpected status listing: %#v", processing)
	}
}

func TestToggleLikeIsIdempotentPair(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "carol@example.com")
	post := testsupport.NewPost(t, cfg, st, user, store.MediaImage)

	count, err := st.ToggleLike(ctx, post.ID, user.ID)
	if err != nil || count != 1 {
		t.Fatalf("first toggle: count=%d err=%v", count, err)
	}
	likers, err := st.LikedBy(ctx, post.ID)
	if err != nil || len(likers) != 1 || likers[0] != user.ID {
		t.Fatalf("unexpected likers %v err=%v", likers, err)
	}
	count, err = st.ToggleLike(ctx, post.ID, user.ID)
	if err != nil || count != 0 {
		t.Fatalf("second toggle: count=%d err=%v", count, err)
	}
	if _, err := st.ToggleLike(ctx, "missing", user.ID); !errors.Is(err, store.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestCommentsKeepInsertionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "dave@example.com")
	post := testsupport.NewPost(t, cfg, st, user, store.MediaImage)

	for _, content := range []string{"one", "two", "three"} {
		comment, err := st.AddComment(ctx, post.ID, user.ID, content)
		if err != nil {
			t.Fatalf("AddComment: %v", err)
		}
		if comment.Username != "dave@example.com" || comment.Content != content {
			t.Fatalf("unexpected comment %#v", comment)
		}
	}
	comments, err := st.ListComments(ctx, post.ID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 3 || comments[0].Content != "one" || comments[2].Content != "three" {
		t.Fatalf("unexpected comment order: %#v", comments)
	}
	if _, err := st.AddComment(ctx, "missing", user.ID, "x"); !errors.Is(err, store.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestClaimCompleteWritesStatusAndAnalysisTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "erin@example.com")
	testsupport.NewPost(t, cfg, st, user, store.MediaImage)
	video := testsupport.NewPost(t, cfg, st, user, store.MediaVideo)

	claim, err := st.ClaimNextAnalysis(ctx)
	if err != nil {
		t.Fatalf("ClaimNextAnalysis: %v", err)
	}
	if claim == nil || claim.PostID != video.ID || claim.Token == "" || claim.Attempt != 1 {
		t.Fatalf("unexpected claim %#v", claim)
	}
	again, err := st.ClaimNextAnalysis(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no second claim for the same post, got %#v", again)
	}

	ok, err := st.UpdateHeartbeat(ctx, *claim)
	if err != nil || !ok {
		t.Fatalf("UpdateHeartbeat ok=%v err=%v", ok, err)
	}

	ok, err = st.CompleteAnalysis(ctx, *claim, sampleAnalysis())
	if err != nil || !ok {
		t.Fatalf("CompleteAnalysis ok=%v err=%v", ok, err)
	}
	post, err := st.GetPost(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.AnalysisStatus != store.StatusCompleted || post.Analysis == nil {
		t.Fatalf("expected completed with analysis, got %s %#v", post.AnalysisStatus, post.Analysis)
	}
	if len(post.Analysis.FramesAnalysis) != 2 || post.Analysis.FramesAnalysis[0].Frame != "frame-1.jpg" {
		t.Fatalf("unexpected frames %#v", post.Analysis.FramesAnalysis)
	}
	if post.ClaimToken != "" || post.LastHeartbeat != nil {
		t.Fatal("expected claim cleared on completion")
	}

	ok, err = st.FailAnalysis(ctx, *claim, "late failure")
	if err != nil {
		t.Fatalf("FailAnalysis: %v", err)
	}
	if ok {
		t.Fatal("expected terminal status to reject a late failure")
	}
}

func TestStaleClaimCannotOverwriteNewerRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "frank@example.com")
	video := testsupport.NewPost(t, cfg, st, user, store.MediaVideo)

	stale, err := st.ClaimNextAnalysis(ctx)
	if err != nil || stale == nil {
		t.Fatalf("claim: %#v %v", stale, err)
	}
	reclaimed, err := st.ReclaimStaleClaims(ctx, time.Now().Add(time.Minute))
	if err != nil || reclaimed != 1 {
		t.Fatalf("ReclaimStaleClaims n=%d err=%v", reclaimed, err)
	}
	fresh, err := st.ClaimNextAnalysis(ctx)
	if err != nil || fresh == nil || fresh.Token == stale.Token {
		t.Fatalf("expected a fresh claim, got %#v %v", fresh, err)
	}
	if fresh.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", fresh.Attempt)
	}

	ok, err := st.CompleteAnalysis(ctx, *stale, sampleAnalysis())
	if err != nil || ok {
		t.Fatalf("expected stale completion to be a no-op, ok=%v err=%v", ok, err)
	}
	ok, err = st.FailAnalysis(ctx, *fresh, "detector exploded")
	if err != nil || !ok {
		t.Fatalf("FailAnalysis ok=%v err=%v", ok, err)
	}
	post, err := st.GetPost(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.AnalysisStatus != store.StatusFailed || post.Analysis != nil || post.AnalysisError != "detector exploded" {
		t.Fatalf("unexpected failed post %#v", post)
	}
}

func TestReleaseAndResetClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "gail@example.com")
	testsupport.NewPost(t, cfg, st, user, store.MediaVideo)

	claim, err := st.ClaimNextAnalysis(ctx)
	if err != nil || claim == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := st.ReleaseClaim(ctx, *claim); err != nil {
		t.Fatalf("ReleaseClaim: %v", err)
	}
	claim, err = st.ClaimNextAnalysis(ctx)
	if err != nil || claim == nil {
		t.Fatalf("expected released post to be claimable: %v", err)
	}
	n, err := st.ResetClaims(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetClaims n=%d err=%v", n, err)
	}
}

func TestRequeueAnalysisOnlyFromTerminalVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "hank@example.com")
	image := testsupport.NewPost(t, cfg, st, user, store.MediaImage)
	video := testsupport.NewPost(t, cfg, st, user, store.MediaVideo)

	if ok, err := st.RequeueAnalysis(ctx, video.ID); err != nil || ok {
		t.Fatalf("expected processing post to be rejected, ok=%v err=%v", ok, err)
	}
	if ok, err := st.RequeueAnalysis(ctx, image.ID); err != nil || ok {
		t.Fatalf("expected image post to be rejected, ok=%v err=%v", ok, err)
	}

	claim, err := st.ClaimNextAnalysis(ctx)
	if err != nil || claim == nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := st.CompleteAnalysis(ctx, *claim, sampleAnalysis()); err != nil {
		t.Fatalf("CompleteAnalysis: %v", err)
	}
	ok, err := st.RequeueAnalysis(ctx, video.ID)
	if err != nil || !ok {
		t.Fatalf("RequeueAnalysis ok=%v err=%v", ok, err)
	}
	post, err := st.GetPost(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.AnalysisStatus != store.StatusProcessing || post.Analysis != nil {
		t.Fatalf("expected processing without analysis, got %s %#v", post.AnalysisStatus, post.Analysis)
	}

	counts, err := st.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[store.StatusProcessing] != 1 || counts[store.StatusNone] != 1 {
		t.Fatalf("unexpected counts %#v", counts)
	}
}

func TestSecondaryAnalysisUpsert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	user := testsupport.NewUser(t, st, "ivy@example.com")
	video := testsupport.NewPost(t, cfg, st, user, store.MediaVideo)

	missing, err := st.GetSecondaryAnalysis(ctx, video.ID)
	if err != nil || missing != nil {
		t.Fatalf("expected no record, got %#v %v", missing, err)
	}
	if _, err := st.SaveSecondaryAnalysis(ctx, video.ID, sampleAnalysis()); err != nil {
		t.Fatalf("SaveSecondaryAnalysis: %v", err)
	}
	replaced := sampleAnalysis()
	replaced.IsFake = true
	replaced.Summary.Status = "FAKE"
	record, err := st.SaveSecondaryAnalysis(ctx, video.ID, replaced)
	if err != nil {
		t.Fatalf("SaveSecondaryAnalysis replace: %v", err)
	}
	if !record.Analysis.IsFake || record.Analysis.Summary.Status != "FAKE" {
		t.Fatalf("expected replaced record, got %#v", record.Analysis)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	user := testsupport.NewUser(t, st, "jack@example.com")
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	found, err := reopened.UserByID(context.Background(), user.ID)
	if err != nil || found == nil {
		t.Fatalf("expected user after reopen, got %#v %v", found, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := sql.Open("sqlite", "file:"+cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := store.ParseStatus(" Completed "); !ok || status != store.StatusCompleted {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := store.ParseStatus("queued"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if store.StatusProcessing.IsTerminal() {
		t.Fatal("processing must not be terminal")
	}
	if !store.StatusFailed.IsTerminal() {
		t.Fatal("failed must be terminal")
	}
}
