package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"deepshield/internal/config"
	"deepshield/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewUser creates an account with a placeholder password hash.
func NewUser(t testing.TB, st *store.Store, username string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, "Test", "User", "hash")
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// NewPost creates a post of the given media type owned by creator. Video posts
// get a small placeholder file under the media directory.
func NewPost(t testing.TB, cfg *config.Config, st *store.Store, creator *store.User, media store.MediaType) *store.Post {
	t.Helper()

	name := fmt.Sprintf("%s-%s.bin", media, t.Name())
	name = filepath.Base(filepath.Clean("/" + name))
	path := filepath.Join(cfg.Paths.MediaDir, name)
	WriteFile(t, path, 1024)

	post, err := st.CreatePost(context.Background(), store.NewPost{
		Title:     "Post " + string(media),
		Content:   "content",
		MediaURL:  "/uploads/" + name,
		MediaPath: path,
		MediaType: media,
		CreatorID: creator.ID,
	})
	if err != nil {
		t.Fatalf("store.CreatePost: %v", err)
	}
	return post
}
