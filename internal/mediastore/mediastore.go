package mediastore

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"deepshield/internal/config"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

// PublicPrefix is the URL path under which media files are served.
const PublicPrefix = "/uploads"

const partialSuffix = ".part"

// framesDirPrefix marks directories created by NewFramesDir.
const framesDirPrefix = "frames_"

var allowedTypes = map[store.MediaType][]string{
	store.MediaImage: {"image/jpeg", "image/png", "image/gif"},
	store.MediaVideo: {"video/mp4", "video/quicktime", "video/x-msvideo"},
}

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// Store persists uploads under a root directory.
type Store struct {
	root     string
	maxBytes int64
	now      func() time.Time
	suffix   func() int64
}

// Saved describes a persisted upload.
type Saved struct {
	Name string
	Path string
	URL  string
	Size int64
}

// New constructs a Store rooted at the configured media directory.
func New(cfg *config.Config) *Store {
	return &Store{
		root:     cfg.Paths.MediaDir,
		maxBytes: cfg.Server.MaxUploadBytes,
		now:      time.Now,
		suffix:   func() int64 { return rand.Int64N(1e9) },
	}
}

// Root returns the media directory.
func (s *Store) Root() string {
	return s.root
}

// AllowedTypes returns the MIME types accepted for a media kind.
func AllowedTypes(kind store.MediaType) []string {
	return slices.Clone(allowedTypes[kind])
}

// ValidateType checks a declared content type against the allow-list for kind.
func ValidateType(kind store.MediaType, contentType string) error {
	allowed, ok := allowedTypes[kind]
	if !ok {
		return services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("unknown media type %q", kind), nil)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !slices.Contains(allowed, strings.ToLower(mediaType)) {
		return services.Wrap(services.ErrValidation, "", "",
			"Invalid file type. Allowed types: "+strings.Join(allowed, ", "), nil)
	}
	return nil
}

// GenerateName returns `<unix-millis>-<random><ext>`.
func (s *Store) GenerateName(ext string) string {
	return fmt.Sprintf("%d-%d%s", s.now().UnixMilli(), s.suffix(), ext)
}

// Save streams r into a new generated file. The original extension is kept
// when it is well formed; otherwise one is derived from contentType.
func (s *Store) Save(r io.Reader, originalName, contentType string) (Saved, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return Saved{}, fmt.Errorf("ensure media directory: %w", err)
	}
	name := s.GenerateName(extensionFor(originalName, contentType))
	target := filepath.Join(s.root, name)
	partial := target + partialSuffix

	out, err := os.OpenFile(partial, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Saved{}, fmt.Errorf("create media file: %w", err)
	}
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr == nil && s.maxBytes > 0 && written > s.maxBytes {
		copyErr = services.Wrap(services.ErrTooLarge, "", "", fmt.Sprintf("media exceeds %d bytes", s.maxBytes), nil)
	}
	if copyErr == nil && written == 0 {
		copyErr = services.Wrap(services.ErrValidation, "", "", "media file is empty", nil)
	}
	if copyErr != nil {
		_ = os.Remove(partial)
		return Saved{}, copyErr
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		return Saved{}, fmt.Errorf("finalize media file: %w", err)
	}
	return Saved{Name: name, Path: target, URL: PublicPrefix + "/" + name, Size: written}, nil
}

// Remove deletes a stored file or directory. Missing paths are ignored.
func (s *Store) Remove(p string) error {
	if p == "" {
		return nil
	}
	if _, err := s.rel(p); err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// NewFramesDir creates `frames_<video>_<millis>_<random>` for the frames of videoPath.
func (s *Store) NewFramesDir(videoPath string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	dir := filepath.Join(s.root, fmt.Sprintf("%s%s_%d_%d", framesDirPrefix, base, s.now().UnixMilli(), s.suffix()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create frames directory: %w", err)
	}
	return dir, nil
}

// URLFor maps a path under the media root to its public URL.
func (s *Store) URLFor(p string) (string, error) {
	rel, err := s.rel(p)
	if err != nil {
		return "", err
	}
	return path.Join(PublicPrefix, filepath.ToSlash(rel)), nil
}

// PathFor maps a public URL back to a path under the media root.
func (s *Store) PathFor(url string) (string, error) {
	if !strings.HasPrefix(url, PublicPrefix+"/") {
		return "", fmt.Errorf("url %q is not under %s", url, PublicPrefix)
	}
	rel := path.Clean(strings.TrimPrefix(url, PublicPrefix+"/"))
	if rel == "." || strings.HasPrefix(rel, "../") || rel == ".." {
		return "", fmt.Errorf("url %q escapes media root", url)
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

func (s *Store) rel(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", fmt.Errorf("resolve media path: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside media root", p)
	}
	return rel, nil
}

func extensionFor(originalName, contentType string) string {
	ext := filepath.Ext(strings.TrimSpace(originalName))
	if extPattern.MatchString(ext) {
		return ext
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
