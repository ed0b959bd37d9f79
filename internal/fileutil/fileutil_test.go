package fileutil

import (
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMultipartBodyStreamsAllFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "frame-1.jpg")
	second := filepath.Join(dir, "frame-2.jpg")
	if err := os.WriteFile(first, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	body, contentType, err := MultipartBody([]MultipartFile{
		{Field: "frames", Path: first},
		{Field: "frames", Path: second},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("unexpected content type %q: %v", contentType, err)
	}
	reader := multipart.NewReader(body, params["boundary"])
	var names, contents []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if part.FormName() != "frames" {
			t.Fatalf("unexpected field %q", part.FormName())
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, part.FileName())
		contents = append(contents, string(data))
	}
	if strings.Join(names, ",") != "frame-1.jpg,frame-2.jpg" {
		t.Fatalf("unexpected file names %v", names)
	}
	if strings.Join(contents, ",") != "one,two" {
		t.Fatalf("unexpected contents %v", contents)
	}
}

func TestMultipartBodyRejectsMissingFile(t *testing.T) {
	if _, _, err := MultipartBody([]MultipartFile{{Field: "video", Path: filepath.Join(t.TempDir(), "missing.mp4")}}); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, _, err := MultipartBody(nil); err == nil {
		t.Fatal("expected error for empty file list")
	}
}

func TestReadSnippetLimits(t *testing.T) {
	if got := ReadSnippet(strings.NewReader("  abcdef  "), 5); got != "abc" {
		t.Fatalf("unexpected snippet %q", got)
	}
	if got := ReadSnippet(nil, 10); got != "" {
		t.Fatalf("expected empty snippet, got %q", got)
	}
}
