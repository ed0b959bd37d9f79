package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parent directories) holding size filler
// bytes. Uploads and frames in tests only need to exist with a known length;
// a size <= 0 still writes one byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeWithParents(t, path, bytes.Repeat([]byte{'x'}, int(max(size, 1))), 0o644)
}

// WriteScript writes an executable /bin/sh script, used for stubbing ffmpeg,
// ffprobe, and command detectors.
func WriteScript(t testing.TB, path, body string) {
	t.Helper()
	writeWithParents(t, path, []byte("#!/bin/sh\n"+body), 0o755)
}

func writeWithParents(t testing.TB, path string, data []byte, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
