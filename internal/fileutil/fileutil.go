package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// MultipartFile names one file to attach to a multipart body.
type MultipartFile struct {
	Field string
	Path  string
}

// MultipartBody streams files as a multipart/form-data body through a pipe so
// large videos are never buffered in memory. The returned content type carries
// the boundary. Read errors surface through the reader.
func MultipartBody(files []MultipartFile) (io.ReadCloser, string, error) {
	if len(files) == 0 {
		return nil, "", fmt.Errorf("multipart body: no files")
	}
	for _, file := range files {
		if strings.TrimSpace(file.Field) == "" {
			return nil, "", fmt.Errorf("multipart body: empty field for %s", file.Path)
		}
		if _, err := os.Stat(file.Path); err != nil {
			return nil, "", fmt.Errorf("multipart body: %w", err)
		}
	}

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		for _, file := range files {
			if err := attach(form, file); err != nil {
				writer.CloseWithError(err)
				return
			}
		}
		writer.CloseWithError(form.Close())
	}()
	return reader, form.FormDataContentType(), nil
}

func attach(form *multipart.Writer, file MultipartFile) error {
	in, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	part, err := form.CreateFormFile(file.Field, filepath.Base(file.Path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, in); err != nil {
		return fmt.Errorf("attach %s: %w", file.Path, err)
	}
	return nil
}

// ReadSnippet returns at most limit bytes of r as a trimmed string for error messages.
func ReadSnippet(r io.Reader, limit int64) string {
	if r == nil || limit <= 0 {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, io.LimitReader(r, limit))
	return strings.TrimSpace(buf.String())
}
