package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"deepshield/internal/fileutil"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

const maxResponseBytes = 16 << 20

// HTTP posts media to a detection endpoint.
type HTTP struct {
	endpoint string
	mode     Mode
	client   *http.Client
}

// Option customizes the HTTP detector.
type Option func(*HTTP)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTP constructs an HTTP detector.
func NewHTTP(endpoint string, mode Mode, opts ...Option) *HTTP {
	h := &HTTP{endpoint: strings.TrimSpace(endpoint), mode: mode, client: &http.Client{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Detect uploads the video as field "video" or each frame as a repeated
// "frames" field and decodes the verdicts.
func (h *HTTP) Detect(ctx context.Context, in Input) ([]store.FrameAnalysis, error) {
	files, err := h.files(in)
	if err != nil {
		return nil, err
	}
	body, contentType, err := fileutil.MultipartBody(files)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "detection", "prepare input", "", err)
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "detection", "build request", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "detection", "request", h.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "detection", "read response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(data))
		var payload response
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			detail = payload.Error
		}
		if len(detail) > 512 {
			detail = detail[:512]
		}
		return nil, services.Wrap(services.ErrExternalTool, "detection", "request", fmt.Sprintf("http %d: %s", resp.StatusCode, detail), nil)
	}
	return decodeResponse(data, in, h.mode)
}

func (h *HTTP) files(in Input) ([]fileutil.MultipartFile, error) {
	if h.mode == ModeFrames {
		paths, err := framePaths(in)
		if err != nil {
			return nil, err
		}
		files := make([]fileutil.MultipartFile, 0, len(paths))
		for _, p := range paths {
			files = append(files, fileutil.MultipartFile{Field: "frames", Path: p})
		}
		return files, nil
	}
	if strings.TrimSpace(in.VideoPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "detection", "prepare input", "no video to analyze", nil)
	}
	return []fileutil.MultipartFile{{Field: "video", Path: in.VideoPath}}, nil
}
