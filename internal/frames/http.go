package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"deepshield/internal/fileutil"
	"deepshield/internal/mediastore"
	"deepshield/internal/services"
)

// HTTP delegates extraction to a remote service. The service receives the
// video as multipart field "video" and answers
// {"frames": [{"frame": "...", "frame_path": "/uploads/..."}]}.
type HTTP struct {
	endpoint string
	client   *http.Client
	media    *mediastore.Store
}

// HTTPOption customizes the HTTP extractor.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTP constructs a remote extractor. Returned frame URLs that resolve into
// the media store get a local Path. Deadlines come from the caller's context.
func NewHTTP(endpoint string, media *mediastore.Store, opts ...HTTPOption) *HTTP {
	h := &HTTP{endpoint: strings.TrimSpace(endpoint), client: &http.Client{}, media: media}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type httpResponse struct {
	Frames []Frame `json:"frames"`
	Error  string  `json:"error"`
}

// Extract uploads the video and returns the frames listed by the service.
func (h *HTTP) Extract(ctx context.Context, videoPath string) (Result, error) {
	body, contentType, err := fileutil.MultipartBody([]fileutil.MultipartFile{{Field: "video", Path: videoPath}})
	if err != nil {
		return Result{}, err
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "frames", "build request", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "request", h.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload httpResponse
		snippet := fileutil.ReadSnippet(resp.Body, 4096)
		if json.Unmarshal([]byte(snippet), &payload) == nil && payload.Error != "" {
			snippet = payload.Error
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "request", fmt.Sprintf("http %d: %s", resp.StatusCode, snippet), nil)
	}

	var payload httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "decode response", "", err)
	}
	if len(payload.Frames) == 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "frames", "decode response", "no frames returned", nil)
	}
	for i := range payload.Frames {
		frame := &payload.Frames[i]
		if frame.Name == "" {
			frame.Name = path.Base(frame.URL)
		}
		if h.media == nil {
			continue
		}
		if local, err := h.media.PathFor(frame.URL); err == nil {
			if _, statErr := os.Stat(local); statErr == nil {
				frame.Path = local
			}
		}
	}
	return Result{Frames: payload.Frames}, nil
}
