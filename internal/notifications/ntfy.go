package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ntfyMessage struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(endpoint string, timeout time.Duration) *ntfyService {
	return &ntfyService{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := formatNtfy(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) Close() error { return nil }

func formatNtfy(event Event, payload Payload) (ntfyMessage, bool) {
	title := payload.str("title")
	if title == "" {
		title = payload.str("post_id")
	}
	switch event {
	case EventPostCreated:
		media := payload.str("media_type")
		if media == "" {
			media = "media"
		}
		return ntfyMessage{
			title:   "DeepShield - Post Created",
			message: fmt.Sprintf("New %s post: %s", media, title),
			tags:    []string{"deepshield", "post", "created"},
		}, true
	case EventAnalysisCompleted:
		verdict := payload.str("verdict")
		message := fmt.Sprintf("Analysis complete: %s", title)
		if verdict != "" {
			message = fmt.Sprintf("%s (%s", message, verdict)
			if pct, ok := payload["confidence_percentage"].(int); ok {
				message = fmt.Sprintf("%s, %d%% fake frames", message, pct)
			}
			message += ")"
		}
		msg := ntfyMessage{
			title:   "DeepShield - Analysis Complete",
			message: message,
			tags:    []string{"deepshield", "analysis", "completed"},
		}
		if verdict == "FAKE" {
			msg.tags = append(msg.tags, "warning")
			msg.priority = "high"
		}
		return msg, true
	case EventAnalysisFailed:
		reason := payload.str("error")
		if reason == "" {
			reason = "unknown error"
		}
		return ntfyMessage{
			title:    "DeepShield - Analysis Failed",
			message:  fmt.Sprintf("Analysis failed for %s: %s", title, reason),
			tags:     []string{"deepshield", "analysis", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return ntfyMessage{
			title:    "DeepShield - Test",
			message:  "Notification system test",
			tags:     []string{"deepshield", "test"},
			priority: "low",
		}, true
	default:
		return ntfyMessage{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data ntfyMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
