package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"grabarr/internal/config"
)

const userAgent = "Grabarr/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRequestQueued(ctx context.Context, title, contentType string) error
	NotifyDownloadStarted(ctx context.Context, title, indexer string) error
	NotifyDownloadCompleted(ctx context.Context, title string) error
	NotifyRequestFailed(ctx context.Context, title, reason string) error
	NotifyAwaitingSelection(ctx context.Context, title string, candidates int) error
	NotifyOrganizeQueued(ctx context.Context, folder string) error
	NotifyOrganizeCompleted(ctx context.Context, title, finalPath string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRequestQueued(ctx context.Context, title, contentType string) error {
	title = strings.TrimSpace(title)
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = "unknown"
	}
	data := payload{
		title:   "Grabarr - Request Queued",
		message: fmt.Sprintf("Searching for: %s (%s)", title, contentType),
		tags:    []string{"grabarr", "request", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadStarted(ctx context.Context, title, indexer string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Download started: %s", title)
	if indexer = strings.TrimSpace(indexer); indexer != "" {
		message = fmt.Sprintf("%s\nIndexer: %s", message, indexer)
	}
	data := payload{
		title:   "Grabarr - Download Started",
		message: message,
		tags:    []string{"grabarr", "download", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Grabarr - Download Complete",
		message: fmt.Sprintf("Download complete: %s", title),
		tags:    []string{"grabarr", "download", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRequestFailed(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Request failed: %s", title)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Grabarr - Request Failed",
		message:  message,
		tags:     []string{"grabarr", "request", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAwaitingSelection(ctx context.Context, title string, candidates int) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Grabarr - Selection Needed",
		message: fmt.Sprintf("%d candidates found for %s\nManual selection required", candidates, title),
		tags:    []string{"grabarr", "request", "selection"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrganizeQueued(ctx context.Context, folder string) error {
	folder = strings.TrimSpace(folder)
	data := payload{
		title:   "Grabarr - Organize Needed",
		message: fmt.Sprintf("Could not match: %s\nManual organization required", folder),
		tags:    []string{"grabarr", "organize", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrganizeCompleted(ctx context.Context, title, finalPath string) error {
	title = strings.TrimSpace(title)
	finalPath = strings.TrimSpace(finalPath)
	message := fmt.Sprintf("Added to library: %s", title)
	if finalPath != "" {
		message = fmt.Sprintf("%s\nPath: %s", message, finalPath)
	}
	data := payload{
		title:   "Grabarr - Library Updated",
		message: message,
		tags:    []string{"grabarr", "organize", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Grabarr - Error",
		message:  builder.String(),
		tags:     []string{"grabarr", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Grabarr - Test",
		message:  "Notification system test",
		tags:     []string{"grabarr", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

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

type noopService struct{}

func (noopService) NotifyRequestQueued(context.Context, string, string) error      { return nil }
func (noopService) NotifyDownloadStarted(context.Context, string, string) error    { return nil }
func (noopService) NotifyDownloadCompleted(context.Context, string) error          { return nil }
func (noopService) NotifyRequestFailed(context.Context, string, string) error      { return nil }
func (noopService) NotifyAwaitingSelection(context.Context, string, int) error     { return nil }
func (noopService) NotifyOrganizeQueued(context.Context, string) error             { return nil }
func (noopService) NotifyOrganizeCompleted(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
