package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobsift/internal/config"
	"jobsift/internal/events"
)

const userAgent = "jobsift/0.1.0"

// Summary describes one scheduler tick.
type Summary struct {
	SourcesPolled int
	JobsFound     int
	Matches       int
	Failures      int
	EarlyExit     bool
	Duration      time.Duration
}

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyItemFailed(ctx context.Context, event events.Event) error
	NotifyMatch(ctx context.Context, event events.Event) error
	NotifySchedulerSummary(ctx context.Context, summary Summary) error
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

func (n *ntfyService) NotifyItemFailed(ctx context.Context, e events.Event) error {
	reason := strings.TrimSpace(e.ErrorDetails)
	if reason == "" {
		reason = strings.TrimSpace(e.ResultMessage)
	}
	message := fmt.Sprintf("❌ %s failed at %s: %s\n%s", e.ItemType, e.SubStage, reason, e.URL)
	if e.RetryCount > 0 {
		message = fmt.Sprintf("%s\nRetries: %d", message, e.RetryCount)
	}
	return n.send(ctx, payload{
		title:    "jobsift - Item Failed",
		message:  message,
		tags:     []string{"jobsift", string(e.ItemType), "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyMatch(ctx context.Context, e events.Event) error {
	message := fmt.Sprintf("🎯 New match: %s", strings.TrimSpace(e.URL))
	if msg := strings.TrimSpace(e.ResultMessage); msg != "" {
		message = fmt.Sprintf("%s\n%s", message, msg)
	}
	return n.send(ctx, payload{
		title:   "jobsift - Match Saved",
		message: message,
		tags:    []string{"jobsift", "match", "saved"},
	})
}

func (n *ntfyService) NotifySchedulerSummary(ctx context.Context, s Summary) error {
	duration := s.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	message := fmt.Sprintf("Polled %d sources in %s: %d jobs found, %d matches", s.SourcesPolled, duration, s.JobsFound, s.Matches)
	if s.Failures > 0 {
		message = fmt.Sprintf("%s, %d sources failed", message, s.Failures)
	}
	if s.EarlyExit {
		message += " (match target reached)"
	}
	title := "jobsift - Scheduler Tick"
	if s.Failures > 0 {
		title = "jobsift - Scheduler Tick (with errors)"
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"jobsift", "scheduler", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
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
	return n.send(ctx, payload{
		title:    "jobsift - Error",
		message:  builder.String(),
		tags:     []string{"jobsift", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "jobsift - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"jobsift", "test"},
		priority: "low",
	})
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

func (noopService) NotifyItemFailed(context.Context, events.Event) error { return nil }
func (noopService) NotifyMatch(context.Context, events.Event) error      { return nil }
func (noopService) NotifySchedulerSummary(context.Context, Summary) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
