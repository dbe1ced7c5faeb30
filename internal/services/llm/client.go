package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobsift/internal/config"
	"jobsift/internal/services"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// ConfigFrom converts the [llm] configuration section.
func ConfigFrom(cfg config.LLM) Config {
	return Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
}

// Client wraps an OpenRouter-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides the retry budget and backoff bounds.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultRetryAttempts,
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// CompleteJSON issues a JSON-only chat completion and returns the raw content.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "complete", "system and user prompts required", nil)
	}
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "llm", "complete", "api key required (set llm.api_key or OPENROUTER_API_KEY)", nil)
	}
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var lastErr error
	for attempt := 1; attempt <= max(c.attempts, 1); attempt++ {
		content, err := c.send(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			break
		}
		if err := c.sleeper(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// HealthCheck issues a minimal request to verify credentials and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Refusal   string `json:"refusal"`
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError carries a non-2xx response.
type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

func (e *statusError) retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "llm", "request", "invalid base url", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "llm", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "llm", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		statusErr := &statusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
		marker := services.ErrExternalTool
		switch {
		case statusErr.retryable():
			marker = services.ErrTransient
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			marker = services.ErrConfiguration
		}
		return "", services.Wrap(marker, "llm", "request", "unexpected status", statusErr)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "llm", "decode", snippet(string(body)), err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrExternalTool, "llm", "api", strings.TrimSpace(completion.Error.Message), nil)
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, nil
		}
		for _, call := range choice.Message.ToolCalls {
			if args := strings.TrimSpace(call.Function.Arguments); args != "" {
				return args, nil
			}
		}
	}
	return "", services.Wrap(services.ErrTransient, "llm", "decode", "empty content: "+snippet(string(body)), nil)
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.attempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if !statusErr.retryable() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, c.maxDelay), true
		}
		return c.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	if errors.Is(err, services.ErrTransient) {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from baseDelay per attempt, capped at maxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt && delay < c.maxDelay; i++ {
		delay *= 2
	}
	return min(delay, c.maxDelay)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}

// DecodeJSON decodes a model response, tolerating code fences and prose
// around the JSON object.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(trimmed), target)
	if err == nil {
		return nil
	}
	extracted := extractObject(trimmed)
	if extracted == "" || extracted == trimmed {
		return fmt.Errorf("%w (payload: %s)", err, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (payload: %s)", err, snippet(extracted))
	}
	return nil
}

func extractObject(content string) string {
	body := strings.TrimSpace(content)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimPrefix(strings.TrimLeft(body, " \t\r\n"), "json")
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		body = strings.TrimSpace(body)
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return body
	}
	return body[start : end+1]
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
