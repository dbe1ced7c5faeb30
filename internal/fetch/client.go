package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobsift/internal/config"
	"jobsift/internal/services"
)

// Response is a fetched body with the metadata adapters need.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client performs rate-limited GET requests.
type Client struct {
	http         *http.Client
	userAgent    string
	maxBodyBytes int64
	limit        rate.Limit
	burst        int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit overrides the per-host request rate. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limit, c.burst = toLimit(perSecond, burst)
	}
}

// NewClient builds a client from the [fetch] section.
func NewClient(cfg config.Fetch, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		http:         &http.Client{Timeout: timeout},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiters:     make(map[string]*rate.Limiter),
	}
	c.limit, c.burst = toLimit(cfg.RequestsPerSecond, cfg.Burst)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func toLimit(perSecond float64, burst int) (rate.Limit, int) {
	if perSecond <= 0 {
		return rate.Inf, 0
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.Limit(perSecond), burst
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters[host] = limiter
	}
	return limiter
}

// Get fetches rawURL, waiting for the host's rate limiter first.
func (c *Client) Get(ctx context.Context, rawURL, accept string) (*Response, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse url", fmt.Sprintf("invalid url %q", rawURL), err)
	}
	if err := c.limiterFor(parsed.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", parsed.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "build request", "", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "fetch", "request", parsed.Host, err)
		}
		return nil, services.Wrap(services.ErrTransient, "fetch", "request", parsed.Host, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if c.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "read body", parsed.Host, err)
	}
	if err := classifyStatus(resp.StatusCode, parsed.String(), body); err != nil {
		return nil, err
	}
	return &Response{
		URL:         parsed.String(),
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func classifyStatus(code int, target string, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	msg := fmt.Sprintf("%s returned %d", target, code)
	if snippet != "" {
		msg += ": " + snippet
	}
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return services.Wrap(services.ErrNotFound, "fetch", "get", msg, nil)
	case code == http.StatusTooManyRequests || code >= 500:
		return services.Wrap(services.ErrTransient, "fetch", "get", msg, nil)
	default:
		return services.Wrap(services.ErrValidation, "fetch", "get", msg, nil)
	}
}
