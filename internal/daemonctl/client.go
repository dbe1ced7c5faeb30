package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"jobsift/internal/api"
	"jobsift/internal/config"
)

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient targets the API address and token from cfg. Wildcard bind
// hosts are dialed on loopback.
func NewClient(cfg *config.Config) *Client {
	bind := config.Default().API.Bind
	token := ""
	if cfg != nil {
		bind = cfg.API.Bind
		token = cfg.API.Token
	}
	return NewClientForAddress(bind, token)
}

// NewClientForAddress builds a client for host:port or a full base URL.
func NewClientForAddress(address, token string) *Client {
	address = strings.TrimSpace(address)
	base := address
	if !strings.Contains(address, "://") {
		host, port, err := net.SplitHostPort(address)
		if err == nil {
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
			address = net.JoinHostPort(host, port)
		}
		base = "http://" + address
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events returns up to limit recent terminal events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]api.EventItem, error) {
	path := "/api/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out api.EventListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Submit enqueues a new root item through the daemon.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (*api.QueueItem, error) {
	var out api.QueueItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/queue", req, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("daemon api: %s", e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDaemonUnavailable(err) {
			return ErrDaemonNotRunning
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isDaemonUnavailable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) && opErr.Op == "dial" {
			return true
		}
	}
	return false
}
