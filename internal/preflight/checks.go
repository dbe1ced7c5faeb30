package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sys/unix"

	"jobsift/internal/config"
	"jobsift/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set llm.api_key or OPENROUTER_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.ConfigFrom(cfg), llm.WithRetry(1, 0, 0))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", client.Model())}
}

// CheckNATS verifies the event bus accepts a connection.
func CheckNATS(url string) Result {
	const name = "NATS"

	nc, err := nats.Connect(url, nats.Name("jobsift-preflight"), nats.Timeout(5*time.Second))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", url, err)}
	}
	defer nc.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (connected)", nc.ConnectedUrlRedacted())}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
