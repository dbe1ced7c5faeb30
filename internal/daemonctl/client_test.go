package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"jobsift/internal/api"
	"jobsift/internal/queue"
	"jobsift/internal/testsupport"
)

func TestNewClientForAddressDialsLoopbackForWildcard(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:7497":           "http://127.0.0.1:7497",
		":7497":                  "http://127.0.0.1:7497",
		"10.0.0.5:80":            "http://10.0.0.5:80",
		"https://jobs.internal/": "https://jobs.internal",
	}
	for in, want := range tests {
		if got := NewClientForAddress(in, "").baseURL; got != want {
			t.Fatalf("NewClientForAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientStatusSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 42})
	}))
	t.Cleanup(srv.Close)

	status, err := NewClientForAddress(srv.URL, "tok").Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 42 {
		t.Fatalf("unexpected status %+v", status)
	}

	_, err = NewClientForAddress(srv.URL, "").Status(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "unauthorized" {
		t.Fatalf("expected unauthorized APIError, got %v", err)
	}
}

func TestClientSubmitAndEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/queue", func(w http.ResponseWriter, r *http.Request) {
		var req api.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"url is required"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.QueueItemResponse{Item: api.QueueItem{ID: "abc", Type: req.Type, URL: req.URL}})
	})
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		_ = json.NewEncoder(w).Encode(api.EventListResponse{Events: []api.EventItem{{ID: "a"}, {ID: "b"}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClientForAddress(srv.URL, "")
	ctx := context.Background()

	item, err := client.Submit(ctx, api.SubmitRequest{Type: "listing", URL: "https://jobs.example/1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if item.ID != "abc" || item.URL != "https://jobs.example/1" {
		t.Fatalf("unexpected item %+v", item)
	}
	if _, err := client.Submit(ctx, api.SubmitRequest{Type: "listing"}); err == nil {
		t.Fatal("expected submit error")
	}

	events, err := client.Events(ctx, 2)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func closedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

func TestClientReportsDaemonNotRunning(t *testing.T) {
	_, err := NewClientForAddress(closedAddress(t), "").Status(context.Background())
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRoot(t, store, cfg, queue.ItemTypeListing, "https://jobs.example/1")

	snap, err := BuildStatusSnapshot(context.Background(), NewClientForAddress(closedAddress(t), ""), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Running() {
		t.Fatal("expected offline snapshot")
	}
	if snap.QueueStats["listing"]["pending"] != 1 {
		t.Fatalf("expected offline queue stats, got %+v", snap.QueueStats)
	}
	if len(snap.Checks) == 0 {
		t.Fatal("expected preflight checks")
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobsift.pid")

	if pid, err := ReadPIDFile(path); err != nil || pid != 0 {
		t.Fatalf("missing file: pid=%d err=%v", pid, err)
	}
	if err := os.WriteFile(path, []byte("1234\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if pid, err := ReadPIDFile(path); err != nil || pid != 1234 {
		t.Fatalf("pid=%d err=%v", pid, err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadPIDFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobsift.pid")
	if _, err := Stop(path, 0); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}
