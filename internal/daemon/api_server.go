package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobsift/internal/api"
	"jobsift/internal/config"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/services"
)

const (
	defaultListLimit  = 200
	defaultEventLimit = 50
	maxSubmitBytes    = 16 << 10
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		queueSvc: api.NewQueueService(d.store, api.Limits{
			MaxSpawnDepth: cfg.Pipeline.MaxSpawnDepth,
			MaxRetries:    cfg.Pipeline.MaxRetries,
		}),
	}

	token := cfg.API.Token
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("GET /api/queue", authMiddleware(token, srv.handleQueue))
	mux.HandleFunc("POST /api/queue", authMiddleware(token, srv.handleSubmit))
	mux.HandleFunc("GET /api/queue/{id}", authMiddleware(token, srv.handleQueueItem))
	mux.HandleFunc("GET /api/depth", authMiddleware(token, srv.handleDepth))
	mux.HandleFunc("GET /api/lineage/{tracking}", authMiddleware(token, srv.handleLineage))
	mux.HandleFunc("GET /api/sources", authMiddleware(token, srv.handleSources))
	mux.HandleFunc("GET /api/matches", authMiddleware(token, srv.handleMatches))
	mux.HandleFunc("GET /api/events", authMiddleware(token, srv.handleEvents))
	if d.metrics != nil {
		metrics := promhttp.HandlerFor(d.metrics, promhttp.HandlerOpts{})
		mux.HandleFunc("GET /metrics", authMiddleware(token, metrics.ServeHTTP))
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) listen() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// serve blocks until ctx is cancelled, then shuts the server down.
func (s *apiServer) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	return nil
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Scheduler: api.SchedulerStatus{
			Enabled: status.Scheduler.Enabled,
			Active:  status.Scheduler.Active,
		},
	}
	if last := status.Scheduler.Last; last != nil {
		payload.Scheduler.LastTick = api.FormatTime(last.StartedAt)
		payload.Scheduler.LastSummary = fmt.Sprintf("%d sources, %d jobs, %d potential matches, %d failures",
			len(last.Sources), last.JobsFound, last.PotentialMatches, last.Failures)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := api.ListOptions{Limit: defaultListLimit, NewestOut: true}
	if value := strings.TrimSpace(query.Get("type")); value != "" {
		itemType, ok := queue.ParseItemType(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown item type %q", value))
			return
		}
		opts.Type = itemType
	}
	for _, value := range query["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	if value := strings.TrimSpace(query.Get("stage")); value != "" {
		opts.SubStage = queue.SubStage(strings.ToLower(value))
	}
	if limit, ok := parseLimit(query.Get("limit")); ok {
		opts.Limit = limit
	}

	items, err := s.queueSvc.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	item, err := s.queueSvc.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.logger.Info("item submitted",
		logging.EventType("item_submitted"),
		logging.ItemID(item.ID),
		logging.TrackingID(item.TrackingID),
		logging.String("item_type", item.Type),
	)
	s.writeJSON(w, http.StatusCreated, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.queueSvc.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queueSvc.Depth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, depth)
}

func (s *apiServer) handleLineage(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Lineage(r.Context(), r.PathValue("tracking"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(resp.Items) == 0 {
		s.writeError(w, http.StatusNotFound, "lineage not found")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.daemon.store.ListSources(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SourceListResponse{Sources: api.FromSources(sources)})
}

func (s *apiServer) handleMatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimit(r.URL.Query().Get("limit"))
	matches, err := s.daemon.store.ListMatches(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := api.MatchListResponse{Matches: make([]api.MatchItem, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, api.FromMatch(m))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if parsed, ok := parseLimit(r.URL.Query().Get("limit")); ok {
		limit = parsed
	}
	s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: api.FromEvents(s.daemon.RecentEvents(limit))})
}

func parseLimit(value string) (int, bool) {
	limit, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || limit <= 0 {
		return 0, false
	}
	return limit, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
