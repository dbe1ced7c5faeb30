package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"jobsift/internal/config"
	"jobsift/internal/events"
	"jobsift/internal/lineage"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	spawner      *lineage.Spawner
	sink         events.Sink
	pollInterval time.Duration
	stageTimeout time.Duration

	heartbeat *HeartbeatMonitor
	advancers map[queue.ItemType]StageAdvancer

	lanes     map[queue.ItemType]*laneState
	laneOrder []queue.ItemType

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item
	counts   map[queue.Status]int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithEventSink routes terminal events to sink.
func WithEventSink(sink events.Sink) ManagerOption {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithAdvancer overrides the configured advancement strategy for one type.
func WithAdvancer(itemType queue.ItemType, advancer StageAdvancer) ManagerOption {
	return func(m *Manager) {
		if advancer != nil {
			m.advancers[itemType] = advancer
		}
	}
}

// NewManager constructs a workflow manager. Advancement strategies come
// from pipeline.staging; terminal events are logged unless WithEventSink
// supplies a different sink.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	spawner := lineage.NewSpawner(store, logger)
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		spawner:      spawner,
		sink:         events.NewLogSink(logger),
		pollInterval: cfg.PollInterval(),
		stageTimeout: cfg.StageTimeout(),
		heartbeat:    NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
		advancers:    make(map[queue.ItemType]StageAdvancer),
		lanes:        make(map[queue.ItemType]*laneState),
		counts:       make(map[queue.Status]int),
	}
	for _, itemType := range queue.ItemTypes() {
		m.advancers[itemType] = advancerFor(cfg.StagingFor(string(itemType)), store, spawner)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Spawner exposes the guarded spawner the manager uses for follow-ups.
func (m *Manager) Spawner() *lineage.Spawner {
	return m.spawner
}
