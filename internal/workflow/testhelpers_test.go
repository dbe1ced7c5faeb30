package workflow_test

import (
	"context"
	"sync"
	"testing"

	"jobsift/internal/config"
	"jobsift/internal/events"
	"jobsift/internal/logging"
	"jobsift/internal/queue"
	"jobsift/internal/stage"
	"jobsift/internal/workflow"
)

type harness struct {
	cfg    *config.Config
	store  *queue.Store
	mgr    *workflow.Manager
	events *events.Ring
}

func newHarness(t *testing.T, cfg *config.Config, set workflow.StageSet) *harness {
	t.Helper()
	store := mustOpen(t, cfg)
	ring := events.NewRing(64)
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithEventSink(ring))
	mgr.ConfigureStages(set)
	return &harness{cfg: cfg, store: store, mgr: mgr, events: ring}
}

func (h *harness) get(t *testing.T, id string) *queue.Item {
	t.Helper()
	item, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	if item == nil {
		t.Fatalf("item %s missing", id)
	}
	return item
}

// callLog records which sub-stages ran, in order.
type callLog struct {
	mu    sync.Mutex
	calls []queue.SubStage
}

func (c *callLog) record(s queue.SubStage) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *callLog) snapshot() []queue.SubStage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]queue.SubStage(nil), c.calls...)
}

func advancing(log *callLog) stage.Handler {
	return stage.Func(func(_ context.Context, item *queue.Item) (stage.Outcome, error) {
		log.record(item.SubStage)
		if err := item.SetState(string(item.SubStage), map[string]string{"by": item.ID}); err != nil {
			return stage.Outcome{}, err
		}
		return stage.Advance(""), nil
	})
}

// listingStages returns advancing handlers for every listing sub-stage with
// the given overrides applied.
func listingStages(log *callLog, overrides workflow.TypeStages) workflow.StageSet {
	stages := workflow.TypeStages{}
	for _, s := range queue.Stages(queue.ItemTypeListing) {
		stages[s] = advancing(log)
	}
	for s, h := range overrides {
		stages[s] = h
	}
	return workflow.StageSet{queue.ItemTypeListing: stages}
}
