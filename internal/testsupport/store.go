package testsupport

import (
	"context"
	"testing"

	"jobsift/internal/config"
	"jobsift/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRoot creates and persists a root item of the given type at its first
// sub-stage using the config's lineage defaults.
func NewRoot(t testing.TB, store *queue.Store, cfg *config.Config, itemType queue.ItemType, url string) *queue.Item {
	t.Helper()

	item := queue.NewRoot(queue.RootSpec{
		Type:          itemType,
		URL:           url,
		SubStage:      queue.FirstStage(itemType),
		MaxSpawnDepth: cfg.Pipeline.MaxSpawnDepth,
		MaxRetries:    cfg.Pipeline.MaxRetries,
	})
	if err := store.Create(context.Background(), item); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}
