package workflow

import (
	"context"
	"errors"
	"fmt"

	"jobsift/internal/config"
	"jobsift/internal/lineage"
	"jobsift/internal/queue"
)

// Advance describes where processing continues after a stage advanced.
type Advance struct {
	// Next is the item that runs the next sub-stage: the same item for
	// in-place advancement, the spawned child otherwise. Nil when a spawn was
	// rejected by the guard.
	Next *queue.Item
	// Terminal is true when the advanced item itself reached a terminal status.
	Terminal bool
	// Rejection is set when the guard blocked the continuation.
	Rejection *lineage.RejectedError
}

// StageAdvancer moves a processing item to its next sub-stage.
type StageAdvancer interface {
	Mode() string
	Advance(ctx context.Context, item *queue.Item, next queue.SubStage) (Advance, error)
}

func advancerFor(mode string, store *queue.Store, spawner *lineage.Spawner) StageAdvancer {
	if mode == config.StagingSpawn {
		return &SpawnAdvancer{store: store, spawner: spawner}
	}
	return &InPlaceAdvancer{store: store}
}

// InPlaceAdvancer rewrites the item's sub-stage and returns it to pending.
type InPlaceAdvancer struct {
	store *queue.Store
}

// NewInPlaceAdvancer returns an advancer that keeps one item per lineage step.
func NewInPlaceAdvancer(store *queue.Store) *InPlaceAdvancer {
	return &InPlaceAdvancer{store: store}
}

func (a *InPlaceAdvancer) Mode() string { return config.StagingInPlace }

// Advance persists the item pending at next. The retry budget restarts for
// the new sub-stage.
func (a *InPlaceAdvancer) Advance(ctx context.Context, item *queue.Item, next queue.SubStage) (Advance, error) {
	item.SubStage = next
	item.Status = queue.StatusPending
	item.RetryCount = 0
	item.ErrorDetails = ""
	if err := a.store.UpdateStatus(ctx, item, queue.StatusProcessing); err != nil {
		return Advance{}, fmt.Errorf("advance in place: %w", err)
	}
	return Advance{Next: item}, nil
}

// SpawnAdvancer completes the item and continues in a guarded child at the
// next sub-stage. The child inherits the pipeline state.
type SpawnAdvancer struct {
	store   *queue.Store
	spawner *lineage.Spawner
}

// NewSpawnAdvancer returns an advancer that records every stage as its own item.
func NewSpawnAdvancer(store *queue.Store, spawner *lineage.Spawner) *SpawnAdvancer {
	return &SpawnAdvancer{store: store, spawner: spawner}
}

func (a *SpawnAdvancer) Mode() string { return config.StagingSpawn }

// Advance spawns the continuation and marks the item successful. A guard
// rejection does not fail the item; it is noted on the result message.
func (a *SpawnAdvancer) Advance(ctx context.Context, item *queue.Item, next queue.SubStage) (Advance, error) {
	target := lineage.Target{URL: item.URL, Type: item.Type, SubStage: next, Continuation: true}
	child, err := a.spawner.SpawnChild(ctx, item, target, lineage.ChildFields{
		OrganizationName: item.OrganizationName,
		OrganizationID:   item.OrganizationID,
		SourceID:         item.SourceID,
		State:            item.PipelineState,
	})
	var rejected *lineage.RejectedError
	switch {
	case errors.As(err, &rejected):
		item.ResultMessage = fmt.Sprintf("%s; continuation blocked (%s): %s", queue.AdvancedMessage, rejected.Decision.Check, rejected.Decision.Reason)
	case err != nil:
		return Advance{}, fmt.Errorf("spawn continuation: %w", err)
	default:
		item.ResultMessage = queue.AdvancedMessage
	}

	item.Status = queue.StatusSuccess
	item.ErrorDetails = ""
	if err := a.store.UpdateStatus(ctx, item, queue.StatusProcessing); err != nil {
		return Advance{}, fmt.Errorf("complete advanced item: %w", err)
	}
	return Advance{Next: child, Terminal: true, Rejection: rejected}, nil
}
