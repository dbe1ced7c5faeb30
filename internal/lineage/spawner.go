package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"jobsift/internal/logging"
	"jobsift/internal/queue"
)

// RejectedError reports a guard rejection. It is a policy decision, not a
// failure of the parent.
type RejectedError struct {
	ParentID string
	Target   Target
	Decision Decision
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("spawn of %s rejected (%s): %s", e.Target, e.Decision.Check, e.Decision.Reason)
}

// IsRejected reports whether err is a guard rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// Store is the store surface the spawner needs.
type Store interface {
	Reader
	Create(ctx context.Context, item *queue.Item) error
}

// ChildFields carries the non-lineage fields of a new child.
type ChildFields struct {
	OrganizationName string
	OrganizationID   string
	SourceID         string
	// MaxRetries overrides the parent's retry budget when positive.
	MaxRetries int
	State      queue.State
}

// Spawner creates guarded child items.
type Spawner struct {
	store  Store
	guard  *Guard
	logger *slog.Logger
}

// NewSpawner constructs a spawner over the store.
func NewSpawner(store Store, logger *slog.Logger) *Spawner {
	return &Spawner{
		store:  store,
		guard:  NewGuard(store),
		logger: logging.NewComponentLogger(logger, "spawner"),
	}
}

// Guard exposes the spawner's guard for read-only checks.
func (s *Spawner) Guard() *Guard {
	return s.guard
}

// SpawnChild builds a child of parent for target, checks it against the
// guard, and persists it. A rejection returns *RejectedError and persists
// nothing.
func (s *Spawner) SpawnChild(ctx context.Context, parent *queue.Item, target Target, fields ChildFields) (*queue.Item, error) {
	child, err := NewChild(parent, target, fields)
	if err != nil {
		return nil, err
	}

	decision, err := s.guard.CanSpawn(ctx, parent, target)
	if err != nil {
		return nil, fmt.Errorf("spawn guard: %w", err)
	}
	if !decision.Allowed {
		s.logger.Info("spawn blocked",
			logging.EventType("spawn_blocked"),
			logging.ItemID(parent.ID),
			logging.TrackingID(parent.TrackingID),
			logging.String("target", target.String()),
			logging.String("check", string(decision.Check)),
			logging.String("reason", decision.Reason),
		)
		return nil, &RejectedError{ParentID: parent.ID, Target: target, Decision: decision}
	}

	if err := s.store.Create(ctx, child); err != nil {
		return nil, fmt.Errorf("persist child: %w", err)
	}
	s.logger.Debug("child spawned",
		logging.EventType("spawned"),
		logging.ItemID(child.ID),
		logging.String("parent_id", parent.ID),
		logging.TrackingID(child.TrackingID),
		logging.String("target", target.String()),
		logging.Int("spawn_depth", child.SpawnDepth),
	)
	return child, nil
}

// NewChild stamps lineage from parent onto a new pending item without
// consulting the guard or the store.
func NewChild(parent *queue.Item, target Target, fields ChildFields) (*queue.Item, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: nil parent", queue.ErrInvalidItem)
	}
	if target.SubStage != "" && !target.Type.HasStage(target.SubStage) {
		return nil, fmt.Errorf("%w: sub-stage %q not valid for %s", queue.ErrInvalidItem, target.SubStage, target.Type)
	}
	maxRetries := parent.MaxRetries
	if fields.MaxRetries > 0 {
		maxRetries = fields.MaxRetries
	}
	ancestry := append(slices.Clone(parent.Ancestry), parent.AsAncestor())
	return &queue.Item{
		Type:             target.Type,
		SubStage:         target.SubStage,
		Status:           queue.StatusPending,
		URL:              target.URL,
		OrganizationName: fields.OrganizationName,
		OrganizationID:   fields.OrganizationID,
		SourceID:         fields.SourceID,
		TrackingID:       parent.TrackingID,
		Ancestry:         ancestry,
		SpawnDepth:       parent.SpawnDepth + 1,
		MaxSpawnDepth:    parent.MaxSpawnDepth,
		MaxRetries:       maxRetries,
		PipelineState:    fields.State.Clone(),
	}, nil
}
