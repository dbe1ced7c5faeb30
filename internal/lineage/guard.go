package lineage

import (
	"context"
	"fmt"

	"jobsift/internal/queue"
)

// Check identifies which guard check produced a decision.
type Check string

const (
	CheckNone      Check = ""
	CheckDepth     Check = "depth"
	CheckCircular  Check = "circular"
	CheckDuplicate Check = "duplicate_pending"
	CheckSucceeded Check = "already_succeeded"
)

// Target names the work a parent wants to spawn. Continuation marks the
// parent's own subject moving to its next sub-stage as a separate item.
type Target struct {
	URL          string
	Type         queue.ItemType
	SubStage     queue.SubStage
	Continuation bool
}

func (t Target) String() string {
	if t.SubStage == "" {
		return fmt.Sprintf("%s %s", t.Type, t.URL)
	}
	return fmt.Sprintf("%s/%s %s", t.Type, t.SubStage, t.URL)
}

// Decision is the guard's verdict.
type Decision struct {
	Allowed bool
	Check   Check
	Reason  string
}

// Reader is the store surface the guard needs.
type Reader interface {
	Exists(ctx context.Context, f queue.Filter) (bool, error)
}

// Guard decides whether a parent may spawn a target.
type Guard struct {
	store Reader
}

// NewGuard constructs a guard over the given store.
func NewGuard(store Reader) *Guard {
	return &Guard{store: store}
}

// CanSpawn runs the checks in order and returns the first failure. Store
// errors are returned as errors rather than decisions.
//
// Requests for a subject match the (url, type) pair in the lineage at any
// sub-stage, so an item that advanced in place still blocks a second request.
// Continuations match on the exact sub-stage, and items that only handed off
// to a continuation never count as succeeded.
func (g *Guard) CanSpawn(ctx context.Context, parent *queue.Item, target Target) (Decision, error) {
	if parent == nil {
		return Decision{}, fmt.Errorf("%w: nil parent", queue.ErrInvalidItem)
	}

	if parent.SpawnDepth+1 > parent.MaxSpawnDepth {
		return reject(CheckDepth, "spawn depth %d would exceed max spawn depth %d", parent.SpawnDepth+1, parent.MaxSpawnDepth), nil
	}

	if ancestor, ok := circular(parent, target); ok {
		return reject(CheckCircular, "%s already in ancestry (item %s)", target, ancestor.ID), nil
	}

	pending, err := g.store.Exists(ctx, identityFilter(parent, target, queue.ActiveStatuses()))
	if err != nil {
		return Decision{}, fmt.Errorf("duplicate check: %w", err)
	}
	if pending {
		return reject(CheckDuplicate, "%s already pending in lineage %s", target, parent.TrackingID), nil
	}

	succeeded := identityFilter(parent, target, []queue.Status{queue.StatusSuccess})
	succeeded.ExcludeAdvanced = true
	done, err := g.store.Exists(ctx, succeeded)
	if err != nil {
		return Decision{}, fmt.Errorf("terminal check: %w", err)
	}
	if done {
		return reject(CheckSucceeded, "%s already succeeded in lineage %s", target, parent.TrackingID), nil
	}

	return Decision{Allowed: true}, nil
}

// circular reports whether the target URL and type at the same sub-stage
// appear in the would-be ancestry of the child. The same subject at a
// different sub-stage is forward progress and allowed.
func circular(parent *queue.Item, target Target) (queue.Ancestor, bool) {
	chain := append(parent.Ancestry[:len(parent.Ancestry):len(parent.Ancestry)], parent.AsAncestor())
	for _, ancestor := range chain {
		if ancestor.URL == target.URL && ancestor.Type == target.Type && ancestor.SubStage == target.SubStage {
			return ancestor, true
		}
	}
	return queue.Ancestor{}, false
}

func identityFilter(parent *queue.Item, target Target, statuses []queue.Status) queue.Filter {
	f := queue.Filter{
		URL:        target.URL,
		Type:       target.Type,
		TrackingID: parent.TrackingID,
		Statuses:   statuses,
	}
	if target.Continuation {
		f.SubStages = []queue.SubStage{target.SubStage}
	}
	return f
}

func reject(check Check, format string, args ...any) Decision {
	return Decision{Allowed: false, Check: check, Reason: fmt.Sprintf(format, args...)}
}
