package stage

import (
	"context"

	"jobsift/internal/lineage"
	"jobsift/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Execute runs exactly one sub-stage against the item, reading and writing
// only the item's own pipeline state. Errors are classified by the manager:
// services.ErrValidation, ErrConfiguration and ErrNotFound fail the item,
// anything else is retried.
type Handler interface {
	Execute(context.Context, *queue.Item) (Outcome, error)
	HealthCheck(context.Context) Health
}

// Kind is the routing decision a stage returns.
type Kind int

const (
	// KindAdvance moves the item to its next sub-stage, or completes it when
	// the current sub-stage is the last.
	KindAdvance Kind = iota
	// KindDone completes the item immediately.
	KindDone
	// KindFiltered ends the item as filtered before analysis.
	KindFiltered
	// KindBelowThreshold ends the item as skipped after analysis.
	KindBelowThreshold
)

func (k Kind) String() string {
	switch k {
	case KindAdvance:
		return "advance"
	case KindDone:
		return "done"
	case KindFiltered:
		return "filtered"
	case KindBelowThreshold:
		return "below_threshold"
	default:
		return "unknown"
	}
}

// FollowUp asks the manager to spawn related work through the guarded
// spawner. Rejections are logged and never affect the current item.
type FollowUp struct {
	Target lineage.Target
	Fields lineage.ChildFields
}

// Outcome is a stage's typed result.
type Outcome struct {
	Kind      Kind
	Message   string
	FollowUps []FollowUp
}

// Advance returns an outcome that moves the item forward.
func Advance(message string, followUps ...FollowUp) Outcome {
	return Outcome{Kind: KindAdvance, Message: message, FollowUps: followUps}
}

// Done returns an outcome that completes the item.
func Done(message string, followUps ...FollowUp) Outcome {
	return Outcome{Kind: KindDone, Message: message, FollowUps: followUps}
}

// Filtered returns a filter rejection outcome.
func Filtered(message string) Outcome {
	return Outcome{Kind: KindFiltered, Message: message}
}

// BelowThreshold returns an analysis rejection outcome.
func BelowThreshold(message string) Outcome {
	return Outcome{Kind: KindBelowThreshold, Message: message}
}

// Func adapts a function into a Handler that always reports healthy.
type Func func(context.Context, *queue.Item) (Outcome, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, item *queue.Item) (Outcome, error) {
	return f(ctx, item)
}

// HealthCheck reports the function stage as ready.
func (f Func) HealthCheck(context.Context) Health {
	return Healthy("func")
}
