package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"jobsift/internal/queue"
)

// Event describes one terminal transition.
type Event struct {
	ID            string         `json:"id"`
	TrackingID    string         `json:"tracking_id"`
	ItemType      queue.ItemType `json:"item_type"`
	SubStage      queue.SubStage `json:"sub_stage"`
	Status        queue.Status   `json:"status"`
	URL           string         `json:"url"`
	ResultMessage string         `json:"result_message"`
	ErrorDetails  string         `json:"error_details,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	RetryCount    int            `json:"retry_count"`
	SpawnDepth    int            `json:"spawn_depth"`
	At            time.Time      `json:"at"`
}

// FromItem builds an event from a terminal item. duration is the time spent
// in the final processing pass.
func FromItem(item *queue.Item, duration time.Duration) Event {
	at := time.Now().UTC()
	if item.CompletedAt != nil {
		at = item.CompletedAt.UTC()
	}
	return Event{
		ID:            item.ID,
		TrackingID:    item.TrackingID,
		ItemType:      item.Type,
		SubStage:      item.SubStage,
		Status:        item.Status,
		URL:           item.URL,
		ResultMessage: item.ResultMessage,
		ErrorDetails:  item.ErrorDetails,
		DurationMs:    duration.Milliseconds(),
		RetryCount:    item.RetryCount,
		SpawnDepth:    item.SpawnDepth,
		At:            at,
	}
}

// Sink receives terminal events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(context.Context, Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

// Emit delivers the event to each sink, continuing past failures.
func (m Multi) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ring keeps the most recent events in memory.
type Ring struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewRing returns a ring holding up to size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 100
	}
	return &Ring{events: make([]Event, size)}
}

// Emit records the event, evicting the oldest when full.
func (r *Ring) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = event
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns everything held.
func (r *Ring) Recent(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.next
	if r.full {
		count = len(r.events)
	}
	if limit <= 0 || limit > count {
		limit = count
	}
	out := make([]Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.events)) % len(r.events)
		out = append(out, r.events[idx])
	}
	return out
}
