package api

import (
	"cmp"
	"slices"
	"time"
)

// SortQueueItemsNewestFirst orders queue items by CreatedAt descending,
// breaking ties by ID.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b QueueItem) int {
		ta := parseQueueTime(a.CreatedAt)
		tb := parseQueueTime(b.CreatedAt)
		if c := tb.Compare(ta); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseQueueTime exposes queue timestamp parsing for consumers that need
// display formatting.
func ParseQueueTime(value string) time.Time {
	return parseQueueTime(value)
}
