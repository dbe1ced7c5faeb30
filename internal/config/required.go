package config

import (
	"fmt"
	"strings"
)

// requiredKeys lists dotted keys that must be present in the file. These
// values steer loop prevention, filtering, and scheduling, so Load refuses to
// invent them.
var requiredKeys = []string{
	"pipeline.max_spawn_depth",
	"pipeline.max_retries",
	"filter.strike_threshold",
	"analysis.min_score",
	"scheduler.target_matches",
	"scheduler.max_sources_per_tick",
	"scheduler.active_start",
	"scheduler.active_end",
}

// MissingKeyError reports a required key absent from the configuration file.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s is required (no default is applied)", e.Key)
}

func checkRequired(raw map[string]any) error {
	for _, key := range requiredKeys {
		if !hasKey(raw, strings.Split(key, ".")) {
			return &MissingKeyError{Key: key}
		}
	}
	return nil
}

func hasKey(node map[string]any, path []string) bool {
	value, ok := node[path[0]]
	if !ok {
		return false
	}
	if len(path) == 1 {
		return true
	}
	child, ok := value.(map[string]any)
	if !ok {
		return false
	}
	return hasKey(child, path[1:])
}
