package stage

import (
	"fmt"

	"jobsift/internal/queue"
)

// Health summarizes whether one sub-stage handler can run.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a ready sub-stage.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a sub-stage that cannot run, with the reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Missing reports a sub-stage whose collaborator was never wired.
func Missing(name, dependency string) Health {
	return Unhealthy(name, fmt.Sprintf("no %s configured", dependency))
}

// Unregistered reports a sub-stage in the type's sequence with no handler.
func Unregistered(subStage queue.SubStage) Health {
	return Unhealthy(string(subStage), "no handler registered")
}

// HealthKey names a sub-stage in status maps, e.g. "listing/analyze".
func HealthKey(itemType queue.ItemType, subStage queue.SubStage) string {
	return string(itemType) + "/" + string(subStage)
}
