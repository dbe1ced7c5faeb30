// Package lineage guards and performs item spawning.
//
// Every non-root item is created by Spawner.SpawnChild, which stamps the
// child's lineage (tracking id, ancestry, depth) from its parent and asks the
// Guard whether the spawn may proceed. The Guard is read-only: it checks the
// depth cap, circular ancestry on the same sub-stage, duplicate pending work,
// and already-succeeded work within the lineage, in that order.
package lineage
