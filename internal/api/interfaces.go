package api

// This package is the consumer of the snapshot service, so the interface it
// needs lives here rather than next to the implementation. Handlers only care
// about queue introspection; job submission belongs to the session layer.

// SnapshotService defines what handlers need from the snapshot worker pool.
type SnapshotService interface {
	QueueLength() int
}
