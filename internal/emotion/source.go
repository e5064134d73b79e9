package emotion

import "context"

// Source is the external emotional-state collaborator. Implementations may
// block on I/O; callers bound each query with a context deadline. A Source
// may be unavailable at any time — callers substitute [NeutralSnapshot]
// rather than propagating the failure.
type Source interface {
	// CurrentSnapshot returns a fresh snapshot of the current emotional
	// state. The returned value is never mutated by the source afterwards.
	CurrentSnapshot(ctx context.Context) (Snapshot, error)
}

// StaticSource is a Source that always returns a fixed snapshot. Useful as
// a development stand-in when no emotional-state server is configured.
type StaticSource struct {
	Snapshot Snapshot
}

// CurrentSnapshot returns the fixed snapshot.
func (s StaticSource) CurrentSnapshot(context.Context) (Snapshot, error) {
	return s.Snapshot, nil
}
