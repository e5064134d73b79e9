// Package mock provides a configurable emotion.Source implementation for tests.
package mock

import (
	"context"
	"sync"

	"github.com/natea/conversational-reflection/internal/emotion"
)

// Compile-time interface assertion.
var _ emotion.Source = (*Source)(nil)

// Source is a mock emotional-state source. Configure the exported fields
// before use; calls are counted and safe for concurrent inspection.
type Source struct {
	mu sync.Mutex

	// Snapshot is returned by CurrentSnapshot when Err is nil.
	Snapshot emotion.Snapshot

	// Err, when non-nil, is returned by every CurrentSnapshot call.
	Err error

	// Block, when non-nil, makes CurrentSnapshot wait until the channel is
	// closed or the context expires. Used to exercise timeout fallbacks.
	Block chan struct{}

	calls int
}

func (s *Source) CurrentSnapshot(ctx context.Context) (emotion.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	block := s.Block
	snap, err := s.Snapshot, s.Err
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return emotion.Snapshot{}, ctx.Err()
		}
	}
	return snap, err
}

// Calls returns how many times CurrentSnapshot has been invoked.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
