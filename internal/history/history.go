// Package history defines the finalized-utterance record handed to the
// conversation-history collaborator, the Recorder interface it is delivered
// through, and a bounded in-memory implementation for development and tests.
package history

import (
	"context"
	"sync"
	"time"
)

// Role identifies which side of the conversation produced an utterance.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Utterance is one complete, immutable turn of speech. Records are emitted
// in turn-completion order, one per finalized turn.
type Utterance struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Recorder receives finalized utterance records. Implementations must be
// safe for concurrent use across sessions; within one session, records
// arrive serialized in turn order.
type Recorder interface {
	Record(ctx context.Context, u Utterance) error
}

// MemoryRecorder is an in-memory Recorder that retains the most recent
// utterances up to a fixed capacity. Safe for concurrent use.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Utterance
	maxSize int
}

// Compile-time interface assertion.
var _ Recorder = (*MemoryRecorder)(nil)

const defaultMemoryCapacity = 512

// NewMemoryRecorder creates a recorder holding at most maxSize records.
// maxSize <= 0 selects a default capacity.
func NewMemoryRecorder(maxSize int) *MemoryRecorder {
	if maxSize <= 0 {
		maxSize = defaultMemoryCapacity
	}
	return &MemoryRecorder{maxSize: maxSize}
}

// Record appends u, evicting the oldest record when over capacity.
func (r *MemoryRecorder) Record(_ context.Context, u Utterance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, u)
	if len(r.records) > r.maxSize {
		fresh := make([]Utterance, r.maxSize)
		copy(fresh, r.records[len(r.records)-r.maxSize:])
		r.records = fresh
	}
	return nil
}

// Recent returns up to n records in chronological order. A non-positive n
// yields an empty slice.
func (r *MemoryRecorder) Recent(n int) []Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(r.records) {
		n = len(r.records)
	}
	out := make([]Utterance, n)
	copy(out, r.records[len(r.records)-n:])
	return out
}
