// Package voices maintains the voice profile registry: the mapping from a
// conversation participant identity to the persona voice used when speech is
// synthesized on their behalf.
//
// The registry is read-mostly: profiles are created and updated by the
// operator-driven configuration path and only read during live sessions.
// A simple RWMutex with last-writer-wins semantics is sufficient — voice
// selection is not safety-critical and stale-by-one-update reads are
// acceptable.
//
// One designated "self" profile represents the system's own persona. It is
// fixed at construction and excluded from mutation through Set and Remove;
// the emotion mapper additionally caps the self voice below the highest
// intensity bucket.
package voices

import (
	"errors"
	"fmt"
	"sync"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// ErrSelfProfileImmutable is returned when Set or Remove targets the self
// profile.
var ErrSelfProfileImmutable = errors.New("voices: self profile cannot be modified")

// ErrNotFound is returned by Get and Remove for unknown participant IDs.
var ErrNotFound = errors.New("voices: profile not found")

// Registry maps participant IDs to voice profiles. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]synth.Profile
	selfID   string
	resolver *Resolver
}

// NewRegistry creates a registry with self as the designated system persona.
// self.Self is forced true and its ParticipantID must be non-empty.
func NewRegistry(self synth.Profile) (*Registry, error) {
	if self.ParticipantID == "" {
		return nil, fmt.Errorf("voices: self profile requires a participant_id")
	}
	self.Self = true
	r := &Registry{
		profiles: map[string]synth.Profile{self.ParticipantID: self},
		selfID:   self.ParticipantID,
		resolver: NewResolver(),
	}
	return r, nil
}

// Self returns the system's own persona profile.
func (r *Registry) Self() synth.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[r.selfID]
}

// Get returns the profile for id, or [ErrNotFound].
func (r *Registry) Get(id string) (synth.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return synth.Profile{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// Set creates or replaces the profile for id. Setting the self profile is
// rejected with [ErrSelfProfileImmutable]. The profile's ParticipantID is
// overwritten with id and Self is forced false.
func (r *Registry) Set(id string, p synth.Profile) error {
	if id == "" {
		return fmt.Errorf("voices: participant id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.selfID {
		return ErrSelfProfileImmutable
	}
	p.ParticipantID = id
	p.Self = false
	r.profiles[id] = p
	return nil
}

// Remove deletes the profile for id. Removing the self profile is rejected.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.selfID {
		return ErrSelfProfileImmutable
	}
	if _, ok := r.profiles[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.profiles, id)
	return nil
}

// All returns a snapshot of every registered profile, self included.
func (r *Registry) All() []synth.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]synth.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out
}

// Resolve finds the profile whose display name best matches name, tolerating
// the misspellings and phonetic drift typical of speech transcripts. Exact
// participant-ID matches win; otherwise display names are matched
// phonetically. Returns [ErrNotFound] when nothing matches confidently.
func (r *Registry) Resolve(name string) (synth.Profile, error) {
	if p, err := r.Get(name); err == nil {
		return p, nil
	}

	r.mu.RLock()
	names := make([]string, 0, len(r.profiles))
	byName := make(map[string]synth.Profile, len(r.profiles))
	for _, p := range r.profiles {
		if p.DisplayName == "" {
			continue
		}
		names = append(names, p.DisplayName)
		byName[p.DisplayName] = p
	}
	r.mu.RUnlock()

	matched, _, ok := r.resolver.Match(name, names)
	if !ok {
		return synth.Profile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return byName[matched], nil
}
