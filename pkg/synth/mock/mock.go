// Package mock provides a configurable synth.Adapter implementation for tests.
package mock

import (
	"sync"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// Compile-time interface assertion.
var _ synth.Adapter = (*Adapter)(nil)

// Adapter is a mock synth adapter. Configure the exported fields before use;
// calls are recorded and safe for concurrent inspection.
type Adapter struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// Caps is returned by Capabilities.
	Caps synth.Capabilities

	// RealizeResult is returned by Realize. When the zero value, Realize
	// returns the no-op command.
	RealizeResult synth.Command

	// SelectorResult is returned by ApplyVoiceProfile.
	SelectorResult synth.VoiceSelector

	// RealizedDirectives records every directive passed to Realize.
	RealizedDirectives []synth.Directive

	// AppliedProfiles records every profile passed to ApplyVoiceProfile.
	AppliedProfiles []synth.Profile
}

func (a *Adapter) Name() string {
	if a.NameResult == "" {
		return "mock"
	}
	return a.NameResult
}

func (a *Adapter) Capabilities() synth.Capabilities { return a.Caps }

func (a *Adapter) Realize(d synth.Directive) synth.Command {
	a.mu.Lock()
	a.RealizedDirectives = append(a.RealizedDirectives, d)
	a.mu.Unlock()
	if a.RealizeResult.Kind == "" {
		return synth.Noop()
	}
	return a.RealizeResult
}

func (a *Adapter) ApplyVoiceProfile(p synth.Profile) synth.VoiceSelector {
	a.mu.Lock()
	a.AppliedProfiles = append(a.AppliedProfiles, p)
	a.mu.Unlock()
	return a.SelectorResult
}

// RealizeCount returns how many times Realize has been called.
func (a *Adapter) RealizeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.RealizedDirectives)
}
