// Package noop provides a passthrough synth adapter used when no synthesis
// backend is configured. Every directive realizes to the no-op command, so
// sessions run end to end and speech is forwarded without emotional
// coloring.
package noop

import "github.com/natea/conversational-reflection/pkg/synth"

// Compile-time interface assertion.
var _ synth.Adapter = (*Adapter)(nil)

// Adapter is the passthrough fallback adapter.
type Adapter struct{}

// New creates a no-op adapter.
func New() *Adapter { return &Adapter{} }

// Name returns "noop".
func (*Adapter) Name() string { return "noop" }

// Capabilities reports no supported directive kinds.
func (*Adapter) Capabilities() synth.Capabilities { return synth.Capabilities{} }

// Realize always returns the no-op command.
func (*Adapter) Realize(synth.Directive) synth.Command { return synth.Noop() }

// ApplyVoiceProfile passes the profile's identifiers through unchanged.
func (*Adapter) ApplyVoiceProfile(p synth.Profile) synth.VoiceSelector {
	return synth.VoiceSelector{VoiceID: p.VoiceID, Description: p.VoiceDescription}
}
