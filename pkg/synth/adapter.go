// Package synth defines the Adapter interface for speech-synthesis backends
// and the provider-agnostic Directive and Command types exchanged with them.
//
// An adapter translates a normalized emotion [Directive] into its backend's
// native control surface. Backends fall into two families: markup-based
// (emotion is expressed through tags injected into the spoken text) and
// parameter-based (emotion is expressed through numeric voice settings
// pushed out-of-band before synthesis). An adapter declares which families
// it supports through capability flags; callers must pick a directive kind
// the adapter supports, and adapters silently degrade to a no-op command for
// kinds they cannot consume. Emotion expression is an enhancement, never a
// blocking dependency — nothing in this package returns an error for an
// unsupported or degenerate directive.
//
// Implementations must be safe for concurrent use.
package synth

// Capabilities declares which [DirectiveKind] values an adapter can realize.
type Capabilities struct {
	// InlineMarkup is true when the adapter can consume inline-markup
	// directives by rewriting utterance text.
	InlineMarkup bool

	// ParameterSet is true when the adapter can consume parameter-set
	// directives by pushing configuration to the synthesizer.
	ParameterSet bool
}

// Supports reports whether kind can be realized by an adapter with these
// capabilities.
func (c Capabilities) Supports(kind DirectiveKind) bool {
	switch kind {
	case KindInlineMarkup:
		return c.InlineMarkup
	case KindParameterSet:
		return c.ParameterSet
	}
	return false
}

// Adapter is the abstraction over one synthesizer backend's control surface.
type Adapter interface {
	// Name returns the backend identifier (e.g., "cartesia", "elevenlabs").
	Name() string

	// Capabilities reports which directive kinds this adapter realizes.
	Capabilities() Capabilities

	// Realize converts a directive into a backend-specific [Command].
	// Directives of an unsupported kind, and neutral directives with
	// nothing audible to apply, realize to the no-op command. Realize
	// never fails.
	Realize(d Directive) Command

	// ApplyVoiceProfile maps a persona profile to the backend's concrete
	// voice selector. Independent of emotion directives.
	ApplyVoiceProfile(p Profile) VoiceSelector
}
