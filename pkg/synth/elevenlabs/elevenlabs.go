// Package elevenlabs provides an ElevenLabs-backed synth adapter. It
// implements the synth.Adapter interface.
//
// ElevenLabs has no inline emotion markup; expression is controlled through
// the voice_settings bundle (stability, style, similarity_boost, speed)
// attached to each synthesis request. The adapter therefore realizes only
// parameter-set directives and degrades inline-markup directives to no-ops.
package elevenlabs

import (
	"fmt"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// Compile-time interface assertion.
var _ synth.Adapter = (*Adapter)(nil)

const (
	defaultStability  = 0.5
	defaultSimilarity = 0.75
)

// Option is a functional option for configuring the ElevenLabs Adapter.
type Option func(*Adapter)

// WithDefaultVoiceID sets the fallback voice used when a profile carries no
// voice ID of its own.
func WithDefaultVoiceID(id string) Option {
	return func(a *Adapter) {
		a.defaultVoiceID = id
	}
}

// Adapter realizes emotion directives as ElevenLabs voice_settings pushes.
type Adapter struct {
	defaultVoiceID string
}

// New creates an ElevenLabs adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name returns "elevenlabs".
func (a *Adapter) Name() string { return "elevenlabs" }

// Capabilities reports that ElevenLabs consumes parameter-set directives only.
func (a *Adapter) Capabilities() synth.Capabilities {
	return synth.Capabilities{ParameterSet: true}
}

// Realize converts a parameter-set directive into a voice_settings push.
// Inline-markup directives and neutral directives degrade to the no-op
// command; ElevenLabs would speak the tags aloud if they reached the text.
func (a *Adapter) Realize(d synth.Directive) synth.Command {
	if d.Kind != synth.KindParameterSet {
		return synth.Noop()
	}
	if d.Neutral() && d.Emphasis == 0 {
		return synth.Noop()
	}

	// Emphasis maps inversely onto stability: an expressive delivery needs
	// a less stable (more variable) voice. Style tracks emphasis directly.
	stability := defaultStability - 0.3*d.Emphasis
	if stability < 0.1 {
		stability = 0.1
	}
	style := d.Emphasis

	params := map[string]string{
		"stability":        fmt.Sprintf("%.2f", stability),
		"similarity_boost": fmt.Sprintf("%.2f", defaultSimilarity),
		"style":            fmt.Sprintf("%.2f", style),
	}
	if d.Speed != 0 {
		params["speed"] = fmt.Sprintf("%.2f", d.Speed)
	}
	for k, v := range d.Params {
		params[k] = v
	}

	return synth.Command{Kind: synth.CommandParameterPush, Params: params}
}

// ApplyVoiceProfile selects the ElevenLabs voice for a persona.
func (a *Adapter) ApplyVoiceProfile(p synth.Profile) synth.VoiceSelector {
	id := p.VoiceID
	if id == "" {
		id = a.defaultVoiceID
	}
	return synth.VoiceSelector{VoiceID: id, Description: p.VoiceDescription}
}
