// Package cartesia provides a Cartesia Sonic-backed synth adapter. It
// implements the synth.Adapter interface.
//
// Cartesia expresses emotion through SSML-style tags embedded in the spoken
// text (<emotion/>, <speed/>, <volume/>), so this adapter realizes
// inline-markup directives by rewriting utterance text. It also accepts
// parameter-set directives, which map onto the generation_config bundle the
// Cartesia API takes alongside each synthesis request.
package cartesia

import (
	"fmt"
	"strings"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// Compile-time interface assertion.
var _ synth.Adapter = (*Adapter)(nil)

// Option is a functional option for configuring the Cartesia Adapter.
type Option func(*Adapter)

// WithModel sets the Cartesia model ID (e.g., "sonic-3").
func WithModel(model string) Option {
	return func(a *Adapter) {
		a.model = model
	}
}

// WithDefaultVoiceID sets the fallback voice used when a profile carries no
// voice ID of its own.
func WithDefaultVoiceID(id string) Option {
	return func(a *Adapter) {
		a.defaultVoiceID = id
	}
}

const defaultModel = "sonic-3"

// Adapter realizes emotion directives as Cartesia SSML markup.
type Adapter struct {
	model          string
	defaultVoiceID string
}

// New creates a Cartesia adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{model: defaultModel}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name returns "cartesia".
func (a *Adapter) Name() string { return "cartesia" }

// Capabilities reports that Cartesia consumes both directive kinds.
func (a *Adapter) Capabilities() synth.Capabilities {
	return synth.Capabilities{InlineMarkup: true, ParameterSet: true}
}

// Realize converts d into a text-transform command that inserts the SSML
// fragment at the position named by d.Insertion, or a parameter push for
// parameter-set directives. Neutral directives realize to the no-op command
// so unmarked text reaches the synthesizer untouched.
func (a *Adapter) Realize(d synth.Directive) synth.Command {
	switch d.Kind {
	case synth.KindInlineMarkup:
		fragment := buildFragment(d)
		if fragment == "" {
			return synth.Noop()
		}
		rule := d.Insertion
		return synth.Command{
			Kind: synth.CommandTextTransform,
			Transform: func(text string) string {
				return insertFragment(text, fragment, rule)
			},
		}
	case synth.KindParameterSet:
		params := generationConfig(d)
		if len(params) == 0 {
			return synth.Noop()
		}
		return synth.Command{Kind: synth.CommandParameterPush, Params: params}
	}
	return synth.Noop()
}

// ApplyVoiceProfile selects the Cartesia voice for a persona. Profiles with
// an explicit voice ID win; otherwise the adapter's default voice is used
// and the persona description is carried along for logging.
func (a *Adapter) ApplyVoiceProfile(p synth.Profile) synth.VoiceSelector {
	id := p.VoiceID
	if id == "" {
		id = a.defaultVoiceID
	}
	return synth.VoiceSelector{
		VoiceID:     id,
		Description: p.VoiceDescription,
	}
}

// buildFragment renders the SSML tags for a directive. Speed and volume tags
// are emitted only when the ratio deviates audibly from 1.0; a lone neutral
// emotion tag is suppressed entirely.
func buildFragment(d synth.Directive) string {
	var tags []string

	if d.Tone != "" && d.Tone != "neutral" {
		tags = append(tags, fmt.Sprintf(`<emotion value=%q />`, d.Tone))
	}
	if ratio, ok := audibleRatio(d.Speed); ok {
		tags = append(tags, fmt.Sprintf(`<speed ratio="%.2f" />`, ratio))
	}
	if ratio, ok := audibleRatio(d.Volume); ok {
		tags = append(tags, fmt.Sprintf(`<volume ratio="%.2f" />`, ratio))
	}

	return strings.Join(tags, " ")
}

// audibleRatio reports whether r is set and differs from the 1.0 default by
// more than the audible threshold.
func audibleRatio(r float64) (float64, bool) {
	if r == 0 {
		return 0, false
	}
	delta := r - 1.0
	if delta < 0 {
		delta = -delta
	}
	if delta <= 0.05 {
		return 0, false
	}
	return r, true
}

// generationConfig maps a directive onto Cartesia's generation_config keys.
func generationConfig(d synth.Directive) map[string]string {
	params := make(map[string]string)
	if d.Tone != "" && d.Tone != "neutral" {
		params["emotion"] = d.Tone
	}
	if ratio, ok := audibleRatio(d.Speed); ok {
		params["speed"] = fmt.Sprintf("%.2f", ratio)
	}
	if ratio, ok := audibleRatio(d.Volume); ok {
		params["volume"] = fmt.Sprintf("%.2f", ratio)
	}
	for k, v := range d.Params {
		params[k] = v
	}
	return params
}

// insertFragment places fragment into text according to rule. Unknown rules
// and degenerate inputs fall back to prefixing the whole utterance.
func insertFragment(text, fragment string, rule synth.InsertionRule) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	sentences := splitSentences(text)

	switch rule {
	case synth.InsertBeforePeakPhrase:
		if idx := peakSentence(sentences); idx > 0 {
			return joinWithFragment(sentences, idx, fragment)
		}
	case synth.InsertNearEmotionalPeak:
		if len(sentences) > 1 {
			return joinWithFragment(sentences, len(sentences)-1, fragment)
		}
	}

	return fragment + " " + text
}

// splitSentences breaks text into sentences, keeping terminal punctuation
// attached. The split is intentionally rough — markup placement is a
// heuristic, not a parse.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?':
			seg := strings.TrimSpace(text[start : i+1])
			if seg != "" {
				out = append(out, seg)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// peakSentence picks the most emotionally salient sentence: the first
// exclamatory one, else the longest. Returns its index, or 0 when the text
// has no interior candidate.
func peakSentence(sentences []string) int {
	if len(sentences) < 2 {
		return 0
	}
	for i, s := range sentences {
		if strings.HasSuffix(s, "!") {
			return i
		}
	}
	longest := 0
	for i, s := range sentences {
		if len(s) > len(sentences[longest]) {
			longest = i
		}
	}
	return longest
}

// joinWithFragment reassembles sentences with fragment inserted before the
// sentence at idx.
func joinWithFragment(sentences []string, idx int, fragment string) string {
	parts := make([]string, 0, len(sentences)+1)
	for i, s := range sentences {
		if i == idx {
			parts = append(parts, fragment)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
