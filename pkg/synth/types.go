package synth

// DirectiveKind selects which control surface a [Directive] targets.
type DirectiveKind string

const (
	// KindInlineMarkup means the utterance text must be augmented with a
	// markup fragment before it is handed to the synthesizer.
	KindInlineMarkup DirectiveKind = "inline-markup"

	// KindParameterSet means a flat parameter bundle is pushed to the
	// synthesizer's live configuration, independent of the text.
	KindParameterSet DirectiveKind = "parameter-set"
)

// InsertionRule tells an inline-markup adapter where within the utterance
// text the markup fragment belongs.
type InsertionRule string

const (
	// InsertUtteranceStart prefixes the fragment to the whole utterance.
	InsertUtteranceStart InsertionRule = "utterance-start"

	// InsertBeforePeakPhrase places the fragment immediately before the
	// phrase judged most emotionally salient.
	InsertBeforePeakPhrase InsertionRule = "before-peak-phrase"

	// InsertNearEmotionalPeak places the fragment before the closing
	// phrase of the utterance.
	InsertNearEmotionalPeak InsertionRule = "near-emotional-peak"
)

// IsValid reports whether r is a recognised insertion rule.
func (r InsertionRule) IsValid() bool {
	switch r {
	case InsertUtteranceStart, InsertBeforePeakPhrase, InsertNearEmotionalPeak:
		return true
	}
	return false
}

// Directive is a normalized, provider-agnostic description of how emotion
// should color one synthesized utterance. Exactly one Directive is active
// per bot utterance; it is computed once and never recomputed mid-speech.
type Directive struct {
	// Kind selects the control surface. Adapters that do not support the
	// requested kind degrade to a no-op [Command] rather than erroring.
	Kind DirectiveKind

	// Tone is the synthesizer emotion label (e.g., "excited", "melancholic").
	Tone string

	// Speed is the speaking-rate ratio in [0.6, 1.5]. 1.0 means unchanged.
	Speed float64

	// Volume is the loudness ratio in [0.5, 2.0]. 1.0 means unchanged.
	Volume float64

	// Emphasis is the expressiveness scalar in [0, 1].
	Emphasis float64

	// Insertion applies to inline-markup directives only.
	Insertion InsertionRule

	// Params is the flat parameter bundle for parameter-set directives.
	// Nil for inline-markup directives.
	Params map[string]string
}

// Neutral reports whether the directive would leave synthesis audibly
// unchanged (neutral tone, all ratios at their defaults).
func (d Directive) Neutral() bool {
	return (d.Tone == "" || d.Tone == "neutral") &&
		ratioIsDefault(d.Speed) && ratioIsDefault(d.Volume)
}

// ratioThreshold is the minimum deviation from 1.0 before a speed or volume
// ratio is considered audible and worth emitting.
const ratioThreshold = 0.05

func ratioIsDefault(r float64) bool {
	if r == 0 {
		return true
	}
	delta := r - 1.0
	if delta < 0 {
		delta = -delta
	}
	return delta <= ratioThreshold
}

// CommandKind tags the variant held by a [Command].
type CommandKind string

const (
	// CommandTextTransform carries a function that rewrites utterance text.
	CommandTextTransform CommandKind = "text-transform"

	// CommandParameterPush carries parameters to push to the synthesizer
	// before or while it speaks.
	CommandParameterPush CommandKind = "parameter-push"

	// CommandNoop means the adapter had nothing to apply. Speech proceeds
	// without emotional coloring.
	CommandNoop CommandKind = "noop"
)

// Command is the realized, backend-specific output of a [Directive]. It is a
// tagged variant: exactly one of Transform or Params is meaningful, selected
// by Kind.
type Command struct {
	Kind CommandKind

	// Transform rewrites the utterance text. Non-nil iff Kind is
	// [CommandTextTransform]. Must be safe to call once per utterance.
	Transform func(text string) string

	// Params is the flat parameter bundle to push. Non-nil iff Kind is
	// [CommandParameterPush].
	Params map[string]string
}

// Noop returns the no-op command.
func Noop() Command {
	return Command{Kind: CommandNoop}
}

// Apply runs the command against utterance text. Parameter-push and no-op
// commands return the text unchanged.
func (c Command) Apply(text string) string {
	if c.Kind == CommandTextTransform && c.Transform != nil {
		return c.Transform(text)
	}
	return text
}

// Profile describes a conversation participant's persona voice. Profiles are
// owned by the configuration collaborator; this subsystem only reads them.
type Profile struct {
	// ParticipantID uniquely identifies the participant.
	ParticipantID string `json:"participant_id" yaml:"participant_id"`

	// DisplayName is the human-readable name (e.g., "Mom", "Coach").
	DisplayName string `json:"display_name" yaml:"display_name"`

	// VoiceDescription is a free-text persona description handed to
	// description-driven backends.
	VoiceDescription string `json:"voice_description" yaml:"voice_description"`

	// VoiceID is the backend-specific voice identifier, when known.
	VoiceID string `json:"voice_id" yaml:"voice_id"`

	// Gender is "male", "female", or "neutral". Optional.
	Gender string `json:"gender" yaml:"gender"`

	// AgeRange is a range like "55-65". Optional.
	AgeRange string `json:"age_range" yaml:"age_range"`

	// Accent is an optional accent hint.
	Accent string `json:"accent" yaml:"accent"`

	// TypicalEmotions lists emotions this persona tends to express.
	TypicalEmotions []string `json:"typical_emotions" yaml:"typical_emotions"`

	// SpeakingStyle describes delivery (e.g., "clipped and business-like").
	SpeakingStyle string `json:"speaking_style" yaml:"speaking_style"`

	// Self marks the system's own persona. The self voice never receives
	// the most extreme intensity directives.
	Self bool `json:"self" yaml:"self"`
}

// VoiceSelector identifies the concrete backend voice to synthesize with.
// It is orthogonal to emotion directives.
type VoiceSelector struct {
	// VoiceID is the backend voice identifier, when the backend addresses
	// voices by ID.
	VoiceID string

	// Description is a natural-language voice description, for backends
	// that synthesize from descriptions instead of fixed IDs.
	Description string
}
