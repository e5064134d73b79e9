package emotion

// BaseDirective is the provider-agnostic output of the directive table:
// a synthesizer tone label plus expression scalars, before any backend
// translation.
//
// Field domains (modifiers clamp back into these ranges):
//
//	Emphasis [0, 1]       expressiveness
//	Loudness [0.5, 2.0]   volume ratio
//	Speed    [0.6, 1.5]   speaking-rate ratio
type BaseDirective struct {
	Tone     string
	Emphasis float64
	Loudness float64
	Speed    float64
}

const (
	emphasisMin = 0.0
	emphasisMax = 1.0
	loudnessMin = 0.5
	loudnessMax = 2.0
	speedMin    = 0.6
	speedMax    = 1.5
)

// Table is the static mapping from (primary emotion, intensity bucket) to a
// base directive. It is immutable after construction and safe for concurrent
// reads.
type Table struct {
	entries map[PrimaryEmotion]map[IntensityBucket]BaseDirective
}

// DefaultTable returns the built-in directive table. The tone ladder per
// emotion escalates with intensity; every (emotion, bucket) pair has an
// entry — completeness is a build-time invariant enforced by tests, not a
// runtime failure mode.
func DefaultTable() *Table {
	return &Table{entries: map[PrimaryEmotion]map[IntensityBucket]BaseDirective{
		Joy: {
			BucketLow:    {Tone: "content", Emphasis: 0.2, Loudness: 1.0, Speed: 1.0},
			BucketMedium: {Tone: "happy", Emphasis: 0.5, Loudness: 1.0, Speed: 1.05},
			BucketHigh:   {Tone: "excited", Emphasis: 0.9, Loudness: 1.1, Speed: 1.15},
		},
		Sadness: {
			BucketLow:    {Tone: "tired", Emphasis: 0.1, Loudness: 0.9, Speed: 0.9},
			BucketMedium: {Tone: "sad", Emphasis: 0.4, Loudness: 0.85, Speed: 0.85},
			BucketHigh:   {Tone: "melancholic", Emphasis: 0.7, Loudness: 0.8, Speed: 0.8},
		},
		Anger: {
			BucketLow:    {Tone: "frustrated", Emphasis: 0.3, Loudness: 1.05, Speed: 1.0},
			BucketMedium: {Tone: "angry", Emphasis: 0.6, Loudness: 1.2, Speed: 1.05},
			BucketHigh:   {Tone: "outraged", Emphasis: 0.95, Loudness: 1.4, Speed: 1.1},
		},
		Fear: {
			BucketLow:    {Tone: "hesitant", Emphasis: 0.2, Loudness: 0.9, Speed: 0.95},
			BucketMedium: {Tone: "anxious", Emphasis: 0.5, Loudness: 1.0, Speed: 1.1},
			BucketHigh:   {Tone: "panicked", Emphasis: 0.85, Loudness: 1.15, Speed: 1.25},
		},
		Disgust: {
			BucketLow:    {Tone: "skeptical", Emphasis: 0.2, Loudness: 1.0, Speed: 0.95},
			BucketMedium: {Tone: "disgusted", Emphasis: 0.5, Loudness: 1.05, Speed: 0.95},
			BucketHigh:   {Tone: "contempt", Emphasis: 0.8, Loudness: 1.1, Speed: 0.9},
		},
		Surprise: {
			BucketLow:    {Tone: "curious", Emphasis: 0.3, Loudness: 1.0, Speed: 1.0},
			BucketMedium: {Tone: "surprised", Emphasis: 0.6, Loudness: 1.1, Speed: 1.1},
			BucketHigh:   {Tone: "amazed", Emphasis: 0.9, Loudness: 1.15, Speed: 1.15},
		},
		Neutral: {
			BucketLow:    {Tone: "calm", Emphasis: 0.1, Loudness: 1.0, Speed: 1.0},
			BucketMedium: {Tone: "neutral", Emphasis: 0.2, Loudness: 1.0, Speed: 1.0},
			BucketHigh:   {Tone: "contemplative", Emphasis: 0.4, Loudness: 1.0, Speed: 0.95},
		},
	}}
}

// Lookup returns the base directive for (e, bucket). The table is total over
// the closed enumeration; a missing entry is a programmer error and returns
// the neutral-calm directive so a defect can never fault a live session.
func (t *Table) Lookup(e PrimaryEmotion, bucket IntensityBucket) BaseDirective {
	if row, ok := t.entries[e]; ok {
		if d, ok := row[bucket]; ok {
			return d
		}
	}
	return BaseDirective{Tone: "neutral", Emphasis: 0.2, Loudness: 1.0, Speed: 1.0}
}

// Has reports whether an entry exists for (e, bucket). Used by the
// completeness test.
func (t *Table) Has(e PrimaryEmotion, bucket IntensityBucket) bool {
	row, ok := t.entries[e]
	if !ok {
		return false
	}
	_, ok = row[bucket]
	return ok
}

// ApplyBodyModifiers returns base adjusted by somatic state. Adjustments are
// per-field, not per-emotion:
//
//	energy > 0.7   emphasis ×1.2, speed raised toward the energetic range
//	energy < 0.3   emphasis ×0.8, speed lowered toward the low-energy range
//	tension > 0.6  loudness += (tension−0.6)×0.5
//
// Every result is clamped back into the field's declared domain. A nil body
// state returns base unchanged.
func ApplyBodyModifiers(base BaseDirective, body *BodyState) BaseDirective {
	if body == nil {
		return base
	}

	out := base

	switch {
	case body.Energy > 0.7:
		out.Emphasis *= 1.2
		out.Speed = 1.05 + (body.Energy-0.7)/0.3*0.25
	case body.Energy < 0.3:
		out.Emphasis *= 0.8
		out.Speed = 0.8 + body.Energy/0.3*0.15
	}

	if body.Tension > 0.6 {
		out.Loudness += (body.Tension - 0.6) * 0.5
	}

	out.Emphasis = clamp(out.Emphasis, emphasisMin, emphasisMax)
	out.Loudness = clamp(out.Loudness, loudnessMin, loudnessMax)
	out.Speed = clamp(out.Speed, speedMin, speedMax)
	return out
}

// applyIntensityBoost raises loudness for very intense snapshots, clamped to
// the loudness domain. Kept separate from body modifiers because it depends
// on the snapshot's intensity, not its body state.
func applyIntensityBoost(base BaseDirective, intensity float64) BaseDirective {
	if intensity <= 0.7 {
		return base
	}
	out := base
	out.Loudness *= 1 + (intensity-0.7)*0.3
	out.Loudness = clamp(out.Loudness, loudnessMin, loudnessMax)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
