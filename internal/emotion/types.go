// Package emotion maps emotional-state snapshots to synthesizer directives.
//
// The external emotional-state source produces an immutable [Snapshot] on
// demand; the [Table] provides a complete, deterministic lookup from
// (primary emotion, intensity bucket) to a base directive; the [Mapper]
// buckets, looks up, applies body-state modifiers, and asks the active
// synth adapter to realize the result. Emotion expression is a non-critical
// enhancement: every failure in this package degrades to the neutral
// directive, never to an error surfaced to the session.
package emotion

// PrimaryEmotion is one of the closed set of Ekman primary emotions.
type PrimaryEmotion string

const (
	Joy      PrimaryEmotion = "joy"
	Sadness  PrimaryEmotion = "sadness"
	Anger    PrimaryEmotion = "anger"
	Fear     PrimaryEmotion = "fear"
	Disgust  PrimaryEmotion = "disgust"
	Surprise PrimaryEmotion = "surprise"
	Neutral  PrimaryEmotion = "neutral"
)

// Emotions lists every member of the closed enumeration. Used by the table
// completeness test and by parsers validating external labels.
var Emotions = []PrimaryEmotion{Joy, Sadness, Anger, Fear, Disgust, Surprise, Neutral}

// IsValid reports whether e is a member of the closed enumeration.
func (e PrimaryEmotion) IsValid() bool {
	switch e {
	case Joy, Sadness, Anger, Fear, Disgust, Surprise, Neutral:
		return true
	}
	return false
}

// ParseEmotion maps an external label to a [PrimaryEmotion]. Unknown labels
// map to [Neutral] — the emotional-state source is untrusted input and must
// never fault the pipeline.
func ParseEmotion(label string) PrimaryEmotion {
	e := PrimaryEmotion(label)
	if e.IsValid() {
		return e
	}
	return Neutral
}

// IntensityBucket is the discretized emotion intensity.
type IntensityBucket string

const (
	BucketLow    IntensityBucket = "low"
	BucketMedium IntensityBucket = "medium"
	BucketHigh   IntensityBucket = "high"
)

// Buckets lists all intensity buckets in ascending order.
var Buckets = []IntensityBucket{BucketLow, BucketMedium, BucketHigh}

// Bucket discretizes a continuous intensity score. The intervals are
// half-open: low is [0, 0.35), medium is [0.35, 0.7), high is [0.7, 1].
func Bucket(intensity float64) IntensityBucket {
	switch {
	case intensity < 0.35:
		return BucketLow
	case intensity < 0.7:
		return BucketMedium
	default:
		return BucketHigh
	}
}

// BodyState carries auxiliary somatic signals that modulate, but never
// select, the base emotion directive. Energy, Tension, and Arousal are in
// [0, 1]; Valence is in [-1, 1].
type BodyState struct {
	Energy  float64
	Tension float64
	Valence float64
	Arousal float64
}

// Snapshot is an immutable emotional-state value produced by the external
// source. It has no identity beyond its fields.
type Snapshot struct {
	// Primary is the dominant emotion.
	Primary PrimaryEmotion

	// Intensity is in [0, 1] and drives bucket selection.
	Intensity float64

	// Body is optional; nil means no somatic modulation.
	Body *BodyState
}

// NeutralSnapshot is the fallback used whenever the emotional-state source
// is unavailable or returns garbage.
func NeutralSnapshot() Snapshot {
	return Snapshot{Primary: Neutral, Intensity: 0}
}
