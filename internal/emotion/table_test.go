package emotion

import "testing"

func TestDefaultTable_Complete(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	for _, e := range Emotions {
		for _, b := range Buckets {
			if !table.Has(e, b) {
				t.Errorf("missing table entry for (%s, %s)", e, b)
			}
		}
	}
}

func TestDefaultTable_DomainsRespected(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	for _, e := range Emotions {
		for _, b := range Buckets {
			d := table.Lookup(e, b)
			if d.Tone == "" {
				t.Errorf("(%s, %s): empty tone", e, b)
			}
			if d.Emphasis < emphasisMin || d.Emphasis > emphasisMax {
				t.Errorf("(%s, %s): emphasis %v out of range", e, b, d.Emphasis)
			}
			if d.Loudness < loudnessMin || d.Loudness > loudnessMax {
				t.Errorf("(%s, %s): loudness %v out of range", e, b, d.Loudness)
			}
			if d.Speed < speedMin || d.Speed > speedMax {
				t.Errorf("(%s, %s): speed %v out of range", e, b, d.Speed)
			}
		}
	}
}

func TestLookup_UnknownFallsBackToNeutral(t *testing.T) {
	t.Parallel()

	d := DefaultTable().Lookup(PrimaryEmotion("nostalgia"), BucketHigh)
	if d.Tone != "neutral" {
		t.Errorf("unknown emotion tone = %q, want neutral", d.Tone)
	}
}

func TestBucket_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		intensity float64
		want      IntensityBucket
	}{
		{0, BucketLow},
		{0.34, BucketLow},
		{0.35, BucketMedium},
		{0.6999, BucketMedium},
		{0.7, BucketHigh},
		{1.0, BucketHigh},
	}
	for _, tc := range tests {
		if got := Bucket(tc.intensity); got != tc.want {
			t.Errorf("Bucket(%v) = %s, want %s", tc.intensity, got, tc.want)
		}
	}
}

func TestParseEmotion(t *testing.T) {
	t.Parallel()

	if got := ParseEmotion("anger"); got != Anger {
		t.Errorf("ParseEmotion(anger) = %s", got)
	}
	if got := ParseEmotion("ennui"); got != Neutral {
		t.Errorf("unknown label must map to neutral, got %s", got)
	}
	if got := ParseEmotion(""); got != Neutral {
		t.Errorf("empty label must map to neutral, got %s", got)
	}
}

func TestApplyBodyModifiers_HighEnergy(t *testing.T) {
	t.Parallel()

	base := BaseDirective{Tone: "happy", Emphasis: 0.5, Loudness: 1.0, Speed: 1.05}
	got := ApplyBodyModifiers(base, &BodyState{Energy: 1.0})

	if !approx(got.Emphasis, 0.6) {
		t.Errorf("emphasis = %v, want 0.6", got.Emphasis)
	}
	// Energy 1.0 puts speed at the top of the energetic range.
	if !approx(got.Speed, 1.3) {
		t.Errorf("speed = %v, want 1.3", got.Speed)
	}
}

func TestApplyBodyModifiers_LowEnergy(t *testing.T) {
	t.Parallel()

	base := BaseDirective{Tone: "sad", Emphasis: 0.5, Loudness: 0.85, Speed: 0.85}
	got := ApplyBodyModifiers(base, &BodyState{Energy: 0})

	if !approx(got.Emphasis, 0.4) {
		t.Errorf("emphasis = %v, want 0.4", got.Emphasis)
	}
	if !approx(got.Speed, 0.8) {
		t.Errorf("speed = %v, want 0.8", got.Speed)
	}
}

func TestApplyBodyModifiers_TensionRaisesLoudness(t *testing.T) {
	t.Parallel()

	base := BaseDirective{Tone: "angry", Emphasis: 0.6, Loudness: 1.2, Speed: 1.05}
	got := ApplyBodyModifiers(base, &BodyState{Energy: 0.5, Tension: 1.0})

	if !approx(got.Loudness, 1.4) {
		t.Errorf("loudness = %v, want 1.4", got.Loudness)
	}
	// Mid energy leaves emphasis and speed alone.
	if got.Emphasis != base.Emphasis || got.Speed != base.Speed {
		t.Errorf("mid energy must not modify emphasis/speed: %+v", got)
	}
}

func TestApplyBodyModifiers_ClampsToDomain(t *testing.T) {
	t.Parallel()

	base := BaseDirective{Tone: "outraged", Emphasis: 0.95, Loudness: 1.9, Speed: 1.4}
	got := ApplyBodyModifiers(base, &BodyState{Energy: 1.0, Tension: 1.0})

	if got.Emphasis > emphasisMax {
		t.Errorf("emphasis %v exceeds max", got.Emphasis)
	}
	if got.Loudness > loudnessMax {
		t.Errorf("loudness %v exceeds max", got.Loudness)
	}
	if got.Speed > speedMax {
		t.Errorf("speed %v exceeds max", got.Speed)
	}
}

func TestApplyBodyModifiers_NilBody(t *testing.T) {
	t.Parallel()

	base := BaseDirective{Tone: "happy", Emphasis: 0.5, Loudness: 1.0, Speed: 1.05}
	if got := ApplyBodyModifiers(base, nil); got != base {
		t.Errorf("nil body must return base unchanged, got %+v", got)
	}
}

func TestApplyIntensityBoost(t *testing.T) {
	t.Parallel()

	base := BaseDirective{Tone: "excited", Emphasis: 0.9, Loudness: 1.1, Speed: 1.15}

	if got := applyIntensityBoost(base, 0.7); got != base {
		t.Errorf("intensity 0.7 must not boost, got %+v", got)
	}

	got := applyIntensityBoost(base, 1.0)
	if want := 1.1 * 1.09; !approx(got.Loudness, want) {
		t.Errorf("loudness = %v, want %v", got.Loudness, want)
	}
}

// approx compares floats within a tolerance wide enough to absorb the
// accumulated rounding of the modifier arithmetic.
func approx(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
