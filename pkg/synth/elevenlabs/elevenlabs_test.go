package elevenlabs

import (
	"testing"

	"github.com/natea/conversational-reflection/pkg/synth"
)

func TestCapabilities(t *testing.T) {
	caps := New().Capabilities()
	if caps.InlineMarkup {
		t.Error("inline markup must not be advertised; tags would be spoken aloud")
	}
	if !caps.ParameterSet {
		t.Error("parameter-set must be advertised")
	}
}

func TestRealize_InlineMarkupDegradesToNoop(t *testing.T) {
	cmd := New().Realize(synth.Directive{
		Kind: synth.KindInlineMarkup,
		Tone: "excited",
	})
	if cmd.Kind != synth.CommandNoop {
		t.Fatalf("inline-markup directive realized as %q, want noop", cmd.Kind)
	}
}

func TestRealize_NeutralIsNoop(t *testing.T) {
	cmd := New().Realize(synth.Directive{Kind: synth.KindParameterSet, Tone: "neutral"})
	if cmd.Kind != synth.CommandNoop {
		t.Fatalf("neutral directive realized as %q, want noop", cmd.Kind)
	}
}

func TestRealize_EmphasisLowersStability(t *testing.T) {
	cmd := New().Realize(synth.Directive{
		Kind:     synth.KindParameterSet,
		Tone:     "angry",
		Emphasis: 1.0,
	})
	if cmd.Kind != synth.CommandParameterPush {
		t.Fatalf("command kind = %q, want parameter-push", cmd.Kind)
	}
	// stability = 0.5 - 0.3*1.0 = 0.20
	if got := cmd.Params["stability"]; got != "0.20" {
		t.Errorf("stability = %q, want %q", got, "0.20")
	}
	if got := cmd.Params["style"]; got != "1.00" {
		t.Errorf("style = %q, want %q", got, "1.00")
	}
	if got := cmd.Params["similarity_boost"]; got != "0.75" {
		t.Errorf("similarity_boost = %q, want %q", got, "0.75")
	}
}

func TestRealize_StabilityFloor(t *testing.T) {
	// Emphasis beyond what the formula tolerates must clamp at the floor,
	// never go negative.
	cmd := New().Realize(synth.Directive{
		Kind:     synth.KindParameterSet,
		Tone:     "furious",
		Emphasis: 2.0,
	})
	if got := cmd.Params["stability"]; got != "0.10" {
		t.Errorf("stability = %q, want floor %q", got, "0.10")
	}
}

func TestRealize_SpeedAndExtraParams(t *testing.T) {
	cmd := New().Realize(synth.Directive{
		Kind:   synth.KindParameterSet,
		Tone:   "excited",
		Speed:  1.3,
		Params: map[string]string{"output_format": "pcm_16000"},
	})
	if got := cmd.Params["speed"]; got != "1.30" {
		t.Errorf("speed = %q, want %q", got, "1.30")
	}
	if got := cmd.Params["output_format"]; got != "pcm_16000" {
		t.Errorf("extra params must pass through, got %v", cmd.Params)
	}
}

func TestApplyVoiceProfile(t *testing.T) {
	a := New(WithDefaultVoiceID("rachel"))

	sel := a.ApplyVoiceProfile(synth.Profile{VoiceID: "adam"})
	if sel.VoiceID != "adam" {
		t.Errorf("explicit voice: VoiceID = %q, want %q", sel.VoiceID, "adam")
	}

	sel = a.ApplyVoiceProfile(synth.Profile{VoiceDescription: "a calm narrator"})
	if sel.VoiceID != "rachel" {
		t.Errorf("fallback voice: VoiceID = %q, want %q", sel.VoiceID, "rachel")
	}
	if sel.Description != "a calm narrator" {
		t.Errorf("Description = %q", sel.Description)
	}
}
