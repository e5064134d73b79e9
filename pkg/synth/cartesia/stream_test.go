package cartesia

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// ---- Request construction ----

func TestBuildRequest_WithControls(t *testing.T) {
	s, err := NewStreamer("test-key", WithStreamModel("sonic-3"), WithSampleRate(22050))
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}

	req := s.buildRequest("ctx-1", "Hello there", synth.VoiceSelector{VoiceID: "voice-a"},
		map[string]string{"speed": "1.20", "emotion": "excited"}, true)

	if req.ContextID != "ctx-1" {
		t.Errorf("context_id = %q, want %q", req.ContextID, "ctx-1")
	}
	if req.ModelID != "sonic-3" {
		t.Errorf("model_id = %q, want %q", req.ModelID, "sonic-3")
	}
	if !req.Continue {
		t.Error("expected continue=true for a non-final fragment")
	}
	if req.Voice.Mode != "id" || req.Voice.ID != "voice-a" {
		t.Errorf("voice = %+v, want mode=id id=voice-a", req.Voice)
	}
	if req.Voice.Controls == nil {
		t.Fatal("expected experimental controls to be set")
	}
	if req.Voice.Controls.Speed != "1.20" {
		t.Errorf("speed = %q, want %q", req.Voice.Controls.Speed, "1.20")
	}
	if len(req.Voice.Controls.Emotion) != 1 || req.Voice.Controls.Emotion[0] != "excited" {
		t.Errorf("emotion = %v, want [excited]", req.Voice.Controls.Emotion)
	}
	if req.OutputFormat.Container != "raw" || req.OutputFormat.Encoding != "pcm_s16le" {
		t.Errorf("output format = %+v", req.OutputFormat)
	}
	if req.OutputFormat.SampleRate != 22050 {
		t.Errorf("sample_rate = %d, want 22050", req.OutputFormat.SampleRate)
	}
}

func TestBuildRequest_NoControlsWithoutParams(t *testing.T) {
	s, err := NewStreamer("test-key")
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}

	req := s.buildRequest("ctx-1", "Hi", synth.VoiceSelector{VoiceID: "voice-a"}, nil, false)
	if req.Voice.Controls != nil {
		t.Errorf("expected nil controls, got %+v", req.Voice.Controls)
	}
	if req.Continue {
		t.Error("expected continue=false for the final request")
	}

	// Controls must be omitted from the wire payload entirely.
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "__experimental_controls") {
		t.Errorf("payload must omit empty controls: %s", data)
	}
}

func TestBuildURL(t *testing.T) {
	s, err := NewStreamer("secret-key")
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	u := s.buildURL()
	if !strings.HasPrefix(u, "wss://api.cartesia.ai/tts/websocket?") {
		t.Errorf("unexpected endpoint: %q", u)
	}
	if !strings.Contains(u, "api_key=secret-key") {
		t.Errorf("missing api_key: %q", u)
	}
	if !strings.Contains(u, "cartesia_version=") {
		t.Errorf("missing cartesia_version: %q", u)
	}
}

func TestNewStreamer_RequiresAPIKey(t *testing.T) {
	if _, err := NewStreamer(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// ---- Response parsing ----

func TestParseResponse_Chunk(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	raw, _ := json.Marshal(ttsResponse{
		Type: "chunk",
		Data: base64.StdEncoding.EncodeToString(pcm),
	})

	resp, got, ok := parseResponse(raw)
	if !ok {
		t.Fatal("expected chunk message to be actionable")
	}
	if resp.Type != "chunk" {
		t.Errorf("type = %q, want chunk", resp.Type)
	}
	if string(got) != string(pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestParseResponse_Done(t *testing.T) {
	raw := []byte(`{"type":"done","done":true}`)
	resp, pcm, ok := parseResponse(raw)
	if !ok {
		t.Fatal("expected done message to be actionable")
	}
	if !resp.Done {
		t.Error("expected done=true")
	}
	if pcm != nil {
		t.Errorf("done message must carry no audio, got %v", pcm)
	}
}

func TestParseResponse_Garbage(t *testing.T) {
	for _, raw := range []string{
		"not json",
		`{"type":"chunk","data":"%%%not-base64%%%"}`,
		`{"type":"timestamps"}`,
	} {
		if _, _, ok := parseResponse([]byte(raw)); ok {
			t.Errorf("input %q: expected ok=false", raw)
		}
	}
}

func TestNewContextID_Unique(t *testing.T) {
	a, err := newContextID()
	if err != nil {
		t.Fatalf("newContextID: %v", err)
	}
	b, err := newContextID()
	if err != nil {
		t.Fatalf("newContextID: %v", err)
	}
	if a == b {
		t.Errorf("two context IDs collided: %q", a)
	}
	if len(a) != 16 {
		t.Errorf("context ID length = %d, want 16 hex chars", len(a))
	}
}
