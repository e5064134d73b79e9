package cartesia

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/coder/websocket"

	"github.com/natea/conversational-reflection/pkg/synth"
)

const (
	wsEndpoint        = "wss://api.cartesia.ai/tts/websocket"
	apiVersion        = "2025-04-16"
	defaultSampleRate = 16000
)

// StreamOption is a functional option for configuring a [Streamer].
type StreamOption func(*Streamer)

// WithStreamModel sets the Cartesia model ID used for synthesis.
func WithStreamModel(model string) StreamOption {
	return func(s *Streamer) {
		s.model = model
	}
}

// WithSampleRate sets the PCM sample rate in Hz.
func WithSampleRate(rate int) StreamOption {
	return func(s *Streamer) {
		s.sampleRate = rate
	}
}

// Streamer synthesizes audio over the Cartesia streaming WebSocket API.
type Streamer struct {
	apiKey     string
	model      string
	sampleRate int
}

// NewStreamer creates a Streamer. apiKey must be non-empty.
func NewStreamer(apiKey string, opts ...StreamOption) (*Streamer, error) {
	if apiKey == "" {
		return nil, errors.New("cartesia: apiKey must not be empty")
	}
	s := &Streamer{
		apiKey:     apiKey,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ---- WebSocket message types ----

// voiceSpec selects the synthesis voice and optional experimental controls.
type voiceSpec struct {
	Mode     string         `json:"mode"`
	ID       string         `json:"id"`
	Controls *voiceControls `json:"__experimental_controls,omitempty"`
}

// voiceControls carries the generation parameters a parameter push resolves to.
type voiceControls struct {
	Speed   string   `json:"speed,omitempty"`
	Emotion []string `json:"emotion,omitempty"`
}

// outputFormat describes the raw PCM stream Cartesia should emit.
type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// ttsRequest is the JSON payload sent for each transcript fragment.
type ttsRequest struct {
	ContextID    string       `json:"context_id"`
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	Continue     bool         `json:"continue"`
}

// ttsResponse is the JSON message received from Cartesia over the WebSocket.
type ttsResponse struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"` // base64-encoded PCM
	Done      bool   `json:"done,omitempty"`
	Error     string `json:"error,omitempty"`
	ContextID string `json:"context_id,omitempty"`
}

// SynthesizeStream opens a WebSocket to Cartesia, pipes transcript fragments
// from the text channel, and returns a channel emitting raw PCM audio chunks.
// params carries generation parameters realized from a parameter-set
// directive; recognized keys are "speed" and "emotion".
//
// The returned audio channel is closed when synthesis completes or ctx is
// cancelled.
func (s *Streamer) SynthesizeStream(ctx context.Context, text <-chan string, voice synth.VoiceSelector, params map[string]string) (<-chan []byte, error) {
	if voice.VoiceID == "" {
		return nil, errors.New("cartesia: voice.VoiceID must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, s.buildURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("cartesia: dial: %w", err)
	}

	contextID, err := newContextID()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "context ID generation failed")
		return nil, fmt.Errorf("cartesia: %w", err)
	}

	audioCh := make(chan []byte, 256)

	go func() {
		defer close(audioCh)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		// Reader goroutine drains audio chunks until Cartesia signals done.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_, msg, err := conn.Read(ctx)
				if err != nil {
					return
				}
				resp, pcm, ok := parseResponse(msg)
				if !ok {
					continue
				}
				if resp.Done || resp.Type == "done" || resp.Type == "error" {
					return
				}
				select {
				case audioCh <- pcm:
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					// Transcript channel closed; send the final request so
					// Cartesia flushes buffered audio.
					final := s.buildRequest(contextID, "", voice, params, false)
					finalBytes, _ := json.Marshal(final)
					_ = conn.Write(ctx, websocket.MessageText, finalBytes)
					<-readDone
					return
				}
				if fragment == "" {
					continue
				}
				req := s.buildRequest(contextID, fragment, voice, params, true)
				msgBytes, _ := json.Marshal(req)
				if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioCh, nil
}

// buildURL constructs the Cartesia streaming endpoint URL with auth and
// version query parameters.
func (s *Streamer) buildURL() string {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("cartesia_version", apiVersion)
	return wsEndpoint + "?" + q.Encode()
}

// buildRequest constructs the JSON payload for a single transcript fragment.
func (s *Streamer) buildRequest(contextID, transcript string, voice synth.VoiceSelector, params map[string]string, more bool) ttsRequest {
	v := voiceSpec{Mode: "id", ID: voice.VoiceID}
	if len(params) > 0 {
		controls := &voiceControls{}
		if speed, ok := params["speed"]; ok {
			controls.Speed = speed
		}
		if emo, ok := params["emotion"]; ok {
			controls.Emotion = []string{emo}
		}
		if controls.Speed != "" || len(controls.Emotion) > 0 {
			v.Controls = controls
		}
	}
	return ttsRequest{
		ContextID:  contextID,
		ModelID:    s.model,
		Transcript: transcript,
		Voice:      v,
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: s.sampleRate,
		},
		Continue: more,
	}
}

// newContextID returns a random hex identifier tying a synthesis stream's
// requests and responses together.
func newContextID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// parseResponse decodes a raw Cartesia WebSocket message. Returns the decoded
// response, the PCM payload for chunk messages, and whether the message
// should be acted upon at all.
func parseResponse(data []byte) (ttsResponse, []byte, bool) {
	var resp ttsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return ttsResponse{}, nil, false
	}
	if resp.Type == "done" || resp.Type == "error" || resp.Done {
		return resp, nil, true
	}
	if resp.Type != "chunk" || resp.Data == "" {
		return ttsResponse{}, nil, false
	}
	pcm, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return ttsResponse{}, nil, false
	}
	return resp, pcm, true
}
