package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/natea/conversational-reflection/internal/dialogue"
	"github.com/natea/conversational-reflection/internal/observe"
	"github.com/natea/conversational-reflection/pkg/synth"
)

// Frame kinds sent to the client.
const (
	// FrameVoice announces the resolved voice selector when a session opens.
	FrameVoice = "voice"

	// FrameCommand carries a parameter push for the downstream synthesizer.
	FrameCommand = "command"

	// FrameText carries bot response text, with inline markup applied when
	// the adapter supports it.
	FrameText = "text"

	// FrameError reports a malformed inbound event without closing the session.
	FrameError = "error"
)

// Frame is an outbound message on the session transport.
type Frame struct {
	Type    string            `json:"type"`
	Text    string            `json:"text,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	VoiceID string            `json:"voice_id,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// errMalformedFrame signals an inbound frame that could not be decoded. The
// session loop reports it to the client and keeps reading.
var errMalformedFrame = errors.New("session: malformed event frame")

// Transport is the bidirectional channel a session speaks over.
type Transport interface {
	// ReadEvent blocks until the next dialogue event arrives. It returns
	// errMalformedFrame (wrapped) for undecodable frames, and any other error
	// when the transport is gone.
	ReadEvent(ctx context.Context) (dialogue.Event, error)

	// WriteFrame sends a frame to the client.
	WriteFrame(ctx context.Context, f Frame) error

	// Close tears the transport down with the given reason.
	Close(reason string) error
}

// Session is one live dialogue over a transport.
type Session struct {
	id        string
	transport Transport
	profile   synth.Profile
	selector  synth.VoiceSelector
	machine   *dialogue.Machine

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Profile returns the voice profile the bot speaks with in this session.
func (s *Session) Profile() synth.Profile { return s.profile }

// Done returns a channel closed when the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop cancels the session context and closes the transport. In-flight
// directive computation is discarded. Safe to call multiple times.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		_ = s.transport.Close("session stopped")
	})
}

// run is the session event loop. It reads events in arrival order and feeds
// them to the dialogue machine, so session state sees strictly serialized
// mutation. Exits when the transport errors or the context is cancelled.
func (s *Session) run(ctx context.Context, metrics *observe.Metrics) {
	defer close(s.done)
	defer s.Stop()

	// Tell the client which synthesizer voice this session resolved to.
	if err := s.transport.WriteFrame(ctx, Frame{Type: FrameVoice, VoiceID: s.selector.VoiceID, Text: s.selector.Description}); err != nil {
		slog.Warn("session: voice frame write failed", "session_id", s.id, "error", err)
		return
	}

	var turnStart time.Time
	for {
		ev, err := s.transport.ReadEvent(ctx)
		if err != nil {
			if errors.Is(err, errMalformedFrame) {
				_ = s.transport.WriteFrame(ctx, Frame{Type: FrameError, Error: err.Error()})
				continue
			}
			return
		}

		switch ev.Type {
		case dialogue.BotSpeechStarted:
			turnStart = ev.Timestamp
		case dialogue.BotSpeechStopped:
			if !turnStart.IsZero() {
				metrics.TurnDuration.Record(ctx, ev.Timestamp.Sub(turnStart).Seconds())
				turnStart = time.Time{}
			}
		}

		out := s.machine.HandleEvent(ctx, ev)
		if out.Command != nil {
			if err := s.transport.WriteFrame(ctx, Frame{Type: FrameCommand, Params: out.Command.Params}); err != nil {
				return
			}
		}
		if out.Text != "" {
			if err := s.transport.WriteFrame(ctx, Frame{Type: FrameText, Text: out.Text}); err != nil {
				return
			}
		}
	}
}

// ---- websocket transport ----

// wsTransport adapts a [websocket.Conn] to the [Transport] interface.
// Inbound frames are JSON-encoded [dialogue.Event] values; outbound frames
// are JSON-encoded [Frame] values.
type wsTransport struct {
	conn *websocket.Conn
}

// NewWebsocketTransport wraps an accepted websocket connection.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadEvent(ctx context.Context) (dialogue.Event, error) {
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			return dialogue.Event{}, fmt.Errorf("session: read: %w", err)
		}
		if typ != websocket.MessageText {
			// Binary frames carry no dialogue events on this transport.
			continue
		}

		var ev dialogue.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return dialogue.Event{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
		}
		if !ev.Type.IsValid() {
			return dialogue.Event{}, fmt.Errorf("%w: unknown event type %q", errMalformedFrame, ev.Type)
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		return ev, nil
	}
}

func (t *wsTransport) WriteFrame(ctx context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("session: marshal frame: %w", err)
	}
	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

func (t *wsTransport) Close(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}

// Handler returns the HTTP handler that upgrades requests to session
// websockets. An optional "voice" query parameter names the profile the bot
// speaks with; it is resolved phonetically against the registry.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("session: websocket accept failed", "error", err)
			return
		}

		sess, err := m.StartSession(r.Context(), NewWebsocketTransport(conn), r.URL.Query().Get("voice"))
		if err != nil {
			slog.Warn("session: start failed", "error", err)
			_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}

		// Keep the handler alive until the session loop exits; returning
		// would tear down the hijacked connection underneath it.
		select {
		case <-sess.Done():
		case <-r.Context().Done():
			sess.Stop()
			<-sess.Done()
		}
	})
}
