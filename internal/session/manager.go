// Package session owns live dialogue sessions: the WebSocket transport that
// carries dialogue events in and synthesizer commands out, and the Manager
// that tracks session lifecycles.
//
// Each connection is one session. A single goroutine per session reads and
// dispatches events in arrival order, so per-session state is mutated
// serially by construction. Independent sessions run fully in parallel.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/natea/conversational-reflection/internal/dialogue"
	"github.com/natea/conversational-reflection/internal/emotion"
	"github.com/natea/conversational-reflection/internal/history"
	"github.com/natea/conversational-reflection/internal/observe"
	"github.com/natea/conversational-reflection/internal/voices"
	"github.com/natea/conversational-reflection/pkg/synth"
)

// ErrClosed is returned by [Manager.StartSession] after [Manager.Close].
var ErrClosed = errors.New("session: manager is closed")

// RecorderFactory creates the utterance recorder for a new session.
type RecorderFactory func(sessionID string) history.Recorder

// ManagerConfig configures a [Manager].
type ManagerConfig struct {
	// Adapter is the synthesizer adapter directives are realized against.
	Adapter synth.Adapter

	// Mapper computes voice directives from emotional state.
	Mapper *emotion.Mapper

	// Registry holds the voice profiles, including the immutable self profile.
	Registry *voices.Registry

	// NewRecorder creates the per-session utterance recorder. When nil, each
	// session gets an in-memory recorder.
	NewRecorder RecorderFactory

	// Metrics receives session and directive instrumentation. When nil,
	// [observe.DefaultMetrics] is used.
	Metrics *observe.Metrics
}

// Manager tracks live dialogue sessions and closes them on shutdown.
// All methods are safe for concurrent use.
type Manager struct {
	adapter     synth.Adapter
	mapper      *emotion.Mapper
	registry    *voices.Registry
	newRecorder RecorderFactory
	metrics     *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a [Manager]. Adapter, Mapper, and Registry are required.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("session: Adapter must not be nil")
	}
	if cfg.Mapper == nil {
		return nil, errors.New("session: Mapper must not be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("session: Registry must not be nil")
	}
	newRecorder := cfg.NewRecorder
	if newRecorder == nil {
		newRecorder = func(string) history.Recorder {
			return history.NewMemoryRecorder(0)
		}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Manager{
		adapter:     cfg.Adapter,
		mapper:      cfg.Mapper,
		registry:    cfg.Registry,
		newRecorder: newRecorder,
		metrics:     metrics,
		sessions:    make(map[string]*Session),
	}, nil
}

// StartSession registers a new session over the given transport and starts
// its event loop. voiceName optionally names the profile the bot speaks with
// for this session; empty selects the self profile. The name is resolved
// through the registry's phonetic resolver, so close matches work.
func (m *Manager) StartSession(ctx context.Context, transport Transport, voiceName string) (*Session, error) {
	profile := m.registry.Self()
	if voiceName != "" {
		p, err := m.registry.Resolve(voiceName)
		if err != nil {
			return nil, fmt.Errorf("session: resolve voice %q: %w", voiceName, err)
		}
		profile = p
	}

	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("session: generate ID: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &Session{
		id:        id,
		transport: transport,
		profile:   profile,
		selector:  m.adapter.ApplyVoiceProfile(profile),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	recorder := &meteredRecorder{inner: m.newRecorder(id), metrics: m.metrics}
	sess.machine = dialogue.NewMachine(recorder, m.trigger(id, profile))
	m.sessions[id] = sess
	m.mu.Unlock()

	m.metrics.ActiveSessions.Add(sessCtx, 1)
	slog.Info("session started",
		"session_id", id,
		"voice", profile.ParticipantID,
		"adapter", m.adapter.Name(),
	)

	go func() {
		sess.run(sessCtx, m.metrics)
		m.metrics.ActiveSessions.Add(context.Background(), -1)
		m.remove(id)
		slog.Info("session ended", "session_id", id)
	}()

	return sess, nil
}

// trigger builds the directive trigger the dialogue machine fires once per
// bot utterance. The session context flows through, so in-flight directive
// computation is discarded when the session ends.
//
// Tone-change tracking lives in the closure: each session compares against
// its own last tone, so one session's change never suppresses another's
// change log. The machine invokes the trigger serially, so no lock is
// needed.
func (m *Manager) trigger(sessionID string, profile synth.Profile) dialogue.TriggerFunc {
	var lastTone string
	return func(ctx context.Context) synth.Command {
		start := time.Now()
		directive, cmd := m.mapper.ComputeDirective(ctx, m.adapter, profile)
		m.metrics.DirectiveDuration.Record(ctx, time.Since(start).Seconds())
		m.metrics.RecordDirective(ctx, m.adapter.Name(), directive.Tone, string(directive.Kind))

		if directive.Tone != lastTone {
			slog.InfoContext(ctx, "emotion tone changed",
				"session_id", sessionID,
				"tone", directive.Tone,
				"previous", lastTone,
			)
			lastTone = directive.Tone
		}
		return cmd
	}
}

// Session returns the live session with the given ID, or nil.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops all live sessions and rejects new ones. It waits for session
// loops to exit or ctx to expire, whichever comes first.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return fmt.Errorf("session: close: %w", ctx.Err())
		}
	}
	return nil
}

// remove drops a finished session from the registry.
func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// meteredRecorder counts finalized utterances as they reach history.
type meteredRecorder struct {
	inner   history.Recorder
	metrics *observe.Metrics
}

var _ history.Recorder = (*meteredRecorder)(nil)

func (r *meteredRecorder) Record(ctx context.Context, u history.Utterance) error {
	if err := r.inner.Record(ctx, u); err != nil {
		return err
	}
	r.metrics.RecordUtterance(ctx, string(u.Role))
	return nil
}

// newSessionID returns a random 16-character hex session identifier.
func newSessionID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
