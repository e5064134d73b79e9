// Package dialogue implements the per-session turn state machine.
//
// The machine consumes the ordered session event stream (speech started and
// stopped, interim transcript chunks, streamed bot response text) and
// maintains the canonical current-utterance buffers and turn-taking phase.
// It guarantees that the emotion directive hook fires at most once per bot
// utterance — on the first response chunk, guarded by a per-utterance flag —
// and hands exactly one immutable record per completed turn to the history
// recorder.
//
// A Machine is intentionally not safe for concurrent use: session events
// arrive on a single logical stream and must be processed serially, which
// the session transport guarantees by dispatching from one goroutine.
package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/natea/conversational-reflection/internal/history"
	"github.com/natea/conversational-reflection/pkg/synth"
)

// Phase is the turn-taking state of a session.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseUserSpeaking Phase = "userSpeaking"
	PhaseProcessing   Phase = "processing"
	PhaseBotSpeaking  Phase = "botSpeaking"
)

// TriggerFunc computes and realizes the emotion directive for a new bot
// utterance. The machine calls it exactly once per utterance, before the
// first chunk is forwarded for synthesis. Implementations must degrade to
// [synth.Noop] on failure rather than blocking the turn.
type TriggerFunc func(ctx context.Context) synth.Command

// Output is what a handled event asks the caller to forward downstream.
// The zero value means nothing to forward.
type Output struct {
	// Command is a parameter push to deliver to the synthesizer before
	// Text. Nil when no out-of-band push is needed.
	Command *synth.Command

	// Text is the (possibly markup-transformed) fragment to forward for
	// synthesis. Empty when the event produced no speakable text.
	Text string
}

// Machine is the dialogue turn state machine for one session.
type Machine struct {
	recorder history.Recorder
	trigger  TriggerFunc

	phase   Phase
	userBuf string
	botBuf  strings.Builder

	// directiveApplied guards at-most-once directive application for the
	// current bot utterance.
	directiveApplied bool
}

// NewMachine creates a machine delivering finalized utterances to recorder
// and computing directives through trigger. Both may be nil: a nil recorder
// drops records, a nil trigger behaves as a no-op directive.
func NewMachine(recorder history.Recorder, trigger TriggerFunc) *Machine {
	return &Machine{
		recorder: recorder,
		trigger:  trigger,
		phase:    PhaseIdle,
	}
}

// Phase returns the current turn-taking phase.
func (m *Machine) Phase() Phase { return m.phase }

// CurrentUserUtterance returns the accumulating interim user transcript.
func (m *Machine) CurrentUserUtterance() string { return m.userBuf }

// CurrentBotUtterance returns the accumulating bot response text.
func (m *Machine) CurrentBotUtterance() string { return m.botBuf.String() }

// HandleEvent advances the machine by one event and returns what should be
// forwarded downstream. Malformed or out-of-order events never corrupt
// state: a repeated start resets the buffer for the new utterance, a stray
// stop is a no-op. Nothing in this method can fail a session — recorder
// errors are logged and swallowed.
func (m *Machine) HandleEvent(ctx context.Context, ev Event) Output {
	switch ev.Type {
	case UserSpeechStarted:
		if m.phase == PhaseUserSpeaking {
			slog.DebugContext(ctx, "duplicate user speech start, resetting buffer")
		}
		m.phase = PhaseUserSpeaking
		m.userBuf = ""

	case UserTranscriptChunk:
		// Interim transcripts overwrite earlier ones covering the same
		// span — last write wins, no merge.
		m.userBuf = ev.Text

	case UserSpeechStopped:
		if m.phase != PhaseUserSpeaking {
			slog.DebugContext(ctx, "user speech stop outside userSpeaking, ignoring", "phase", string(m.phase))
			return Output{}
		}
		m.phase = PhaseProcessing
		m.finalize(ctx, history.RoleUser, m.userBuf, ev.Timestamp)
		m.userBuf = ""

	case BotSpeechStarted:
		if m.phase == PhaseBotSpeaking {
			slog.DebugContext(ctx, "duplicate bot speech start, resetting buffer")
		}
		m.phase = PhaseBotSpeaking
		m.botBuf.Reset()
		m.directiveApplied = false

	case BotResponseTextChunk:
		return m.handleBotChunk(ctx, ev)

	case BotSpeechStopped:
		if m.phase != PhaseBotSpeaking {
			slog.DebugContext(ctx, "bot speech stop outside botSpeaking, ignoring", "phase", string(m.phase))
			return Output{}
		}
		m.phase = PhaseIdle
		m.finalize(ctx, history.RoleAssistant, m.botBuf.String(), ev.Timestamp)
		m.botBuf.Reset()
		m.directiveApplied = false

	default:
		slog.DebugContext(ctx, "unknown session event, ignoring", "type", string(ev.Type))
	}
	return Output{}
}

// handleBotChunk appends the chunk and, on the first chunk of a new bot
// utterance, fires the directive trigger exactly once before the chunk is
// forwarded.
func (m *Machine) handleBotChunk(ctx context.Context, ev Event) Output {
	// The bot may begin responding before a formal start event — support
	// the skip path by opening the utterance implicitly.
	if m.phase != PhaseBotSpeaking {
		m.phase = PhaseBotSpeaking
		m.botBuf.Reset()
		m.directiveApplied = false
	}

	m.botBuf.WriteString(ev.Text)

	out := Output{Text: ev.Text}
	if !m.directiveApplied {
		m.directiveApplied = true
		cmd := synth.Noop()
		if m.trigger != nil {
			cmd = m.trigger(ctx)
		}
		switch cmd.Kind {
		case synth.CommandParameterPush:
			out.Command = &cmd
		case synth.CommandTextTransform:
			out.Text = cmd.Apply(ev.Text)
		}
	}
	return out
}

// finalize hands a completed utterance to the recorder. All-whitespace
// utterances are discarded, not recorded.
func (m *Machine) finalize(ctx context.Context, role history.Role, text string, ts time.Time) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if m.recorder == nil {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := history.Utterance{Role: role, Text: text, Timestamp: ts}
	if err := m.recorder.Record(ctx, rec); err != nil {
		slog.WarnContext(ctx, "failed to record utterance", "role", string(role), "err", err)
	}
}
