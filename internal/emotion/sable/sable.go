// Package sable provides an emotion.Source backed by a sable MCP server —
// the external emotional-state model exposing its state as an MCP tool.
//
// The source connects over stdio (spawning the server process) or
// streamable-HTTP using the official MCP Go SDK, calls the
// get_emotional_state tool, and parses the JSON result into an
// emotion.Snapshot. The emotions array is sorted by intensity and the
// strongest entry wins; unknown emotion labels map to neutral. Body-state
// fields outside their domain are clamped by the mapper downstream.
package sable

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/natea/conversational-reflection/internal/emotion"
)

// Compile-time interface assertion.
var _ emotion.Source = (*Source)(nil)

// stateTool is the sable tool that reports the current emotional state.
const stateTool = "get_emotional_state"

// Config describes how to reach the sable server.
type Config struct {
	// Command is the executable (with optional arguments) spawned for a
	// stdio connection. Mutually exclusive with URL.
	Command string

	// URL is the streamable-HTTP endpoint. Mutually exclusive with Command.
	URL string

	// Env holds extra environment variables for the stdio subprocess.
	Env map[string]string
}

// Source queries a sable MCP server for emotional-state snapshots.
// Safe for concurrent use.
type Source struct {
	mu      sync.Mutex
	session *mcpsdk.ClientSession
}

// Connect establishes the MCP session described by cfg. The returned Source
// owns the session; call [Source.Close] when the application shuts down.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	var transport mcpsdk.Transport

	switch {
	case cfg.Command != "":
		executable, args := splitCommand(cfg.Command)
		cmd := exec.CommandContext(ctx, executable, args...)
		cmd.Env = commandEnv(cfg.Env)
		transport = &mcpsdk.CommandTransport{Command: cmd}
	case cfg.URL != "":
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return nil, fmt.Errorf("sable: config must set Command or URL")
	}

	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "gingerd-emotion", Version: "1.0.0"},
		nil,
	)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("sable: connect: %w", err)
	}
	return &Source{session: session}, nil
}

// commandEnv builds the subprocess environment: the parent environment plus
// the configured extras, so spawned servers keep PATH, HOME and friends.
func commandEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// CurrentSnapshot calls get_emotional_state and parses the result.
func (s *Source) CurrentSnapshot(ctx context.Context) (emotion.Snapshot, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return emotion.Snapshot{}, fmt.Errorf("sable: source is closed")
	}

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: stateTool})
	if err != nil {
		return emotion.Snapshot{}, fmt.Errorf("sable: call %s: %w", stateTool, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return emotion.Snapshot{}, fmt.Errorf("sable: %s returned error: %s", stateTool, sb.String())
	}

	return ParseState([]byte(sb.String()))
}

// Close shuts down the MCP session. Subsequent CurrentSnapshot calls fail.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

// ---- wire format ----

// stateDoc mirrors the JSON document produced by the sable server.
type stateDoc struct {
	Emotions []emotionEntry `json:"emotions"`
	Body     *bodyDoc       `json:"body_state"`
}

type emotionEntry struct {
	Type      string  `json:"type"`
	Intensity float64 `json:"intensity"`
}

type bodyDoc struct {
	Energy  float64 `json:"energy"`
	Tension float64 `json:"tension"`
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// ParseState converts a raw sable state document into a snapshot. The
// strongest emotion by intensity wins; an empty emotions array yields the
// neutral snapshot. Exported for tests and for callers holding a state
// document from another channel.
func ParseState(data []byte) (emotion.Snapshot, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return emotion.Snapshot{}, fmt.Errorf("sable: parse state: %w", err)
	}

	snap := emotion.NeutralSnapshot()
	for _, e := range doc.Emotions {
		if e.Intensity > snap.Intensity {
			snap.Primary = emotion.ParseEmotion(e.Type)
			snap.Intensity = e.Intensity
		}
	}
	if snap.Intensity < 0 {
		snap.Intensity = 0
	}
	if snap.Intensity > 1 {
		snap.Intensity = 1
	}

	if doc.Body != nil {
		snap.Body = &emotion.BodyState{
			Energy:  doc.Body.Energy,
			Tension: doc.Body.Tension,
			Valence: doc.Body.Valence,
			Arousal: doc.Body.Arousal,
		}
	}
	return snap, nil
}

// splitCommand splits a command string on spaces into executable and args.
func splitCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
