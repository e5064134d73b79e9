package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidSynthNames lists the adapter names shipped with gingerd. Used by
// [Validate] to warn about unrecognised names; third-party registrations are
// still allowed through.
var ValidSynthNames = []string{"cartesia", "elevenlabs", "noop"}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Tests use it with configs built from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent, returning a joined error naming
// every failure found rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Synth adapter
	if cfg.Synth.Name == "" {
		errs = append(errs, errors.New("synth.name is required"))
	} else if !slices.Contains(ValidSynthNames, cfg.Synth.Name) {
		slog.Warn("unknown synth adapter name — may be a typo or third-party adapter",
			"name", cfg.Synth.Name,
			"known", ValidSynthNames,
		)
	}

	// Emotion source
	if cfg.Emotion.Source != "" && !cfg.Emotion.Source.IsValid() {
		errs = append(errs, fmt.Errorf("emotion.source %q is invalid; valid values: static, sable", cfg.Emotion.Source))
	}
	if cfg.Emotion.Source == SourceSable && cfg.Emotion.Command == "" && cfg.Emotion.URL == "" {
		errs = append(errs, errors.New("emotion: sable source requires command (stdio) or url (streamable-http)"))
	}
	if cfg.Emotion.Command != "" && cfg.Emotion.URL != "" {
		errs = append(errs, errors.New("emotion.command and emotion.url are mutually exclusive"))
	}
	if cfg.Emotion.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("emotion.fetch_timeout %v must not be negative", cfg.Emotion.FetchTimeout))
	}
	if cfg.Emotion.Insertion != "" && !cfg.Emotion.Insertion.IsValid() {
		errs = append(errs, fmt.Errorf("emotion.insertion %q is invalid; valid values: utterance-start, before-peak-phrase, near-emotional-peak", cfg.Emotion.Insertion))
	}

	// History
	if cfg.History.MaxUtterances < 0 {
		errs = append(errs, fmt.Errorf("history.max_utterances %d must not be negative", cfg.History.MaxUtterances))
	}
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; utterance history will be kept in memory only")
	}

	// Voices
	if cfg.Voices.Self.ParticipantID == "" {
		errs = append(errs, errors.New("voices.self.participant_id is required"))
	}
	idsSeen := make(map[string]int, len(cfg.Voices.Participants))
	for i, p := range cfg.Voices.Participants {
		prefix := fmt.Sprintf("voices.participants[%d]", i)
		if p.ParticipantID == "" {
			errs = append(errs, fmt.Errorf("%s.participant_id is required", prefix))
			continue
		}
		if p.ParticipantID == cfg.Voices.Self.ParticipantID {
			errs = append(errs, fmt.Errorf("%s.participant_id %q collides with voices.self", prefix, p.ParticipantID))
		}
		if prev, ok := idsSeen[p.ParticipantID]; ok {
			errs = append(errs, fmt.Errorf("%s.participant_id %q is a duplicate of voices.participants[%d]", prefix, p.ParticipantID, prev))
		}
		idsSeen[p.ParticipantID] = i
		if p.Self {
			errs = append(errs, fmt.Errorf("%s: only voices.self may set self: true", prefix))
		}
	}

	return errors.Join(errs...)
}
