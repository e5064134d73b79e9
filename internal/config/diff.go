package config

import (
	"slices"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	VoicesChanged   bool          // true if any persona profile was added, removed, or edited
	VoiceChanges    []ProfileDiff // per-profile diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// ProfileDiff describes what changed for a single persona profile between two
// configs.
type ProfileDiff struct {
	ParticipantID string
	Changed       bool
	Added         bool
	Removed       bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; the self
// profile, synth adapter, and emotion source require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build profile lookup maps keyed by participant ID.
	oldProfiles := make(map[string]int, len(old.Voices.Participants))
	for i, p := range old.Voices.Participants {
		oldProfiles[p.ParticipantID] = i
	}
	newProfiles := make(map[string]int, len(new.Voices.Participants))
	for i, p := range new.Voices.Participants {
		newProfiles[p.ParticipantID] = i
	}

	for id, oi := range oldProfiles {
		ni, ok := newProfiles[id]
		if !ok {
			d.VoiceChanges = append(d.VoiceChanges, ProfileDiff{ParticipantID: id, Removed: true})
			continue
		}
		if !profilesEqual(old.Voices.Participants[oi], new.Voices.Participants[ni]) {
			d.VoiceChanges = append(d.VoiceChanges, ProfileDiff{ParticipantID: id, Changed: true})
		}
	}
	for id := range newProfiles {
		if _, ok := oldProfiles[id]; !ok {
			d.VoiceChanges = append(d.VoiceChanges, ProfileDiff{ParticipantID: id, Added: true})
		}
	}

	d.VoicesChanged = len(d.VoiceChanges) > 0

	// Deterministic ordering for logs and tests.
	slices.SortFunc(d.VoiceChanges, func(a, b ProfileDiff) int {
		switch {
		case a.ParticipantID < b.ParticipantID:
			return -1
		case a.ParticipantID > b.ParticipantID:
			return 1
		}
		return 0
	})

	return d
}

// profilesEqual compares two profiles field by field.
func profilesEqual(a, b synth.Profile) bool {
	return a.ParticipantID == b.ParticipantID &&
		a.DisplayName == b.DisplayName &&
		a.VoiceDescription == b.VoiceDescription &&
		a.VoiceID == b.VoiceID &&
		a.Gender == b.Gender &&
		a.AgeRange == b.AgeRange &&
		a.Accent == b.Accent &&
		slices.Equal(a.TypicalEmotions, b.TypicalEmotions) &&
		a.SpeakingStyle == b.SpeakingStyle
}
