package voices

import "github.com/natea/conversational-reflection/pkg/synth"

// DefaultProfiles returns the built-in persona profiles for common difficult
// relationships. They serve as starting points the configuration path can
// copy and adjust; keys double as participant IDs.
func DefaultProfiles() []synth.Profile {
	return []synth.Profile{
		{
			ParticipantID:    "difficult-mother",
			DisplayName:      "Mom",
			VoiceDescription: "Female voice in their 55-65s with a clear timbre, speaking at a conversational pace, in a guilt-inducing and emotionally charged tone",
			Gender:           "female",
			AgeRange:         "55-65",
			TypicalEmotions:  []string{"frustrated", "hurt", "disappointed", "accusatory"},
			SpeakingStyle:    "passive-aggressive with sighs",
		},
		{
			ParticipantID:    "difficult-father",
			DisplayName:      "Dad",
			VoiceDescription: "Male voice in their 55-65s with an authoritative timbre, speaking at a slow pace, in a dismissive and controlling tone",
			Gender:           "male",
			AgeRange:         "55-65",
			TypicalEmotions:  []string{"stern", "disappointed", "dismissive"},
			SpeakingStyle:    "direct and commanding",
		},
		{
			ParticipantID:    "anxious-partner",
			DisplayName:      "Partner",
			VoiceDescription: "Neutral voice in their 30-40s with a soft timbre, speaking at a fast pace, in a worried tone needing reassurance",
			Gender:           "neutral",
			AgeRange:         "30-40",
			TypicalEmotions:  []string{"anxious", "worried", "insecure"},
			SpeakingStyle:    "rapid with interruptions",
		},
		{
			ParticipantID:    "demanding-boss",
			DisplayName:      "Boss",
			VoiceDescription: "Neutral voice in their 45-55s with an authoritative timbre, speaking at a fast pace, in an impatient and demanding tone",
			Gender:           "neutral",
			AgeRange:         "45-55",
			TypicalEmotions:  []string{"frustrated", "impatient", "critical"},
			SpeakingStyle:    "clipped and business-like",
		},
	}
}
