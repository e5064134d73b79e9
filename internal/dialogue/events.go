package dialogue

import "time"

// EventType enumerates the session events consumed by the [Machine].
type EventType string

const (
	// UserSpeechStarted signals the user began speaking.
	UserSpeechStarted EventType = "user_speech_started"

	// UserTranscriptChunk carries an interim transcript of the user's
	// current utterance. Chunks replace one another (last-write-wins).
	UserTranscriptChunk EventType = "user_transcript_chunk"

	// UserSpeechStopped signals end of the user's utterance.
	UserSpeechStopped EventType = "user_speech_stopped"

	// BotSpeechStarted signals the bot is about to speak.
	BotSpeechStarted EventType = "bot_speech_started"

	// BotResponseTextChunk carries a streamed fragment of the bot's
	// response. Chunks append monotonically.
	BotResponseTextChunk EventType = "bot_response_text_chunk"

	// BotSpeechStopped signals end of the bot's utterance.
	BotSpeechStopped EventType = "bot_speech_stopped"
)

// IsValid reports whether t is a recognised event type.
func (t EventType) IsValid() bool {
	switch t {
	case UserSpeechStarted, UserTranscriptChunk, UserSpeechStopped,
		BotSpeechStarted, BotResponseTextChunk, BotSpeechStopped:
		return true
	}
	return false
}

// Event is one ordered session event. Events for a given session are
// processed strictly in arrival order.
type Event struct {
	Type      EventType `json:"type"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
