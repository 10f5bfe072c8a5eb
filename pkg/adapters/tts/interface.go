package tts

import "context"

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text with the given voice and returns encoded audio.
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)
}

// Voice selects the speaker and delivery. Providers map the fields they support.
type Voice struct {
	// ID is the vendor voice identifier, e.g. "ar-OM-AyshaNeural".
	ID       string
	Gender   string
	Language string
	// Style is a delivery hint such as "calm" for crisis replies.
	Style string
	// Rate is the relative speaking rate; 1 is normal.
	Rate float64
}

// Audio is encoded speech ready for playback.
type Audio struct {
	Data []byte
	// Format is a MIME type such as "audio/mpeg".
	Format string
}
