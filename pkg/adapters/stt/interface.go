package stt

import (
	"context"
	"time"
)

// Transcriber defines the contract for any STT vendor implementation.
// Audio arrives as one complete utterance recorded by the browser.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe converts an utterance to text. An empty Text is the
	// "empty transcript" signal, not an error.
	Transcribe(ctx context.Context, audio []byte, opts Options) (Transcript, error)
}

// Options contains vendor-agnostic request settings.
type Options struct {
	// Language is an ISO code such as "ar" or "en".
	Language string
	// Format is the container or MIME hint, e.g. "webm" or "audio/wav".
	Format string
	SampleRate int
}

// Transcript is the STT result.
type Transcript struct {
	Text       string
	Language   string
	Confidence float64
	Duration   time.Duration
}
