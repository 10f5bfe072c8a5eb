package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/sakinah/pkg/adapters/tts"
)

type TTSConfig struct {
	Audio []byte
	Err   error
}

// TTS records every synthesis request and returns fixed audio.
type TTS struct {
	cfg TTSConfig

	mu     sync.Mutex
	texts  []string
	voices []tts.Voice
}

func NewTTS(cfg TTSConfig) *TTS {
	if len(cfg.Audio) == 0 {
		cfg.Audio = []byte("mock-audio")
	}
	return &TTS{cfg: cfg}
}

func (t *TTS) Name() string { return "mock_tts" }

func (t *TTS) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	t.mu.Lock()
	t.texts = append(t.texts, text)
	t.voices = append(t.voices, voice)
	t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return tts.Audio{}, err
	}
	if t.cfg.Err != nil {
		return tts.Audio{}, t.cfg.Err
	}
	return tts.Audio{Data: append([]byte(nil), t.cfg.Audio...), Format: "audio/mpeg"}, nil
}

func (t *TTS) Texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.texts...)
}

func (t *TTS) Voices() []tts.Voice {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]tts.Voice(nil), t.voices...)
}
