package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/sakinah/pkg/adapters/stt"
)

// STTConfig scripts the mock transcriber. ByLanguage overrides Transcript
// for a given request language, which lets tests exercise the retry path.
type STTConfig struct {
	Transcript string
	ByLanguage map[string]string
	Err        error
}

type STT struct {
	cfg STTConfig

	mu        sync.Mutex
	languages []string
}

func NewSTT(cfg STTConfig) *STT {
	return &STT{cfg: cfg}
}

func (s *STT) Name() string { return "mock_stt" }

func (s *STT) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Transcript, error) {
	s.mu.Lock()
	s.languages = append(s.languages, opts.Language)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	if s.cfg.Err != nil {
		return stt.Transcript{}, s.cfg.Err
	}
	text := s.cfg.Transcript
	if v, ok := s.cfg.ByLanguage[opts.Language]; ok {
		text = v
	}
	return stt.Transcript{Text: text, Language: opts.Language, Confidence: 1}, nil
}

// Languages returns the language of every request in call order.
func (s *STT) Languages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.languages))
	copy(out, s.languages)
	return out
}
