package turn

import (
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/orchestrator"
	"github.com/harunnryd/sakinah/pkg/script"
)

// Kind says how the user spoke to us.
type Kind string

const (
	KindVoice Kind = "voice"
	KindText  Kind = "text"
)

// Latency is the per-stage breakdown of one turn.
type Latency struct {
	STT        time.Duration
	Generation time.Duration
	Validation time.Duration
	TTS        time.Duration
	Total      time.Duration
}

// Turn is one user utterance and everything derived from it. It is created at
// turn start, handed to the caller once, and never stored.
type Turn struct {
	ID        string
	SessionID string
	Kind      Kind
	StartedAt time.Time

	RawText      string
	Language     string
	Script       script.Script
	Crisis       crisis.Result
	PrimaryDraft string
	Verdict      orchestrator.Verdict
	FinalText    string

	Latency Latency

	Audio       []byte
	AudioFormat string
	// SpeechErr is set when synthesis failed and only text is delivered.
	SpeechErr error
}

func New(sessionID string, kind Kind) *Turn {
	return &Turn{ID: uuid.NewString(), SessionID: sessionID, Kind: kind, StartedAt: time.Now()}
}

// HasAudio reports whether a spoken reply is available.
func (t *Turn) HasAudio() bool { return len(t.Audio) > 0 && t.SpeechErr == nil }
