package session

import (
	"sync"
	"time"

	"github.com/harunnryd/sakinah/pkg/llm"
)

// DefaultWindow is the number of recent exchanges fed back to the primary model.
const DefaultWindow = 10

// Preferences are the per-session knobs a client may change mid-conversation.
type Preferences struct {
	// Language is the STT language code, e.g. "ar" or "en".
	Language string
	// Voice is "female" or "male".
	Voice string
}

func (p Preferences) merge(update Preferences) Preferences {
	if update.Language != "" {
		p.Language = update.Language
	}
	if update.Voice != "" {
		p.Voice = update.Voice
	}
	return p
}

// Stats are the raw in-memory counters.
type Stats struct {
	TurnCount    int
	CrisisCount  int
	TotalLatency time.Duration
	LastLatency  time.Duration
}

// Snapshot is the read model shown to clients.
type Snapshot struct {
	SessionID      string        `json:"session_id"`
	StartedAt      time.Time     `json:"started_at"`
	TurnCount      int           `json:"turn_count"`
	CrisisCount    int           `json:"crisis_count"`
	AverageLatency time.Duration `json:"-"`
	LastLatency    time.Duration `json:"-"`
	AverageMS      int64         `json:"average_latency_ms"`
	LastMS         int64         `json:"last_latency_ms"`
	TargetMet      bool          `json:"performance_target_met"`
}

// Session is one live conversation. Its counters and context window exist only
// in process memory and die with it.
type Session struct {
	id        string
	startedAt time.Time
	window    int

	turnMu sync.Mutex

	mu      sync.Mutex
	prefs   Preferences
	stats   Stats
	history []llm.Message
}

func New(id string, prefs Preferences, window int) *Session {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Session{id: id, startedAt: time.Now(), window: window, prefs: prefs}
}

func (s *Session) ID() string { return s.id }

func (s *Session) StartedAt() time.Time { return s.startedAt }

// BeginTurn serialises turns so the pipeline is the single writer of this
// session. The returned func releases the turn.
func (s *Session) BeginTurn() func() {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

func (s *Session) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// UpdatePreferences applies the non-empty fields of update and returns the result.
func (s *Session) UpdatePreferences(update Preferences) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = s.prefs.merge(update)
	return s.prefs
}

// History returns a copy of the context window, oldest first.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// AppendExchange records one user/assistant pair, evicting the oldest beyond the window.
func (s *Session) AppendExchange(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		llm.Message{Role: llm.RoleUser, Content: user},
		llm.Message{Role: llm.RoleAssistant, Content: assistant},
	)
	if over := len(s.history) - 2*s.window; over > 0 {
		s.history = append([]llm.Message(nil), s.history[over:]...)
	}
}

func (s *Session) RecordTurn(latency time.Duration, crisis bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TurnCount++
	if crisis {
		s.stats.CrisisCount++
	}
	s.stats.TotalLatency += latency
	s.stats.LastLatency = latency
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Snapshot reports the counters. TargetMet holds while the average latency
// stays below budget; an empty session meets it trivially.
func (s *Session) Snapshot(budget time.Duration) Snapshot {
	st := s.Stats()
	var avg time.Duration
	if st.TurnCount > 0 {
		avg = st.TotalLatency / time.Duration(st.TurnCount)
	}
	return Snapshot{
		SessionID:      s.id,
		StartedAt:      s.startedAt,
		TurnCount:      st.TurnCount,
		CrisisCount:    st.CrisisCount,
		AverageLatency: avg,
		LastLatency:    st.LastLatency,
		AverageMS:      avg.Milliseconds(),
		LastMS:         st.LastLatency.Milliseconds(),
		TargetMet:      budget <= 0 || avg < budget,
	}
}

// Reset clears the counters and the context window; preferences survive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
	s.history = nil
}
