package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sakinah/pkg/logging"
)

// ErrDraining is returned by Create once shutdown has begun.
var ErrDraining = errors.New("session: registry draining")

type RegistryConfig struct {
	Window   int
	Budget   time.Duration
	Defaults Preferences
	Logger   *slog.Logger
}

// Registry owns the live sessions of this process. Each session has its own
// stats; nothing is written to durable storage.
type Registry struct {
	cfg    RegistryConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	draining atomic.Bool
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Registry{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(cfg.Logger, "session"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a session with the registry defaults overlaid by prefs.
func (r *Registry) Create(prefs Preferences) (*Session, error) {
	if r.draining.Load() {
		return nil, ErrDraining
	}
	prefs = r.cfg.Defaults.merge(prefs)
	s := New(uuid.NewString(), prefs, r.cfg.Window)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	r.logger.Info("session_started",
		slog.String("session_id", s.ID()),
		slog.String("language", prefs.Language),
		slog.String("voice", prefs.Voice),
	)
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// End discards the session and logs its summary.
func (r *Registry) End(id string) (Snapshot, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	snap := s.Snapshot(r.cfg.Budget)
	r.logger.Info("session_ended",
		slog.String("session_id", id),
		slog.Int("turns", snap.TurnCount),
		slog.Int("crisis_turns", snap.CrisisCount),
		slog.Int64("avg_latency_ms", snap.AverageMS),
		slog.Bool("performance_target_met", snap.TargetMet),
		slog.Duration("duration", time.Since(s.StartedAt())),
	)
	return snap, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close ends every live session.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		r.End(id)
	}
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

// WaitForEmpty polls until every session has ended or ctx is done.
func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Len() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
