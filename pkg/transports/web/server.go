package web

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/pipeline"
	"github.com/harunnryd/sakinah/pkg/session"
	"github.com/harunnryd/sakinah/pkg/turn"
)

//go:embed static
var staticFiles embed.FS

// TurnHandler runs conversation turns. *pipeline.Pipeline implements it.
type TurnHandler interface {
	HandleAudio(ctx context.Context, sess *session.Session, audio []byte, listeners ...turn.StateListener) (*turn.Turn, error)
	HandleText(ctx context.Context, sess *session.Session, text string, listeners ...turn.StateListener) (*turn.Turn, error)
}

type Config struct {
	Addr           string        `mapstructure:"addr"`
	AllowAnyOrigin bool          `mapstructure:"allow_any_origin"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxAudioBytes  int64         `mapstructure:"max_audio_bytes"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`
	// Budget is the response-time target used for performance_target_met.
	Budget time.Duration `mapstructure:"budget"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.MaxAudioBytes <= 0 {
		c.MaxAudioBytes = 10 << 20
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 60 * time.Second
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Server serves the single-page UI, the REST API and the /ws protocol.
type Server struct {
	cfg      Config
	turns    TurnHandler
	sessions *session.Registry
	metrics  http.Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
	server   *http.Server
	draining atomic.Bool

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New builds a server. metricsHandler may be nil, in which case /metrics is
// not mounted.
func New(cfg Config, turns TurnHandler, sessions *session.Registry, metricsHandler http.Handler, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:      cfg,
		turns:    turns,
		sessions: sessions,
		metrics:  metricsHandler,
		logger:   logging.NewComponentLogger(logger, "web"),
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *Server) Name() string { return "web" }

func (s *Server) ReadyFields() map[string]any {
	addr := s.cfg.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return map[string]any{
		"ui_url": "http://" + addr + "/",
		"ws_url": "ws://" + addr + "/ws",
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Get("/ws", s.handleWS)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Post("/reset", s.handleReset)
			r.Delete("/", s.handleEndSession)
			r.Post("/turns", s.handleTurn)
		})
	})

	static, _ := fs.Sub(staticFiles, "static")
	r.Handle("/*", http.FileServer(http.FS(static)))
	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonConfigInvalid)
	}
	s.server = &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.Router(),
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Stop refuses new sessions and closes the listener. Sessions mid-turn are
// drained by the caller through the registry.
func (s *Server) Stop() error {
	s.draining.Store(true)
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// CloseClients drops every open websocket. Their sessions end as the read
// loops exit.
func (s *Server) CloseClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
	return len(s.clients)
}

func (s *Server) track(c *client, add bool) {
	s.mu.Lock()
	if add {
		s.clients[c] = struct{}{}
	} else {
		delete(s.clients, c)
	}
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if s.draining.Load() || s.sessions.Draining() {
		status = "draining"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":          status,
		"active_sessions": s.sessions.Len(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

type createSessionRequest struct {
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess, err := s.sessions.Create(session.Preferences{Language: req.Language, Voice: req.Voice})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	prefs := sess.Preferences()
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID(),
		"language":   prefs.Language,
		"voice":      prefs.Voice,
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot(s.cfg.Budget))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot(s.cfg.Budget))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.sessions.End(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type turnRequest struct {
	Text      string `json:"text"`
	AudioData string `json:"audio_data"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req turnRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.cfg.MaxAudioBytes*2)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TurnTimeout)
	defer cancel()

	var t *turn.Turn
	var err error
	if req.AudioData != "" {
		audio, decErr := base64.StdEncoding.DecodeString(req.AudioData)
		if decErr != nil {
			writeError(w, http.StatusBadRequest, "audio_data is not valid base64")
			return
		}
		t, err = s.turns.HandleAudio(ctx, sess, audio)
	} else {
		t, err = s.turns.HandleText(ctx, sess, req.Text)
	}
	switch {
	case errors.Is(err, pipeline.ErrNoSpeech):
		writeJSON(w, http.StatusOK, simpleMessage{Type: TypeNoSpeech, Message: noSpeechMessage})
	case err != nil:
		s.logger.Warn("turn_failed", "session_id", sess.ID(), "reason_code", string(errorsx.Reason(err)))
		msg := "could not process the turn"
		if errorsx.Transient(err) {
			msg = "the assistant is busy, please try again shortly"
		}
		writeError(w, errorsx.HTTPStatus(err), msg)
	default:
		writeJSON(w, http.StatusOK, NewReply(t, base64.StdEncoding.EncodeToString))
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(strings.TrimSpace(allowed), "/"), origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
