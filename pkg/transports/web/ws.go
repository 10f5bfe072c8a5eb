package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/pipeline"
	"github.com/harunnryd/sakinah/pkg/session"
	"github.com/harunnryd/sakinah/pkg/turn"
)

const noSpeechMessage = "لم أسمع شيئاً، حاول مرة ثانية"

// replyWait bounds how long a turn result waits for room in a full send buffer.
const replyWait = 2 * time.Second

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	sess, err := s.sessions.Create(session.Preferences{
		Language: r.URL.Query().Get("language"),
		Voice:    r.URL.Query().Get("voice"),
	})
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sessions.End(sess.ID())
		return
	}
	conn.SetReadLimit(s.cfg.MaxAudioBytes * 2)

	c := newClient(conn, s.logger, sess.ID())
	go c.loop()
	s.track(c, true)

	ctx, cancel := context.WithCancel(context.Background())
	var turns sync.WaitGroup
	defer func() {
		cancel()
		turns.Wait()
		c.close()
		s.track(c, false)
		s.sessions.End(sess.ID())
	}()

	c.send(simpleMessage{Type: TypeConnected, SessionID: sess.ID()})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("ws_decode_failed", "session_id", sess.ID(), "reason_code", string(errorsx.ReasonTransportDecode))
			c.send(simpleMessage{Type: TypeError, Error: "invalid message"})
			continue
		}
		switch msg.Type {
		case TypePing:
			c.send(simpleMessage{Type: TypePong})
		case TypeConfigUpdate:
			prefs := sess.UpdatePreferences(session.Preferences{Language: msg.Language, Voice: msg.Voice})
			c.send(configMessage{Type: TypeConfigUpdated, Language: prefs.Language, Voice: prefs.Voice})
		case TypeVoiceInput:
			audio, err := base64.StdEncoding.DecodeString(msg.AudioData)
			if err != nil {
				c.send(simpleMessage{Type: TypeError, Error: "audio_data is not valid base64"})
				continue
			}
			turns.Add(1)
			go func() {
				defer turns.Done()
				s.runTurn(ctx, c, sess, func(ctx context.Context, l turn.StateListener) (*turn.Turn, error) {
					return s.turns.HandleAudio(ctx, sess, audio, l)
				})
			}()
		case TypeTextInput:
			text := msg.Text
			turns.Add(1)
			go func() {
				defer turns.Done()
				s.runTurn(ctx, c, sess, func(ctx context.Context, l turn.StateListener) (*turn.Turn, error) {
					return s.turns.HandleText(ctx, sess, text, l)
				})
			}()
		default:
			c.send(simpleMessage{Type: TypeError, Error: "unknown message type"})
		}
	}
}

// runTurn pushes processing_status on each stage change, then the reply and
// the updated session stats.
func (s *Server) runTurn(ctx context.Context, c *client, sess *session.Session, run func(context.Context, turn.StateListener) (*turn.Turn, error)) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()

	var transcribed bool
	listener := turn.ListenerFunc(func(ev turn.StateChange) {
		if text := statusText(ev.ToState); text != "" {
			c.send(statusMessage{Type: TypeProcessingStatus, Status: ev.ToState.Status(), Message: text})
		}
		if ev.FromState == turn.StateTranscribing && ev.ToState == turn.StateThinking {
			transcribed = true
		}
	})

	t, err := run(ctx, listener)
	switch {
	case errors.Is(err, pipeline.ErrNoSpeech):
		c.sendWait(simpleMessage{Type: TypeNoSpeech, Message: noSpeechMessage})
		return
	case err != nil:
		s.logger.Warn("turn_failed", "session_id", sess.ID(), "reason_code", string(errorsx.Reason(err)))
		c.sendWait(simpleMessage{Type: TypeError, Error: "could not process your message, please try again"})
		return
	}
	if transcribed {
		c.sendWait(transcriptionMessage{Type: TypeTranscription, Text: t.RawText, Language: t.Language})
	}
	c.sendWait(NewReply(t, base64.StdEncoding.EncodeToString))
	c.sendWait(statsMessage{Type: TypeSessionStats, Stats: sess.Snapshot(s.cfg.Budget)})
}

// client serialises writes to one websocket connection.
type client struct {
	conn      *websocket.Conn
	sendCh    chan []byte
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	wait      time.Duration
	logger    *slog.Logger
	sessionID string
}

func newClient(conn *websocket.Conn, logger *slog.Logger, sessionID string) *client {
	return &client{
		conn:      conn,
		sendCh:    make(chan []byte, 64),
		done:      make(chan struct{}),
		wait:      replyWait,
		logger:    logger,
		sessionID: sessionID,
	}
}

// send queues msg without blocking. Progress updates go through here and
// are dropped when the buffer is full.
func (c *client) send(msg any) bool { return c.enqueue(msg, 0) }

// sendWait queues a turn result, waiting up to c.wait for buffer room.
func (c *client) sendWait(msg any) bool { return c.enqueue(msg, c.wait) }

func (c *client) enqueue(msg any, wait time.Duration) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("ws_encode_failed", "session_id", c.sessionID, "error", err.Error())
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.sendCh <- b:
		return true
	default:
	}
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case c.sendCh <- b:
			return true
		case <-c.done:
		case <-timer.C:
		}
	}
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &head)
	if wait > 0 {
		c.logger.Warn("ws_message_dropped", "session_id", c.sessionID, "type", head.Type)
	} else {
		c.logger.Debug("ws_message_dropped", "session_id", c.sessionID, "type", head.Type)
	}
	return false
}

func (c *client) loop() {
	defer close(c.done)
	for msg := range c.sendCh {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// close flushes queued messages and closes the connection.
func (c *client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.sendCh)
	}
	c.mu.Unlock()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
	}
	_ = c.conn.Close()
}
