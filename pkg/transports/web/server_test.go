package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/orchestrator"
	"github.com/harunnryd/sakinah/pkg/pipeline"
	"github.com/harunnryd/sakinah/pkg/providers/mock"
	"github.com/harunnryd/sakinah/pkg/session"
	"github.com/harunnryd/sakinah/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ttsCfg mock.TTSConfig) (*Server, *httptest.Server) {
	t.Helper()
	orch := orchestrator.New(mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "أنا هنا أسمعك."}), nil, orchestrator.Config{
		PrimaryTimeout: time.Second,
	})
	p, err := pipeline.New(pipeline.Config{}, pipeline.Deps{
		STT:          mock.NewSTT(mock.STTConfig{Transcript: "حاس بضيق"}),
		TTS:          mock.NewTTS(ttsCfg),
		Orchestrator: orch,
	})
	require.NoError(t, err)
	reg := session.NewRegistry(session.RegistryConfig{Defaults: session.Preferences{Language: "ar", Voice: "female"}})
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	s := New(Config{Budget: 15 * time.Second}, p, reg, metricsHandler, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func TestHealthAndStatic(t *testing.T) {
	s, ts := newTestServer(t, mock.TTSConfig{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "healthy", decode(t, resp.Body)["status"])

	page, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)
	assert.Contains(t, string(body), "سكينة")

	m, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	assert.Equal(t, http.StatusOK, m.StatusCode)

	s.draining.Store(true)
	drain, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer drain.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, drain.StatusCode)
}

func TestSessionRESTLifecycle(t *testing.T) {
	_, ts := newTestServer(t, mock.TTSConfig{})

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(`{"voice":"male"}`))
	require.NoError(t, err)
	created := decode(t, resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "male", created["voice"])
	assert.Equal(t, "ar", created["language"])
	id := created["session_id"].(string)

	resp, err = http.Post(ts.URL+"/api/sessions/"+id+"/turns", "application/json", strings.NewReader(`{"text":"أبغى أنتحر"}`))
	require.NoError(t, err)
	reply := decode(t, resp.Body)
	resp.Body.Close()
	assert.Equal(t, TypeVoiceResponse, reply["type"])
	assert.Equal(t, true, reply["crisis_detected"])
	assert.Equal(t, string(crisis.CategorySuicide), reply["crisis_category"])
	assert.Contains(t, reply["text"], "9999")
	assert.NotEmpty(t, reply["audio_data"])

	resp, err = http.Get(ts.URL + "/api/sessions/" + id + "/stats")
	require.NoError(t, err)
	stats := decode(t, resp.Body)
	resp.Body.Close()
	assert.EqualValues(t, 1, stats["turn_count"])
	assert.EqualValues(t, 1, stats["crisis_count"])
	assert.Equal(t, true, stats["performance_target_met"])

	resp, err = http.Post(ts.URL+"/api/sessions/"+id+"/reset", "application/json", nil)
	require.NoError(t, err)
	reset := decode(t, resp.Body)
	resp.Body.Close()
	assert.EqualValues(t, 0, reset["turn_count"])

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/sessions/" + id + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRESTTurnShortAudioIsNoSpeech(t *testing.T) {
	_, ts := newTestServer(t, mock.TTSConfig{})
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	id := decode(t, resp.Body)["session_id"].(string)
	resp.Body.Close()

	body, _ := json.Marshal(turnRequest{AudioData: base64.StdEncoding.EncodeToString([]byte("tiny"))})
	resp, err = http.Post(ts.URL+"/api/sessions/"+id+"/turns", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, TypeNoSpeech, decode(t, resp.Body)["type"])
}

type wsConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *wsConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) write(msg Inbound) {
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsConn) read() map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var out map[string]any
	require.NoError(c.t, c.conn.ReadJSON(&out))
	return out
}

// until reads messages until one of the given type arrives, returning all seen types.
func (c *wsConn) until(typ string) (map[string]any, []string) {
	c.t.Helper()
	var seen []string
	for i := 0; i < 20; i++ {
		msg := c.read()
		seen = append(seen, msg["type"].(string))
		if msg["type"] == typ {
			return msg, seen
		}
	}
	c.t.Fatalf("no %s message, saw %v", typ, seen)
	return nil, seen
}

func TestWebsocketProtocol(t *testing.T) {
	_, ts := newTestServer(t, mock.TTSConfig{})
	c := dial(t, ts)

	connected := c.read()
	assert.Equal(t, TypeConnected, connected["type"])
	assert.NotEmpty(t, connected["session_id"])

	c.write(Inbound{Type: TypePing})
	assert.Equal(t, TypePong, c.read()["type"])

	c.write(Inbound{Type: TypeConfigUpdate, Voice: "male"})
	updated := c.read()
	assert.Equal(t, TypeConfigUpdated, updated["type"])
	assert.Equal(t, "male", updated["voice"])
	assert.Equal(t, "ar", updated["language"])

	c.write(Inbound{Type: TypeVoiceInput, AudioData: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 2048))})
	reply, seen := c.until(TypeVoiceResponse)
	assert.Equal(t, []string{TypeProcessingStatus, TypeProcessingStatus, TypeProcessingStatus, TypeTranscription, TypeVoiceResponse}, seen)
	assert.Equal(t, "حاس بضيق", reply["transcript"])
	assert.Equal(t, "audio/mpeg", reply["audio_format"])
	assert.Equal(t, string(orchestrator.VerdictPass), reply["verdict"])

	stats := c.read()
	assert.Equal(t, TypeSessionStats, stats["type"])
	assert.EqualValues(t, 1, stats["stats"].(map[string]any)["turn_count"])

	c.write(Inbound{Type: TypeVoiceInput, AudioData: base64.StdEncoding.EncodeToString([]byte("x"))})
	assert.Equal(t, TypeNoSpeech, c.read()["type"])

	c.write(Inbound{Type: "bogus"})
	assert.Equal(t, TypeError, c.read()["type"])
}

func TestWebsocketTextFallbackWhenTTSFails(t *testing.T) {
	_, ts := newTestServer(t, mock.TTSConfig{Err: errors.New("tts down")})
	c := dial(t, ts)
	c.read()

	c.write(Inbound{Type: TypeTextInput, Text: "I feel anxious"})
	reply, seen := c.until(TypeTextResponse)
	assert.NotContains(t, seen, TypeTranscription)
	assert.Equal(t, true, reply["fallback_mode"])
	assert.Empty(t, reply["audio_data"])
	assert.NotEmpty(t, reply["text"])
}

func TestWebsocketEndsSessionOnClose(t *testing.T) {
	s, ts := newTestServer(t, mock.TTSConfig{})
	c := dial(t, ts)
	c.read()
	assert.Equal(t, 1, s.sessions.Len())

	require.NoError(t, c.conn.Close())
	assert.Eventually(t, func() bool { return s.sessions.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseClientsDropsOpenSockets(t *testing.T) {
	s, ts := newTestServer(t, mock.TTSConfig{})
	c := dial(t, ts)
	c.read()

	assert.Equal(t, 1, s.CloseClients())
	assert.Eventually(t, func() bool { return s.sessions.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.CloseClients())
}

func TestClientRepliesWaitForBufferRoom(t *testing.T) {
	var logs bytes.Buffer
	c := &client{
		sendCh:    make(chan []byte, 1),
		done:      make(chan struct{}),
		wait:      200 * time.Millisecond,
		logger:    slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		sessionID: "s1",
	}

	assert.True(t, c.send(statusMessage{Type: TypeProcessingStatus}))
	assert.False(t, c.send(statusMessage{Type: TypeProcessingStatus}), "progress updates are dropped when full")

	drained := make(chan []byte, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		drained <- <-c.sendCh
	}()
	assert.True(t, c.sendWait(simpleMessage{Type: TypeVoiceResponse}))
	<-drained

	assert.False(t, c.sendWait(simpleMessage{Type: TypeSessionStats}))
	assert.Contains(t, logs.String(), "ws_message_dropped")
	assert.Contains(t, logs.String(), "type=session_stats")
}

func TestNewReplyText(t *testing.T) {
	tr := &turn.Turn{ID: "t1", Kind: turn.KindText, FinalText: "hi", Verdict: orchestrator.VerdictOverride}
	r := NewReply(tr, base64.StdEncoding.EncodeToString)
	assert.Equal(t, TypeTextResponse, r.Type)
	assert.True(t, r.FallbackMode)
	assert.Empty(t, r.Transcript)
	assert.Equal(t, "OVERRIDE", r.Verdict)
}
