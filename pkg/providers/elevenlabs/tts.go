package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/resilience"
)

type Config struct {
	APIKey        string
	FemaleVoiceID string
	MaleVoiceID   string
	ModelID       string
	OutputFormat  string
	// BaseURL overrides the stream-input endpoint root, e.g. in tests.
	BaseURL string
	// Stability is the normal voice setting; crisis replies use CrisisStability.
	Stability       float64
	CrisisStability float64
}

// ElevenLabsTTS renders one reply per websocket session on the stream-input
// endpoint and collects every audio chunk until the final message.
type ElevenLabsTTS struct {
	cfg    Config
	dialer websocket.Dialer
	logger *slog.Logger
}

type inbound struct {
	Audio        string `json:"audio"`
	AudioBase64  string `json:"audio_base_64"`
	IsFinal      bool   `json:"isFinal"`
	Message      string `json:"message"`
	ErrorMessage string `json:"error"`
}

func New(cfg Config) *ElevenLabsTTS {
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	}
	if cfg.Stability <= 0 {
		cfg.Stability = 0.5
	}
	if cfg.CrisisStability <= 0 {
		cfg.CrisisStability = 0.8
	}
	return &ElevenLabsTTS{
		cfg:    cfg,
		dialer: websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs"),
	}
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs_tts" }

func (s *ElevenLabsTTS) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	voiceID := s.voiceID(voice)
	if s.cfg.APIKey == "" || voiceID == "" {
		return tts.Audio{}, errorsx.New(errorsx.ReasonConfigInvalid, "elevenlabs: missing api key or voice id")
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.buildURL(voiceID), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return tts.Audio{}, errorsx.Wrap(resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}, errorsx.ReasonTTSRateLimit)
		}
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	stability := s.cfg.Stability
	if voice.Style != "" {
		stability = s.cfg.CrisisStability
	}
	speed := voice.Rate
	if speed < 0.7 || speed > 1.2 {
		speed = 1
	}
	msgs := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        stability,
				"similarity_boost": 0.8,
				"speed":            speed,
			},
		},
		{"text": strings.TrimSpace(text) + " ", "flush": true},
		{"text": ""},
	}
	for _, m := range msgs {
		if err := conn.WriteJSON(m); err != nil {
			return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
	}

	var audio bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && audio.Len() > 0 {
				break
			}
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("tts websocket raw data", slog.Int("size_bytes", len(data)))
			continue
		}
		if msg.ErrorMessage != "" {
			return tts.Audio{}, errorsx.New(errorsx.ReasonTTSSynthesize, "elevenlabs: %s", msg.ErrorMessage)
		}
		chunk := msg.Audio
		if chunk == "" {
			chunk = msg.AudioBase64
		}
		if chunk != "" {
			raw, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				s.logger.Error("tts audio decode error", slog.String("error", err.Error()))
			} else {
				audio.Write(raw)
			}
		}
		if msg.IsFinal {
			break
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return tts.Audio{Data: audio.Bytes(), Format: mimeFor(s.cfg.OutputFormat)}, nil
}

func (s *ElevenLabsTTS) voiceID(v tts.Voice) string {
	if v.Gender == "male" && s.cfg.MaleVoiceID != "" {
		return s.cfg.MaleVoiceID
	}
	if s.cfg.FemaleVoiceID != "" {
		return s.cfg.FemaleVoiceID
	}
	return s.cfg.MaleVoiceID
}

func (s *ElevenLabsTTS) buildURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", s.cfg.OutputFormat)
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(voiceID) + "/stream-input?" + q.Encode()
}

func mimeFor(format string) string {
	switch {
	case strings.HasPrefix(format, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(format, "pcm"):
		return "audio/pcm"
	case strings.HasPrefix(format, "ulaw"):
		return "audio/basic"
	case strings.HasPrefix(format, "opus"):
		return "audio/ogg"
	}
	return "application/octet-stream"
}

var _ tts.Synthesizer = (*ElevenLabsTTS)(nil)
