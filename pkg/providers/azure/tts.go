package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/resilience"
)

const (
	DefaultVoice        = "ar-OM-AyshaNeural"
	DefaultOutputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

// Env var names for Azure Speech credentials.
const (
	EnvSpeechKey    = "AZURE_SPEECH_KEY"
	EnvSpeechRegion = "AZURE_SPEECH_REGION"
)

type Config struct {
	Key          string
	Region       string
	OutputFormat string
	// Endpoint overrides the regional URL, mostly for tests.
	Endpoint string
	Timeout  time.Duration
}

// TTS renders SSML through the Azure Speech REST endpoint. It supports the
// Omani Arabic neural voices and the express-as styles used for crisis replies.
type TTS struct {
	cfg    Config
	client *http.Client
}

func NewTTS(cfg Config) (*TTS, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, errorsx.New(errorsx.ReasonConfigInvalid, "azure: speech key is required")
	}
	if cfg.Endpoint == "" {
		if cfg.Region == "" {
			return nil, errorsx.New(errorsx.ReasonConfigInvalid, "azure: region is required")
		}
		cfg.Endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TTS{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (t *TTS) Name() string { return "azure_tts" }

func (t *TTS) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	body := SSML(text, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, strings.NewReader(body))
	if err != nil {
		return tts.Audio{}, err
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", t.cfg.OutputFormat)
	req.Header.Set("Ocp-Apim-Subscription-Key", t.cfg.Key)
	req.Header.Set("User-Agent", "sakinah")

	resp, err := t.client.Do(req)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return tts.Audio{}, errorsx.Wrap(resilience.RateLimitError{Provider: "azure"}, errorsx.ReasonTTSRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return tts.Audio{}, errorsx.New(errorsx.ReasonTTSSynthesize, "azure: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	return tts.Audio{Data: data, Format: mimeType(t.cfg.OutputFormat)}, nil
}

// SSML wraps text in a speak document for the voice. The rate becomes a
// relative prosody percentage and a non-empty style is applied with express-as.
func SSML(text string, voice tts.Voice) string {
	id := voice.ID
	if id == "" {
		id = DefaultVoice
	}
	lang := voice.Language
	if lang == "" {
		lang = localeOf(id)
	}

	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))

	inner := escaped.String()
	if r := prosodyRate(voice.Rate); r != "" {
		inner = fmt.Sprintf(`<prosody rate="%s">%s</prosody>`, r, inner)
	}
	if voice.Style != "" {
		inner = fmt.Sprintf(`<mstts:express-as style="%s">%s</mstts:express-as>`, voice.Style, inner)
	}
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="%s"><voice name="%s">%s</voice></speak>`, lang, id, inner)
}

func prosodyRate(rate float64) string {
	if rate <= 0 || rate == 1 {
		return ""
	}
	pct := int(math.Round((rate - 1) * 100))
	if pct > 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}

// localeOf takes "ar-OM" from "ar-OM-AyshaNeural".
func localeOf(voiceID string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) < 2 {
		return "ar-OM"
	}
	return parts[0] + "-" + parts[1]
}

func mimeType(format string) string {
	switch {
	case strings.HasSuffix(format, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(format, "riff"):
		return "audio/wav"
	case strings.HasPrefix(format, "ogg"):
		return "audio/ogg"
	case strings.HasPrefix(format, "webm"):
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}
