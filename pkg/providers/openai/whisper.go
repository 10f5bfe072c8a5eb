package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/adapters/stt"
	"github.com/harunnryd/sakinah/pkg/errorsx"
)

// Whisper transcribes whole utterances through the audio transcription endpoint.
type Whisper struct {
	Adapter
}

func NewWhisper(apiKey, model string) *Whisper {
	if model == "" {
		model = "whisper-1"
	}
	a := NewAdapter(apiKey, model)
	return &Whisper{Adapter: *a}
}

func (w *Whisper) Name() string { return "openai_whisper" }

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Transcript, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "utterance."+extension(opts.Format))
	if err != nil {
		return stt.Transcript{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return stt.Transcript{}, err
	}
	_ = mw.WriteField("model", w.Model)
	_ = mw.WriteField("response_format", "json")
	if lang := baseLanguage(opts.Language); lang != "" {
		_ = mw.WriteField("language", lang)
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return stt.Transcript{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w.applyAuth(req)

	start := time.Now()
	resp, err := w.client().Do(req)
	if err != nil {
		return stt.Transcript{}, errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, errorsx.ReasonSTTTranscribe, errorsx.ReasonSTTRateLimit); err != nil {
		return stt.Transcript{}, err
	}
	var payload struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return stt.Transcript{}, errorsx.Wrap(fmt.Errorf("whisper: decode: %w", err), errorsx.ReasonSTTTranscribe)
	}
	lang := payload.Language
	if lang == "" {
		lang = opts.Language
	}
	return stt.Transcript{
		Text:     strings.TrimSpace(payload.Text),
		Language: lang,
		Duration: time.Since(start),
	}, nil
}

// extension maps a MIME type or bare format to a file extension Whisper accepts.
func extension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if i := strings.Index(format, ";"); i >= 0 {
		format = format[:i]
	}
	format = strings.TrimPrefix(format, "audio/")
	switch format {
	case "", "webm":
		return "webm"
	case "wave", "x-wav", "wav":
		return "wav"
	case "mpeg", "mp3":
		return "mp3"
	case "ogg", "opus":
		return "ogg"
	case "mp4", "m4a":
		return "m4a"
	default:
		return format
	}
}

// baseLanguage turns "ar-OM" into "ar".
func baseLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}
