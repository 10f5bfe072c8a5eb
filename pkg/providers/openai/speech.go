package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/errorsx"
)

// Speech synthesizes replies with the audio speech endpoint. Vendor voices are
// chosen by gender since the configured voice IDs target Azure.
type Speech struct {
	Adapter
	FemaleVoice string
	MaleVoice   string
}

func NewSpeech(apiKey, model string) *Speech {
	if model == "" {
		model = "tts-1"
	}
	a := NewAdapter(apiKey, model)
	return &Speech{Adapter: *a, FemaleVoice: "nova", MaleVoice: "onyx"}
}

func (s *Speech) Name() string { return "openai_tts" }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

func (s *Speech) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	name := s.FemaleVoice
	if voice.Gender == "male" {
		name = s.MaleVoice
	}
	speed := voice.Rate
	if speed < 0.25 || speed > 4 {
		speed = 1
	}
	body, err := json.Marshal(speechRequest{
		Model:          s.Model,
		Input:          text,
		Voice:          name,
		Speed:          speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return tts.Audio{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	s.applyAuth(req)

	resp, err := s.client().Do(req)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, errorsx.ReasonTTSSynthesize, errorsx.ReasonTTSRateLimit); err != nil {
		return tts.Audio{}, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	return tts.Audio{Data: data, Format: "audio/mpeg"}, nil
}
