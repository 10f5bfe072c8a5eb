package web

import (
	"github.com/harunnryd/sakinah/pkg/session"
	"github.com/harunnryd/sakinah/pkg/turn"
)

// Inbound websocket message types.
const (
	TypeVoiceInput   = "voice_input"
	TypeTextInput    = "text_input"
	TypePing         = "ping"
	TypeConfigUpdate = "config_update"
)

// Outbound websocket message types.
const (
	TypeConnected        = "connected"
	TypeProcessingStatus = "processing_status"
	TypeTranscription    = "transcription"
	TypeVoiceResponse    = "voice_response"
	TypeTextResponse     = "text_response"
	TypeNoSpeech         = "no_speech"
	TypePong             = "pong"
	TypeConfigUpdated    = "config_updated"
	TypeSessionStats     = "session_stats"
	TypeError            = "error"
)

// Inbound is any message a client sends over /ws.
type Inbound struct {
	Type      string `json:"type"`
	AudioData string `json:"audio_data,omitempty"`
	Text      string `json:"text,omitempty"`
	Language  string `json:"language,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

type ProcessingTime struct {
	STTMS        int64 `json:"stt_ms"`
	GenerationMS int64 `json:"generation_ms"`
	ValidationMS int64 `json:"validation_ms"`
	TTSMS        int64 `json:"tts_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// Reply is the payload of voice_response and text_response.
type Reply struct {
	Type           string         `json:"type"`
	TurnID         string         `json:"turn_id"`
	Text           string         `json:"text"`
	Transcript     string         `json:"transcript,omitempty"`
	AudioData      string         `json:"audio_data,omitempty"`
	AudioFormat    string         `json:"audio_format,omitempty"`
	LatencyMS      int64          `json:"latency_ms"`
	CrisisDetected bool           `json:"crisis_detected"`
	CrisisCategory string         `json:"crisis_category,omitempty"`
	Verdict        string         `json:"verdict"`
	ProcessingTime ProcessingTime `json:"processing_time"`
	FallbackMode   bool           `json:"fallback_mode,omitempty"`
}

type statusMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type transcriptionMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type configMessage struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

type statsMessage struct {
	Type  string           `json:"type"`
	Stats session.Snapshot `json:"stats"`
}

type simpleMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewReply maps a finished turn to its client payload. Text-only replies carry
// fallback_mode so the UI can say the voice was unavailable.
func NewReply(t *turn.Turn, encode func([]byte) string) Reply {
	r := Reply{
		Type:           TypeVoiceResponse,
		TurnID:         t.ID,
		Text:           t.FinalText,
		LatencyMS:      t.Latency.Total.Milliseconds(),
		CrisisDetected: t.Crisis.Flag,
		Verdict:        string(t.Verdict),
		ProcessingTime: ProcessingTime{
			STTMS:        t.Latency.STT.Milliseconds(),
			GenerationMS: t.Latency.Generation.Milliseconds(),
			ValidationMS: t.Latency.Validation.Milliseconds(),
			TTSMS:        t.Latency.TTS.Milliseconds(),
			TotalMS:      t.Latency.Total.Milliseconds(),
		},
	}
	if t.Crisis.Flag {
		r.CrisisCategory = string(t.Crisis.Category)
	}
	if t.Kind == turn.KindVoice {
		r.Transcript = t.RawText
	}
	if t.HasAudio() {
		r.AudioData = encode(t.Audio)
		r.AudioFormat = t.AudioFormat
	} else {
		r.Type = TypeTextResponse
		r.FallbackMode = true
	}
	return r
}

// statusText is the short line shown next to the spinner in the UI.
func statusText(s turn.State) string {
	switch s {
	case turn.StateTranscribing:
		return "جاري الاستماع..."
	case turn.StateThinking:
		return "جاري التفكير..."
	case turn.StateSynthesizing:
		return "جاري تجهيز الرد الصوتي..."
	default:
		return ""
	}
}
