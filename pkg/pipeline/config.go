package pipeline

import "time"

// VoiceConfig maps session preferences and crisis state to a TTS voice.
type VoiceConfig struct {
	Female        string
	Male          string
	EnglishFemale string
	EnglishMale   string
	// Default is the gender used when the session has no preference.
	Default string
	Rate    float64
	// CrisisStyle and CrisisRate give crisis replies a calmer, slower delivery.
	CrisisStyle string
	CrisisRate  float64
}

type Config struct {
	// MinAudioBytes is the smallest buffer sent to STT; shorter input is no speech.
	MinAudioBytes   int
	DefaultLanguage string
	// RetryLanguage is tried once when the first transcript is empty.
	RetryLanguage string
	AudioFormat   string
	STTTimeout    time.Duration
	TTSTimeout    time.Duration
	// MaxResponseTime is a logging budget only; slow turns still complete.
	MaxResponseTime        time.Duration
	DisableCrisisDetection bool
	LogTranscripts         bool
	Voices                 VoiceConfig
}

func (c Config) withDefaults() Config {
	if c.MinAudioBytes <= 0 {
		c.MinAudioBytes = 1000
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "ar"
	}
	if c.AudioFormat == "" {
		c.AudioFormat = "webm"
	}
	if c.STTTimeout <= 0 {
		c.STTTimeout = 15 * time.Second
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = 15 * time.Second
	}
	if c.MaxResponseTime <= 0 {
		c.MaxResponseTime = 15 * time.Second
	}
	v := &c.Voices
	if v.Female == "" {
		v.Female = "ar-OM-AyshaNeural"
	}
	if v.Male == "" {
		v.Male = "ar-OM-AbdullahNeural"
	}
	if v.Default == "" {
		v.Default = "female"
	}
	if v.Rate <= 0 {
		v.Rate = 0.9
	}
	if v.CrisisStyle == "" {
		v.CrisisStyle = "calm"
	}
	if v.CrisisRate <= 0 {
		v.CrisisRate = 0.8
	}
	return c
}
