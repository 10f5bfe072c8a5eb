package sakinah

import (
	"context"
	"time"

	"github.com/harunnryd/sakinah/pkg/adapters/stt"
	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/configutil"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/providers/anthropic"
	"github.com/harunnryd/sakinah/pkg/providers/azure"
	"github.com/harunnryd/sakinah/pkg/providers/deepgram"
	"github.com/harunnryd/sakinah/pkg/providers/elevenlabs"
	"github.com/harunnryd/sakinah/pkg/providers/gemini"
	"github.com/harunnryd/sakinah/pkg/providers/mock"
	"github.com/harunnryd/sakinah/pkg/providers/openai"
)

var (
	apiKeySchema = configutil.Schema{Required: []string{"api_key"}, Optional: []string{"model", "base_url"}}

	deepgramSchema = configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "encoding", "sample_rate", "utterance_end_ms", "settle"},
	}
	azureSchema = configutil.Schema{
		Required: []string{"key"},
		Optional: []string{"region", "output_format", "endpoint", "timeout"},
	}
	elevenLabsSchema = configutil.Schema{
		Required: []string{"api_key", "female_voice_id"},
		Optional: []string{"male_voice_id", "model_id", "output_format", "base_url", "stability", "crisis_stability"},
	}
	openAISpeechSchema = configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "base_url", "female_voice", "male_voice"},
	}
	mockSchema = configutil.Schema{AllowUnknown: true}

	// secretSchema masks credentials when vendor settings are logged.
	secretSchema = configutil.Schema{Secret: []string{"api_key", "key", "auth_token"}}
)

type apiKeySettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type deepgramSettings struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Encoding       string        `mapstructure:"encoding"`
	SampleRate     int           `mapstructure:"sample_rate"`
	UtteranceEndMS int           `mapstructure:"utterance_end_ms"`
	Settle         time.Duration `mapstructure:"settle"`
}

type azureSettings struct {
	Key          string        `mapstructure:"key"`
	Region       string        `mapstructure:"region"`
	OutputFormat string        `mapstructure:"output_format"`
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type elevenLabsSettings struct {
	APIKey          string  `mapstructure:"api_key"`
	FemaleVoiceID   string  `mapstructure:"female_voice_id"`
	MaleVoiceID     string  `mapstructure:"male_voice_id"`
	ModelID         string  `mapstructure:"model_id"`
	OutputFormat    string  `mapstructure:"output_format"`
	BaseURL         string  `mapstructure:"base_url"`
	Stability       float64 `mapstructure:"stability"`
	CrisisStability float64 `mapstructure:"crisis_stability"`
}

type openAISpeechSettings struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	FemaleVoice string `mapstructure:"female_voice"`
	MaleVoice   string `mapstructure:"male_voice"`
}

type mockSettings struct {
	ResponseText string `mapstructure:"response_text"`
	Transcript   string `mapstructure:"transcript"`
}

// settings validates vendor settings against schema and decodes them into out.
func settings(vendor VendorConfig, schema configutil.Schema, out any) error {
	if err := configutil.ValidateSettings(vendor.Settings, schema); err != nil {
		return err
	}
	return configutil.DecodeSettings(vendor.Settings, out)
}

// DefaultProviders registers every built-in adapter.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()

	r.RegisterSTT("openai", func(_ context.Context, v VendorConfig) (stt.Transcriber, error) {
		var s apiKeySettings
		if err := settings(v, apiKeySchema, &s); err != nil {
			return nil, err
		}
		w := openai.NewWhisper(s.APIKey, s.Model)
		if s.BaseURL != "" {
			w.BaseURL = s.BaseURL
		}
		return w, nil
	})
	r.RegisterSTT("deepgram", func(_ context.Context, v VendorConfig) (stt.Transcriber, error) {
		var s deepgramSettings
		if err := settings(v, deepgramSchema, &s); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:         s.APIKey,
			Model:          s.Model,
			Encoding:       s.Encoding,
			SampleRate:     s.SampleRate,
			UtteranceEndMS: s.UtteranceEndMS,
			Settle:         s.Settle,
		}), nil
	})
	r.RegisterSTT("mock", func(_ context.Context, v VendorConfig) (stt.Transcriber, error) {
		var s mockSettings
		if err := settings(v, mockSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{Transcript: configutil.StringValue(s.Transcript, "السلام عليكم")}), nil
	})

	r.RegisterTTS("azure", func(_ context.Context, v VendorConfig) (tts.Synthesizer, error) {
		var s azureSettings
		if err := settings(v, azureSchema, &s); err != nil {
			return nil, err
		}
		return azure.NewTTS(azure.Config{
			Key:          s.Key,
			Region:       s.Region,
			OutputFormat: s.OutputFormat,
			Endpoint:     s.Endpoint,
			Timeout:      s.Timeout,
		})
	})
	r.RegisterTTS("elevenlabs", func(_ context.Context, v VendorConfig) (tts.Synthesizer, error) {
		var s elevenLabsSettings
		if err := settings(v, elevenLabsSchema, &s); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:          s.APIKey,
			FemaleVoiceID:   s.FemaleVoiceID,
			MaleVoiceID:     configutil.StringValue(s.MaleVoiceID, s.FemaleVoiceID),
			ModelID:         s.ModelID,
			OutputFormat:    s.OutputFormat,
			BaseURL:         s.BaseURL,
			Stability:       s.Stability,
			CrisisStability: s.CrisisStability,
		}), nil
	})
	r.RegisterTTS("openai", func(_ context.Context, v VendorConfig) (tts.Synthesizer, error) {
		var s openAISpeechSettings
		if err := settings(v, openAISpeechSchema, &s); err != nil {
			return nil, err
		}
		sp := openai.NewSpeech(s.APIKey, s.Model)
		if s.BaseURL != "" {
			sp.BaseURL = s.BaseURL
		}
		sp.FemaleVoice = configutil.StringValue(s.FemaleVoice, sp.FemaleVoice)
		sp.MaleVoice = configutil.StringValue(s.MaleVoice, sp.MaleVoice)
		return sp, nil
	})
	r.RegisterTTS("mock", func(context.Context, VendorConfig) (tts.Synthesizer, error) {
		return mock.NewTTS(mock.TTSConfig{}), nil
	})

	r.RegisterLLM("openai", func(_ context.Context, v VendorConfig) (llm.Generator, error) {
		var s apiKeySettings
		if err := settings(v, apiKeySchema, &s); err != nil {
			return nil, err
		}
		a := openai.NewAdapter(s.APIKey, s.Model)
		if s.BaseURL != "" {
			a.BaseURL = s.BaseURL
		}
		return a, nil
	})
	r.RegisterLLM("anthropic", func(_ context.Context, v VendorConfig) (llm.Generator, error) {
		var s apiKeySettings
		if err := settings(v, apiKeySchema, &s); err != nil {
			return nil, err
		}
		a := anthropic.NewAdapter(s.APIKey, s.Model)
		if s.BaseURL != "" {
			a.BaseURL = s.BaseURL
		}
		return a, nil
	})
	r.RegisterLLM("gemini", func(ctx context.Context, v VendorConfig) (llm.Generator, error) {
		var s apiKeySettings
		if err := settings(v, apiKeySchema, &s); err != nil {
			return nil, err
		}
		return gemini.NewAdapter(ctx, s.APIKey, s.Model)
	})
	r.RegisterLLM("mock", func(_ context.Context, v VendorConfig) (llm.Generator, error) {
		var s mockSettings
		if err := settings(v, mockSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText}), nil
	})
	return r
}
