package sakinah

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/orchestrator"
	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Server        ServerConfig        `mapstructure:"server"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	STT           STTConfig           `mapstructure:"stt"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Orchestrator  OrchestratorConfig  `mapstructure:"orchestrator"`
	Context       ContextConfig       `mapstructure:"context"`
	PostProcess   PostProcessConfig   `mapstructure:"postprocess"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Resilience    ResilienceConfig    `mapstructure:"resilience"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAudioBytes  int64    `mapstructure:"max_audio_bytes"`
	TurnTimeoutMS  int      `mapstructure:"turn_timeout_ms"`
	DrainTimeoutMS int      `mapstructure:"drain_timeout_ms"`
}

type AssistantConfig struct {
	PrimaryLanguage       string `mapstructure:"primary_language"`
	FallbackLanguage      string `mapstructure:"fallback_language"`
	CulturalContext       string `mapstructure:"cultural_context"`
	TherapeuticApproach   string `mapstructure:"therapeutic_approach"`
	Persona               string `mapstructure:"persona"`
	Tone                  string `mapstructure:"tone"`
	MaxWords              int    `mapstructure:"max_words"`
	MaxResponseTimeMS     int    `mapstructure:"max_response_time_ms"`
	EnableCrisisDetection bool   `mapstructure:"enable_crisis_detection"`
}

type STTConfig struct {
	Language      string `mapstructure:"language"`
	RetryLanguage string `mapstructure:"retry_language"`
	AudioFormat   string `mapstructure:"audio_format"`
	MinAudioBytes int    `mapstructure:"min_audio_bytes"`
	TimeoutMS     int    `mapstructure:"timeout_ms"`
}

type VoicesConfig struct {
	Female        string  `mapstructure:"female"`
	Male          string  `mapstructure:"male"`
	EnglishFemale string  `mapstructure:"english_female"`
	EnglishMale   string  `mapstructure:"english_male"`
	Default       string  `mapstructure:"default"`
	Rate          float64 `mapstructure:"rate"`
	CrisisStyle   string  `mapstructure:"crisis_style"`
	CrisisRate    float64 `mapstructure:"crisis_rate"`
}

type TTSConfig struct {
	TimeoutMS int          `mapstructure:"timeout_ms"`
	Voices    VoicesConfig `mapstructure:"voices"`
}

type OrchestratorConfig struct {
	PrimaryTimeoutMS    int     `mapstructure:"primary_timeout_ms"`
	ValidationTimeoutMS int     `mapstructure:"validation_timeout_ms"`
	MaxTokens           int     `mapstructure:"max_tokens"`
	Temperature         float64 `mapstructure:"temperature"`
	ValidationMaxTokens int     `mapstructure:"validation_max_tokens"`
	ValidationPolicy    string  `mapstructure:"validation_policy"`
}

type ContextConfig struct {
	Window int `mapstructure:"window"`
}

type ContactsConfig struct {
	Police              string `mapstructure:"police"`
	MentalHealthHotline string `mapstructure:"mental_health_hotline"`
	MinistryOfHealth    string `mapstructure:"ministry_of_health"`
}

type PostProcessConfig struct {
	MaxSentences int               `mapstructure:"max_sentences"`
	Replacements map[string]string `mapstructure:"replacements"`
	Contacts     ContactsConfig    `mapstructure:"contacts"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

// VendorsConfig names the provider of each stage. LLM generates replies and
// Validator reviews them; a validator with an empty provider disables review.
type VendorsConfig struct {
	STT       VendorConfig `mapstructure:"stt"`
	TTS       VendorConfig `mapstructure:"tts"`
	LLM       VendorConfig `mapstructure:"llm"`
	Validator VendorConfig `mapstructure:"validator"`
}

type ResilienceConfig struct {
	BreakerThreshold  int  `mapstructure:"breaker_threshold"`
	BreakerCooldownMS int  `mapstructure:"breaker_cooldown_ms"`
	TripOnAnyError    bool `mapstructure:"trip_on_any_error"`
}

type PrivacyConfig struct {
	RedactPII      bool `mapstructure:"redact_pii"`
	LogTranscripts bool `mapstructure:"log_transcripts"`
}

type AlertsConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	AccountSID string   `mapstructure:"account_sid"`
	AuthToken  string   `mapstructure:"auth_token"`
	From       string   `mapstructure:"from"`
	To         []string `mapstructure:"to"`
	CooldownMS int      `mapstructure:"cooldown_ms"`
	Retries    int      `mapstructure:"retries"`
	BackoffMS  int      `mapstructure:"backoff_ms"`
}

type ObservabilityConfig struct {
	Prometheus bool `mapstructure:"prometheus"`
	// EventLog is a path for JSON-lines events; "stdout" writes to stdout and
	// empty disables it.
	EventLog   string  `mapstructure:"event_log"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allow_any_origin", true)
	v.SetDefault("server.max_audio_bytes", 10<<20)
	v.SetDefault("server.turn_timeout_ms", 60000)
	v.SetDefault("server.drain_timeout_ms", 20000)

	v.SetDefault("assistant.primary_language", "ar-OM")
	v.SetDefault("assistant.fallback_language", "ar-SA")
	v.SetDefault("assistant.cultural_context", "gulf_arab")
	v.SetDefault("assistant.therapeutic_approach", "cbt_islamic")
	v.SetDefault("assistant.tone", "warm")
	v.SetDefault("assistant.max_words", 150)
	v.SetDefault("assistant.max_response_time_ms", 15000)
	v.SetDefault("assistant.enable_crisis_detection", true)

	v.SetDefault("stt.language", "ar")
	v.SetDefault("stt.retry_language", "en")
	v.SetDefault("stt.audio_format", "webm")
	v.SetDefault("stt.min_audio_bytes", 1000)
	v.SetDefault("stt.timeout_ms", 15000)

	v.SetDefault("tts.timeout_ms", 15000)
	v.SetDefault("tts.voices.female", "ar-OM-AyshaNeural")
	v.SetDefault("tts.voices.male", "ar-OM-AbdullahNeural")
	v.SetDefault("tts.voices.english_female", "en-US-JennyNeural")
	v.SetDefault("tts.voices.english_male", "en-US-GuyNeural")
	v.SetDefault("tts.voices.default", "female")
	v.SetDefault("tts.voices.rate", 0.9)
	v.SetDefault("tts.voices.crisis_style", "calm")
	v.SetDefault("tts.voices.crisis_rate", 0.8)

	v.SetDefault("orchestrator.primary_timeout_ms", 10000)
	v.SetDefault("orchestrator.validation_timeout_ms", 5000)
	v.SetDefault("orchestrator.max_tokens", 400)
	v.SetDefault("orchestrator.temperature", 0.7)
	v.SetDefault("orchestrator.validation_max_tokens", 600)
	v.SetDefault("orchestrator.validation_policy", string(orchestrator.PolicyFailOpen))

	v.SetDefault("context.window", 10)
	v.SetDefault("postprocess.max_sentences", 0)

	v.SetDefault("resilience.breaker_threshold", 3)
	v.SetDefault("resilience.breaker_cooldown_ms", 30000)
	v.SetDefault("resilience.trip_on_any_error", false)

	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("privacy.log_transcripts", false)

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.cooldown_ms", 600000)
	v.SetDefault("alerts.retries", 2)
	v.SetDefault("alerts.backoff_ms", 500)

	v.SetDefault("observability.prometheus", true)
	v.SetDefault("observability.event_log", "")
	v.SetDefault("observability.sample_rate", 1.0)
}

// LoadConfig reads a YAML file, applies defaults, expands ${ENV} references
// and validates the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

// DefaultConfig returns the defaults with mock vendors, for tests and offline demos.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	v.Set("vendors.stt.provider", "mock")
	v.Set("vendors.tts.provider", "mock")
	v.Set("vendors.llm.provider", "mock")
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return errorsx.New(errorsx.ReasonConfigInvalid, "vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return errorsx.New(errorsx.ReasonConfigInvalid, "vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return errorsx.New(errorsx.ReasonConfigInvalid, "vendors.llm.provider is required")
	}
	switch orchestrator.Policy(strings.ToLower(strings.TrimSpace(c.Orchestrator.ValidationPolicy))) {
	case orchestrator.PolicyFailOpen, orchestrator.PolicyFailClosedOnCrisis, "":
	default:
		return errorsx.New(errorsx.ReasonConfigInvalid, "orchestrator.validation_policy %q is not supported", c.Orchestrator.ValidationPolicy)
	}
	if c.Assistant.MaxResponseTimeMS < 0 {
		return errorsx.New(errorsx.ReasonConfigInvalid, "assistant.max_response_time_ms must not be negative")
	}
	if c.Context.Window < 0 {
		return errorsx.New(errorsx.ReasonConfigInvalid, "context.window must not be negative")
	}
	switch strings.ToLower(c.TTS.Voices.Default) {
	case "female", "male", "":
	default:
		return errorsx.New(errorsx.ReasonConfigInvalid, "tts.voices.default must be female or male")
	}
	if c.Alerts.Enabled {
		if c.Alerts.AccountSID == "" || c.Alerts.AuthToken == "" {
			return errorsx.New(errorsx.ReasonConfigInvalid, "alerts require account_sid and auth_token")
		}
		if c.Alerts.From == "" || len(c.Alerts.To) == 0 {
			return errorsx.New(errorsx.ReasonConfigInvalid, "alerts require from and to numbers")
		}
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return errorsx.New(errorsx.ReasonConfigInvalid, "observability.sample_rate must be within [0,1]")
	}
	return nil
}

// MaxResponseTime is the latency budget used for warnings and performance_target_met.
func (c Config) MaxResponseTime() time.Duration {
	return time.Duration(c.Assistant.MaxResponseTimeMS) * time.Millisecond
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.Validator.Settings = expandSettings(cfg.Vendors.Validator.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				v.SetMapIndex(key, reflect.ValueOf(os.ExpandEnv(val.String())))
			}
		}
	}
}
