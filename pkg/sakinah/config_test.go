package sakinah

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("SAKINAH_TEST_OPENAI_KEY", "sk-test")
	t.Setenv("SAKINAH_TEST_HOTLINE", "24673000")
	path := writeConfig(t, `
vendors:
  stt:
    provider: openai
    settings:
      api_key: ${SAKINAH_TEST_OPENAI_KEY}
  tts:
    provider: mock
  llm:
    provider: openai
    settings:
      api_key: ${SAKINAH_TEST_OPENAI_KEY}
      model: gpt-4o-mini
postprocess:
  contacts:
    mental_health_hotline: ${SAKINAH_TEST_HOTLINE}
assistant:
  max_response_time_ms: 8000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Vendors.LLM.Settings["api_key"])
	assert.Equal(t, "sk-test", cfg.Vendors.STT.Settings["api_key"])
	assert.Equal(t, "24673000", cfg.PostProcess.Contacts.MentalHealthHotline)
	assert.Equal(t, 8*time.Second, cfg.MaxResponseTime())

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "ar", cfg.STT.Language)
	assert.Equal(t, "en", cfg.STT.RetryLanguage)
	assert.Equal(t, 1000, cfg.STT.MinAudioBytes)
	assert.Equal(t, 10, cfg.Context.Window)
	assert.Equal(t, "fail_open", cfg.Orchestrator.ValidationPolicy)
	assert.Equal(t, "female", cfg.TTS.Voices.Default)
	assert.InDelta(t, 0.8, cfg.TTS.Voices.CrisisRate, 1e-9)
	assert.True(t, cfg.Assistant.EnableCrisisDetection)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"missing llm": `
vendors:
  stt: {provider: mock}
  tts: {provider: mock}
`,
		"bad policy": `
vendors:
  stt: {provider: mock}
  tts: {provider: mock}
  llm: {provider: mock}
orchestrator:
  validation_policy: fail_sometimes
`,
		"bad voice": `
vendors:
  stt: {provider: mock}
  tts: {provider: mock}
  llm: {provider: mock}
tts:
  voices:
    default: robot
`,
		"alerts without numbers": `
vendors:
  stt: {provider: mock}
  tts: {provider: mock}
  llm: {provider: mock}
alerts:
  enabled: true
  account_sid: AC123
  auth_token: secret
`,
		"sample rate": `
vendors:
  stt: {provider: mock}
  tts: {provider: mock}
  llm: {provider: mock}
observability:
  sample_rate: 1.5
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfigInvalid), "reason %s", errorsx.Reason(err))
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultConfigUsesMockVendors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mock", cfg.Vendors.STT.Provider)
	assert.Equal(t, "mock", cfg.Vendors.TTS.Provider)
	assert.Equal(t, "mock", cfg.Vendors.LLM.Provider)
	assert.Empty(t, cfg.Vendors.Validator.Provider)
	assert.NoError(t, cfg.Validate())
}

func TestExampleConfigLoads(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-example")
	cfg, err := LoadConfig(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Vendors.Validator.Provider)
	assert.Equal(t, "sk-example", cfg.Vendors.LLM.Settings["api_key"])
	assert.Equal(t, "لا تشيل هم", cfg.PostProcess.Replacements["لا تقلق"])
}
