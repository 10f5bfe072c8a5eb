package sakinah

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/orchestrator"
	"github.com/harunnryd/sakinah/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { runner.BannerOutput = nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.DrainTimeoutMS = 500
	cfg.Vendors.LLM.Settings = map[string]any{"response_text": "الله يعينك، خبرني أكثر عن اللي تحس فيه"}
	cfg.Vendors.Validator = VendorConfig{
		Provider: "mock",
		Settings: map[string]any{"response_text": `{"verdict":"pass"}`},
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), EngineOptions{Config: cfg})
	require.NoError(t, err)
	return e
}

func TestEngineAskRunsFullTurn(t *testing.T) {
	e := newTestEngine(t, testConfig())
	defer e.Close()

	tr, err := e.Ask(context.Background(), "حاس بضيق اليوم")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.VerdictPass, tr.Verdict)
	assert.False(t, tr.Crisis.Flag)
	assert.Contains(t, tr.FinalText, "الله يعينك")
	assert.Zero(t, e.Sessions().Len(), "ask sessions are ended")
}

func TestEngineAskCrisisAppendsEmergencyBlock(t *testing.T) {
	e := newTestEngine(t, testConfig())
	defer e.Close()

	tr, err := e.Ask(context.Background(), "أبغى أنتحر")
	require.NoError(t, err)
	assert.True(t, tr.Crisis.Flag)
	assert.Equal(t, crisis.CategorySuicide, tr.Crisis.Category)
	assert.Contains(t, tr.FinalText, "9999")
	assert.Contains(t, tr.FinalText, "24673000")
}

func TestEngineWithoutValidatorOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Vendors.Validator = VendorConfig{}
	e := newTestEngine(t, cfg)
	defer e.Close()

	tr, err := e.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.VerdictOverride, tr.Verdict)
	assert.NotEmpty(t, tr.FinalText)
}

func TestEngineUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Vendors.LLM.Provider = "carrier-pigeon"
	_, err := NewEngine(context.Background(), EngineOptions{Config: cfg})
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonProviderUnknown))
}

func TestEngineHandlerServesHealthAndMetrics(t *testing.T) {
	e := newTestEngine(t, testConfig())
	defer e.Close()
	_, err := e.Ask(context.Background(), "مرحبا")
	require.NoError(t, err)

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEngineEventLogFile(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.EventLog = t.TempDir() + "/events.jsonl"
	e := newTestEngine(t, cfg)
	_, err := e.Ask(context.Background(), "أبغى أنتحر")
	require.NoError(t, err)
	e.Close()
}

func TestEngineRunAndStop(t *testing.T) {
	e := newTestEngine(t, testConfig())

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	require.Eventually(t, func() bool { return e.State() == runner.StateRunning }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Stop())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, runner.StateStopped, e.State())
	assert.True(t, e.Sessions().Draining())
}

func TestProviderRegistryNames(t *testing.T) {
	r := DefaultProviders()
	assert.Equal(t, []string{"anthropic", "gemini", "mock", "openai"}, r.LLMNames())
	assert.True(t, strings.Contains(strings.Join(r.TTSNames(), ","), "azure"))
	assert.Contains(t, r.STTNames(), "deepgram")
}
