package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAskWithMockDefaults(t *testing.T) {
	out, err := run(t, "ask", "--json", "--log-level", "error", "أبغى", "أنتحر")
	require.NoError(t, err)

	var got askOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.CrisisDetected)
	assert.Equal(t, "SUICIDE", got.CrisisCategory)
	assert.Equal(t, "ARABIC", got.Script)
	assert.Contains(t, got.Response, "9999")
	assert.Positive(t, got.AudioBytes)
}

func TestAskWritesAudio(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "reply.mp3")
	_, err := run(t, "ask", "--log-level", "error", "--audio-out", dst, "hello")
	require.NoError(t, err)
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestAskRequiresInput(t *testing.T) {
	_, err := run(t, "ask")
	require.Error(t, err)
}

func TestExplicitMissingConfigFails(t *testing.T) {
	_, err := run(t, "ask", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "hi")
	require.Error(t, err)
}

func TestProvidersAndVersion(t *testing.T) {
	out, err := run(t, "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "anthropic")
	assert.Contains(t, out, "azure")

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sakinah dev")
}
