package deepgram

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/harunnryd/sakinah/pkg/adapters/stt"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, raw string) *msginterfaces.MessageResponse {
	t.Helper()
	var mr msginterfaces.MessageResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &mr))
	return &mr
}

func TestCollectorJoinsFinalTranscripts(t *testing.T) {
	c := newCollector(slog.Default())

	require.NoError(t, c.Message(message(t, `{"is_final":false,"channel":{"alternatives":[{"transcript":"أنا","confidence":0.5}]}}`)))
	require.NoError(t, c.Message(message(t, `{"is_final":true,"channel":{"alternatives":[{"transcript":"أنا متضايق","confidence":0.9}]}}`)))
	require.NoError(t, c.Message(message(t, `{"is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"اليوم","confidence":0.7}]}}`)))

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("speech_final should finish the collector")
	}
	assert.Equal(t, "أنا متضايق اليوم", c.text())
	assert.InDelta(t, 0.8, c.confidence(), 0.0001)
}

func TestCollectorEmptyAndErrors(t *testing.T) {
	c := newCollector(slog.Default())
	require.NoError(t, c.Message(message(t, `{"is_final":true,"channel":{"alternatives":[]}}`)))
	assert.Equal(t, "", c.text())
	assert.Zero(t, c.confidence())

	require.NoError(t, c.Error(&msginterfaces.ErrorResponse{ErrCode: "401", ErrMsg: "bad key"}))
	assert.True(t, errorsx.HasReason(c.failure(), errorsx.ReasonSTTTranscribe))
	require.NoError(t, c.UtteranceEnd(&msginterfaces.UtteranceEndResponse{}))
}

func TestTranscribeRequiresKey(t *testing.T) {
	_, err := New(Config{}).Transcribe(context.Background(), []byte("x"), stt.Options{Language: "ar"})
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfigInvalid))
}
