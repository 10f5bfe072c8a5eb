package session

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAverages(t *testing.T) {
	s := New("s1", Preferences{}, 0)
	snap := s.Snapshot(15 * time.Second)
	assert.Zero(t, snap.TurnCount)
	assert.True(t, snap.TargetMet)

	s.RecordTurn(2*time.Second, false)
	s.RecordTurn(4*time.Second, true)

	snap = s.Snapshot(15 * time.Second)
	assert.Equal(t, 2, snap.TurnCount)
	assert.Equal(t, 1, snap.CrisisCount)
	assert.Equal(t, 3*time.Second, snap.AverageLatency)
	assert.Equal(t, int64(3000), snap.AverageMS)
	assert.Equal(t, int64(4000), snap.LastMS)
	assert.True(t, snap.TargetMet)

	assert.False(t, s.Snapshot(3*time.Second).TargetMet)
}

func TestResetClearsCountersAndContext(t *testing.T) {
	s := New("s1", Preferences{Language: "ar", Voice: "male"}, 2)
	s.RecordTurn(time.Second, true)
	s.AppendExchange("hi", "hello")

	s.Reset()

	assert.Equal(t, Stats{}, s.Stats())
	assert.Empty(t, s.History())
	assert.Equal(t, Preferences{Language: "ar", Voice: "male"}, s.Preferences())
}

func TestContextWindowEvictsOldest(t *testing.T) {
	s := New("s1", Preferences{}, 2)
	s.AppendExchange("u1", "a1")
	s.AppendExchange("u2", "a2")
	s.AppendExchange("u3", "a3")

	h := s.History()
	require.Len(t, h, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "u2"}, h[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "a3"}, h[3])

	h[0].Content = "mutated"
	assert.Equal(t, "u2", s.History()[0].Content)
}

func TestUpdatePreferencesKeepsUnsetFields(t *testing.T) {
	s := New("s1", Preferences{Language: "ar", Voice: "female"}, 0)
	got := s.UpdatePreferences(Preferences{Voice: "male"})
	assert.Equal(t, Preferences{Language: "ar", Voice: "male"}, got)
}

func TestBeginTurnSerialises(t *testing.T) {
	s := New("s1", Preferences{}, 0)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := s.BeginTurn()
			defer release()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestRegistryLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := NewRegistry(RegistryConfig{Budget: 15 * time.Second, Defaults: Preferences{Language: "ar", Voice: "female"}, Logger: logger})

	a, err := r.Create(Preferences{Voice: "male"})
	require.NoError(t, err)
	b, err := r.Create(Preferences{})
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, Preferences{Language: "ar", Voice: "male"}, a.Preferences())

	a.RecordTurn(time.Second, false)
	assert.Zero(t, b.Stats().TurnCount)

	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	snap, ok := r.End(a.ID())
	require.True(t, ok)
	assert.Equal(t, 1, snap.TurnCount)
	_, ok = r.Get(a.ID())
	assert.False(t, ok)
	_, ok = r.End(a.ID())
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "session_ended")

	r.Close()
	assert.Zero(t, r.Len())
}

func TestRegistryDraining(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	s, err := r.Create(Preferences{})
	require.NoError(t, err)

	r.SetDraining(true)
	assert.True(t, r.Draining())
	_, err = r.Create(Preferences{})
	assert.ErrorIs(t, err, ErrDraining)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, r.WaitForEmpty(ctx, time.Millisecond))

	r.End(s.ID())
	assert.True(t, r.WaitForEmpty(context.Background(), time.Millisecond))
}
