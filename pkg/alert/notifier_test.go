package alert

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubCreator struct {
	mu     sync.Mutex
	bodies []string
	to     []string
	fail   int
}

func (s *stubCreator) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return nil, errors.New("twilio down")
	}
	s.bodies = append(s.bodies, *params.Body)
	s.to = append(s.to, *params.To)
	sid := "SM123"
	return &api.ApiV2010Message{Sid: &sid}, nil
}

func (s *stubCreator) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

func crisisEvent(session string) metrics.MetricsEvent {
	return metrics.MetricsEvent{
		Name: metrics.EventCrisisDetected,
		Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Tags: map[string]string{metrics.TagSessionID: session, metrics.TagCategory: "SUICIDE"},
	}
}

func TestNotifierSendsOncePerCooldown(t *testing.T) {
	stub := &stubCreator{}
	events := metrics.NewMemoryObserver()
	n, err := newNotifier(Config{From: "+100", To: []string{"+200"}, Cooldown: time.Hour}, stub, events, nil)
	require.NoError(t, err)
	defer n.Close()

	n.RecordEvent(crisisEvent("s1"))
	n.RecordEvent(crisisEvent("s1"))
	n.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnDone})

	require.Eventually(t, func() bool { return len(stub.sent()) == 1 }, time.Second, 5*time.Millisecond)
	body := stub.sent()[0]
	assert.Contains(t, body, "s1")
	assert.Contains(t, body, "SUICIDE")
	require.Eventually(t, func() bool { return len(events.Named(metrics.EventAlertSent)) == 1 }, time.Second, 5*time.Millisecond)

	n.RecordEvent(crisisEvent("s2"))
	require.Eventually(t, func() bool { return len(stub.sent()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestNotifierCooldownExpires(t *testing.T) {
	stub := &stubCreator{}
	n, err := newNotifier(Config{From: "+100", To: []string{"+200"}, Cooldown: time.Minute}, stub, nil, nil)
	require.NoError(t, err)
	defer n.Close()

	now := time.Unix(1000, 0)
	n.now = func() time.Time { return now }
	_, ok := n.claim("s1")
	assert.True(t, ok)
	_, ok = n.claim("s1")
	assert.False(t, ok)
	_, ok = n.claim("s2")
	assert.True(t, ok)
	now = now.Add(2 * time.Minute)
	_, ok = n.claim("s1")
	assert.True(t, ok)
	assert.Equal(t, 1, n.tracked(), "expired s2 slot should be pruned")
}

type blockingCreator struct {
	entered chan struct{}
	unblock chan struct{}
}

func (b *blockingCreator) CreateMessage(*api.CreateMessageParams) (*api.ApiV2010Message, error) {
	b.entered <- struct{}{}
	<-b.unblock
	sid := "SM1"
	return &api.ApiV2010Message{Sid: &sid}, nil
}

func TestNotifierQueueFullReleasesCooldown(t *testing.T) {
	b := &blockingCreator{entered: make(chan struct{}, 8), unblock: make(chan struct{})}
	n, err := newNotifier(Config{From: "+100", To: []string{"+200"}, Cooldown: time.Hour, Buffer: 1}, b, nil, nil)
	require.NoError(t, err)
	defer n.Close()
	defer close(b.unblock)

	n.RecordEvent(crisisEvent("s1"))
	<-b.entered
	n.RecordEvent(crisisEvent("s2"))
	n.RecordEvent(crisisEvent("s3"))

	_, ok := n.claim("s3")
	assert.True(t, ok, "a dropped alert must not hold the cooldown")
	_, ok = n.claim("s2")
	assert.False(t, ok)
}

func TestNotifierRetriesThenReportsFailure(t *testing.T) {
	stub := &stubCreator{fail: 5}
	events := metrics.NewMemoryObserver()
	n, err := newNotifier(Config{From: "+100", To: []string{"+200"}, Retries: 1, Backoff: time.Millisecond}, stub, events, nil)
	require.NoError(t, err)
	defer n.Close()

	n.RecordEvent(crisisEvent("s1"))
	require.Eventually(t, func() bool { return len(events.Named(metrics.EventAlertFailed)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, stub.sent())
}

func TestMessageOmitsTranscript(t *testing.T) {
	got := Message("abc", "", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "Sakinah crisis alert: session abc flagged UNKNOWN at 2026-01-02T03:04:05Z. Please review.", got)
}

func TestNewNotifierValidation(t *testing.T) {
	_, err := NewNotifier(Config{}, nil, nil)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfigInvalid))

	_, err = newNotifier(Config{From: "+1"}, &stubCreator{}, nil, nil)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfigInvalid))
}
