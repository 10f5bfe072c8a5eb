package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/metrics"
	"github.com/harunnryd/sakinah/pkg/resilience"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio REST API the notifier needs.
type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	// To lists the on-call numbers. Each gets its own message.
	To       []string
	Cooldown time.Duration
	Retries  int
	Backoff  time.Duration
	Buffer   int
	Timeout  time.Duration
}

type job struct {
	sessionID string
	category  string
	at        time.Time
}

// Notifier texts on-call counsellors when a crisis is detected. It observes
// crisis_detected events and sends at most one alert per session per cooldown.
// Messages carry the session id and category only.
type Notifier struct {
	cfg    Config
	client messageCreator
	retry  resilience.RetryPolicy
	events metrics.Observer
	log    *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time

	jobs chan job
	done chan struct{}
	once sync.Once
}

func NewNotifier(cfg Config, events metrics.Observer, logger *slog.Logger) (*Notifier, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errorsx.New(errorsx.ReasonConfigInvalid, "alert: missing twilio credentials")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newNotifier(cfg, rest.Api, events, logger)
}

func newNotifier(cfg Config, client messageCreator, events metrics.Observer, logger *slog.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.From) == "" || len(cfg.To) == 0 {
		return nil, errorsx.New(errorsx.ReasonConfigInvalid, "alert: from and to numbers are required")
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Minute
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	n := &Notifier{
		cfg:      cfg,
		client:   client,
		retry:    resilience.NewRetryPolicy(cfg.Retries, cfg.Backoff),
		events:   events,
		log:      logging.NewComponentLogger(logger, "alert"),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
		jobs:     make(chan job, cfg.Buffer),
		done:     make(chan struct{}),
	}
	go n.loop()
	return n, nil
}

// RecordEvent implements metrics.Observer.
func (n *Notifier) RecordEvent(ev metrics.MetricsEvent) {
	if ev.Name != metrics.EventCrisisDetected {
		return
	}
	sessionID := ev.Tags[metrics.TagSessionID]
	claimed, ok := n.claim(sessionID)
	if !ok {
		n.log.Debug("alert_suppressed", "session_id", sessionID)
		return
	}
	select {
	case <-n.done:
	case n.jobs <- job{sessionID: sessionID, category: ev.Tags[metrics.TagCategory], at: ev.Time}:
	default:
		n.release(sessionID, claimed)
		n.log.Warn("alert_queue_full", "session_id", sessionID)
	}
}

// claim reserves the alert slot for a session if its cooldown has passed.
// Expired slots of other sessions are pruned on the way.
func (n *Notifier) claim(sessionID string) (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for id, last := range n.lastSent {
		if now.Sub(last) >= n.cfg.Cooldown {
			delete(n.lastSent, id)
		}
	}
	if _, ok := n.lastSent[sessionID]; ok {
		return time.Time{}, false
	}
	n.lastSent[sessionID] = now
	return now, true
}

// release gives back a slot whose alert never made it onto the queue.
func (n *Notifier) release(sessionID string, claimed time.Time) {
	n.mu.Lock()
	if last, ok := n.lastSent[sessionID]; ok && last.Equal(claimed) {
		delete(n.lastSent, sessionID)
	}
	n.mu.Unlock()
}

func (n *Notifier) tracked() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.lastSent)
}

func (n *Notifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case j := <-n.jobs:
			n.send(j)
		}
	}
}

func (n *Notifier) send(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	body := Message(j.sessionID, j.category, j.at)
	tags := map[string]string{metrics.TagSessionID: j.sessionID, metrics.TagCategory: j.category}
	for _, to := range n.cfg.To {
		err := n.retry.Do(ctx, func(context.Context) error {
			return n.create(to, body)
		})
		if err != nil {
			n.log.Error("alert_failed", "session_id", j.sessionID, "error", err)
			metrics.Emit(n.events, metrics.MetricsEvent{Name: metrics.EventAlertFailed, Tags: tags})
			continue
		}
		n.log.Info("alert_sent", "session_id", j.sessionID, "category", j.category)
		metrics.Emit(n.events, metrics.MetricsEvent{Name: metrics.EventAlertSent, Tags: tags})
	}
}

func (n *Notifier) create(to, body string) error {
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.cfg.From)
	params.SetBody(body)
	resp, err := n.client.CreateMessage(params)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonAlertSend)
	}
	if resp == nil || resp.Sid == nil {
		return errorsx.New(errorsx.ReasonAlertSend, "alert: missing message sid")
	}
	return nil
}

// Message renders the SMS body. It never includes what the user said.
func Message(sessionID, category string, at time.Time) string {
	if category == "" {
		category = "UNKNOWN"
	}
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("Sakinah crisis alert: session %s flagged %s at %s. Please review.",
		sessionID, category, at.UTC().Format(time.RFC3339))
}

// Close stops the worker. Queued alerts that were not yet picked up are dropped.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.done) })
}
