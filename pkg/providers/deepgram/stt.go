package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/sakinah/pkg/adapters/stt"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey string
	Model  string
	// Encoding and SampleRate are only needed for raw PCM; containers such as
	// webm are detected by Deepgram.
	Encoding       string
	SampleRate     int
	UtteranceEndMS int
	// Settle is how long to wait for final results after the buffer is sent.
	Settle time.Duration
}

// Transcriber streams one buffered utterance through the live websocket API
// and joins the final transcripts.
type Transcriber struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.UtteranceEndMS <= 0 {
		cfg.UtteranceEndMS = 1000
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}
	return &Transcriber{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (s *Transcriber) Name() string { return "deepgram" }

func (s *Transcriber) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (stt.Transcript, error) {
	if s.cfg.APIKey == "" {
		return stt.Transcript{}, errorsx.New(errorsx.ReasonConfigInvalid, "deepgram: missing api key")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       opts.Language,
		InterimResults: false,
		VadEvents:      true,
		SmartFormat:    true,
		UtteranceEndMs: fmt.Sprintf("%d", s.cfg.UtteranceEndMS),
	}
	if s.cfg.Encoding != "" {
		transcriptOptions.Encoding = s.cfg.Encoding
		transcriptOptions.SampleRate = s.cfg.SampleRate
	}

	cb := newCollector(s.logger)
	dgClient, err := client.NewWSUsingCallback(ctx, s.cfg.APIKey, &interfaces.ClientOptions{EnableKeepAlive: true}, transcriptOptions, cb)
	if err != nil {
		return stt.Transcript{}, errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}
	if connected := dgClient.Connect(); !connected {
		return stt.Transcript{}, errorsx.New(errorsx.ReasonSTTTranscribe, "deepgram: connection failed")
	}
	defer dgClient.Stop()

	start := time.Now()
	streamErr := make(chan error, 1)
	go func() { streamErr <- dgClient.Stream(bytes.NewReader(audio)) }()

	settle := time.NewTimer(s.cfg.Settle)
	defer settle.Stop()
	select {
	case <-cb.done:
	case err := <-streamErr:
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("deepgram_stream_error", slog.String("error", err.Error()))
		}
		select {
		case <-cb.done:
		case <-settle.C:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil && cb.text() == "" {
		return stt.Transcript{}, errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}
	if err := cb.failure(); err != nil && cb.text() == "" {
		return stt.Transcript{}, err
	}
	return stt.Transcript{
		Text:       cb.text(),
		Language:   opts.Language,
		Confidence: cb.confidence(),
		Duration:   time.Since(start),
	}, nil
}

// collector implements the live message callback for a single utterance.
type collector struct {
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	finals   []string
	confSum  float64
	confSeen int
	err      error
}

func newCollector(logger *slog.Logger) *collector {
	return &collector{logger: logger, done: make(chan struct{})}
}

func (c *collector) finish() { c.once.Do(func() { close(c.done) }) }

func (c *collector) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(strings.Join(c.finals, " "))
}

func (c *collector) confidence() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confSeen == 0 {
		return 0
	}
	return c.confSum / float64(c.confSeen)
}

func (c *collector) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *collector) Open(*msginterfaces.OpenResponse) error {
	c.logger.Debug("deepgram_connection_opened")
	return nil
}

func (c *collector) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if mr.IsFinal {
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			c.mu.Lock()
			c.finals = append(c.finals, t)
			c.confSum += alt.Confidence
			c.confSeen++
			c.mu.Unlock()
		}
	}
	if mr.SpeechFinal {
		c.finish()
	}
	return nil
}

func (c *collector) Metadata(md *msginterfaces.MetadataResponse) error {
	c.logger.Debug("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	return nil
}

func (c *collector) SpeechStarted(*msginterfaces.SpeechStartedResponse) error { return nil }

func (c *collector) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	c.finish()
	return nil
}

func (c *collector) Close(*msginterfaces.CloseResponse) error {
	c.finish()
	return nil
}

func (c *collector) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	c.mu.Lock()
	c.err = errorsx.New(errorsx.ReasonSTTTranscribe, "deepgram: %s: %s", er.ErrCode, er.ErrMsg)
	c.mu.Unlock()
	c.finish()
	return nil
}

func (c *collector) UnhandledEvent(byData []byte) error {
	c.logger.Debug("deepgram_unhandled_event", slog.Int("size_bytes", len(byData)))
	return nil
}

var (
	_ stt.Transcriber                   = (*Transcriber)(nil)
	_ msginterfaces.LiveMessageCallback = (*collector)(nil)
)
