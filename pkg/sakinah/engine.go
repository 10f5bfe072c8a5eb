package sakinah

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/alert"
	"github.com/harunnryd/sakinah/pkg/configutil"
	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/metrics"
	"github.com/harunnryd/sakinah/pkg/observers"
	"github.com/harunnryd/sakinah/pkg/orchestrator"
	"github.com/harunnryd/sakinah/pkg/pipeline"
	"github.com/harunnryd/sakinah/pkg/postprocess"
	"github.com/harunnryd/sakinah/pkg/prompt"
	"github.com/harunnryd/sakinah/pkg/redact"
	"github.com/harunnryd/sakinah/pkg/resilience"
	"github.com/harunnryd/sakinah/pkg/runner"
	"github.com/harunnryd/sakinah/pkg/script"
	"github.com/harunnryd/sakinah/pkg/session"
	"github.com/harunnryd/sakinah/pkg/transports"
	"github.com/harunnryd/sakinah/pkg/transports/web"
	"github.com/harunnryd/sakinah/pkg/turn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Logger    *slog.Logger
	// Transport overrides the built-in web server.
	Transport transports.Transport
}

// Engine owns every long-lived component of the assistant process.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	providers *ProviderRegistry
	pipeline  *pipeline.Pipeline
	sessions  *session.Registry
	web       *web.Server
	transport transports.Transport
	runner    *runner.LifecycleRunner
	asyncObs  *metrics.AsyncObserver
	notifier  *alert.Notifier
	flushers  []metrics.Flusher
	closers   []io.Closer
}

func NewEngine(ctx context.Context, opts EngineOptions) (_ *Engine, err error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders()
	}

	contacts := postprocess.Contacts{
		Police:              cfg.PostProcess.Contacts.Police,
		MentalHealthHotline: cfg.PostProcess.Contacts.MentalHealthHotline,
		MinistryOfHealth:    cfg.PostProcess.Contacts.MinistryOfHealth,
	}
	post := postprocess.NewProcessor(postprocess.Config{
		Contacts:     contacts,
		MaxSentences: cfg.PostProcess.MaxSentences,
		Replacements: cfg.PostProcess.Replacements,
	})
	redact.SetEnabled(cfg.Privacy.RedactPII)
	redact.Allow(post.Contacts().Numbers()...)

	logger.Info("sakinah_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"validator_provider", cfg.Vendors.Validator.Provider,
		"stt_provider", cfg.Vendors.STT.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"validation_policy", cfg.Orchestrator.ValidationPolicy,
		"crisis_detection", cfg.Assistant.EnableCrisisDetection,
	)

	for name, v := range map[string]VendorConfig{
		"stt": cfg.Vendors.STT, "tts": cfg.Vendors.TTS, "llm": cfg.Vendors.LLM, "validator": cfg.Vendors.Validator,
	} {
		if v.Provider != "" {
			logger.Debug("vendor_settings", "vendor", name, "provider", v.Provider,
				"settings", configutil.Masked(v.Settings, secretSchema))
		}
	}

	e := &Engine{cfg: cfg, logger: logger, providers: providers}

	budget := cfg.MaxResponseTime()
	multi := observers.NewMultiObserver(
		observers.NewLatencyObserver(logger, budget),
		observers.NewLoggerObserver(logger),
	)
	var metricsHandler http.Handler
	if cfg.Observability.Prometheus {
		reg := prometheus.NewRegistry()
		multi.Add(metrics.NewPrometheusObserver(reg))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if w, err := e.openEventLog(cfg.Observability.EventLog); err != nil {
		return nil, err
	} else if w != nil {
		jsonl := metrics.NewJSONLObserver(w)
		e.flushers = append(e.flushers, jsonl)
		var obs metrics.Observer = jsonl
		if cfg.Observability.SampleRate < 1 {
			obs = metrics.NewSamplingObserver(obs, cfg.Observability.SampleRate,
				metrics.EventCrisisDetected, metrics.EventLatencyExceeded, metrics.EventAlertFailed)
		}
		multi.Add(obs)
	}
	e.asyncObs = metrics.NewAsyncObserver(multi, 2048)
	defer func() {
		if err != nil {
			e.release()
		}
	}()

	if cfg.Alerts.Enabled {
		n, err := alert.NewNotifier(alert.Config{
			AccountSID: cfg.Alerts.AccountSID,
			AuthToken:  cfg.Alerts.AuthToken,
			From:       cfg.Alerts.From,
			To:         cfg.Alerts.To,
			Cooldown:   time.Duration(cfg.Alerts.CooldownMS) * time.Millisecond,
			Retries:    cfg.Alerts.Retries,
			Backoff:    time.Duration(cfg.Alerts.BackoffMS) * time.Millisecond,
		}, e.asyncObs, logger)
		if err != nil {
			return nil, err
		}
		e.notifier = n
		multi.Add(n)
	}

	orch, err := e.buildOrchestrator(ctx)
	if err != nil {
		return nil, err
	}
	sttProvider, err := providers.BuildSTT(ctx, cfg.Vendors.STT)
	if err != nil {
		return nil, err
	}
	ttsProvider, err := providers.BuildTTS(ctx, cfg.Vendors.TTS)
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(prompt.Profile{
		Persona:             cfg.Assistant.Persona,
		CulturalContext:     cfg.Assistant.CulturalContext,
		TherapeuticApproach: cfg.Assistant.TherapeuticApproach,
		Tone:                cfg.Assistant.Tone,
		PrimaryLanguage:     cfg.Assistant.PrimaryLanguage,
		FallbackLanguage:    cfg.Assistant.FallbackLanguage,
		MaxWords:            cfg.Assistant.MaxWords,
	}, prompt.OmaniPhrases)
	detector := script.NewDetector(cfg.Assistant.PrimaryLanguage)
	v := cfg.TTS.Voices

	e.pipeline, err = pipeline.New(pipeline.Config{
		MinAudioBytes:          cfg.STT.MinAudioBytes,
		DefaultLanguage:        cfg.STT.Language,
		RetryLanguage:          cfg.STT.RetryLanguage,
		AudioFormat:            cfg.STT.AudioFormat,
		STTTimeout:             time.Duration(cfg.STT.TimeoutMS) * time.Millisecond,
		TTSTimeout:             time.Duration(cfg.TTS.TimeoutMS) * time.Millisecond,
		MaxResponseTime:        budget,
		DisableCrisisDetection: !cfg.Assistant.EnableCrisisDetection,
		LogTranscripts:         cfg.Privacy.LogTranscripts,
		Voices: pipeline.VoiceConfig{
			Female:        v.Female,
			Male:          v.Male,
			EnglishFemale: v.EnglishFemale,
			EnglishMale:   v.EnglishMale,
			Default:       v.Default,
			Rate:          v.Rate,
			CrisisStyle:   v.CrisisStyle,
			CrisisRate:    v.CrisisRate,
		},
	}, pipeline.Deps{
		STT:          sttProvider,
		TTS:          ttsProvider,
		Orchestrator: orch,
		Builder:      builder,
		Matcher:      crisis.NewMatcher(crisis.DefaultLexicon()),
		Detector:     &detector,
		Post:         post,
		Observer:     e.asyncObs,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	e.sessions = session.NewRegistry(session.RegistryConfig{
		Window:   cfg.Context.Window,
		Budget:   budget,
		Defaults: session.Preferences{Language: cfg.STT.Language, Voice: v.Default},
		Logger:   logger,
	})
	e.web = web.New(web.Config{
		Addr:           cfg.Server.Addr,
		AllowAnyOrigin: cfg.Server.AllowAnyOrigin,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxAudioBytes:  cfg.Server.MaxAudioBytes,
		TurnTimeout:    time.Duration(cfg.Server.TurnTimeoutMS) * time.Millisecond,
		Budget:         budget,
	}, e.pipeline, e.sessions, metricsHandler, logger)
	e.transport = opts.Transport
	if e.transport == nil {
		e.transport = e.web
	}

	e.runner = runner.NewLifecycleRunner(runner.DrainerFunc(e.drain), runner.Hooks{
		OnStart: e.onStart,
		OnStop:  e.onStop,
	}, time.Duration(cfg.Server.DrainTimeoutMS)*time.Millisecond+5*time.Second).WithLogger(logger)
	return e, nil
}

func (e *Engine) buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg := e.cfg
	primary, err := e.providers.BuildLLM(ctx, cfg.Vendors.LLM)
	if err != nil {
		return nil, err
	}
	primary = e.guard(primary)

	var validator orchestrator.Validator
	if strings.TrimSpace(cfg.Vendors.Validator.Provider) != "" {
		gen, err := e.providers.BuildLLM(ctx, cfg.Vendors.Validator)
		if err != nil {
			return nil, err
		}
		validator = orchestrator.NewLLMValidator(e.guard(gen), cfg.Orchestrator.ValidationMaxTokens, 0)
	} else {
		e.logger.Warn("validation_disabled", "reason", "vendors.validator.provider is empty")
	}
	return orchestrator.New(primary, validator, orchestrator.Config{
		PrimaryTimeout:    time.Duration(cfg.Orchestrator.PrimaryTimeoutMS) * time.Millisecond,
		ValidationTimeout: time.Duration(cfg.Orchestrator.ValidationTimeoutMS) * time.Millisecond,
		MaxTokens:         cfg.Orchestrator.MaxTokens,
		Temperature:       cfg.Orchestrator.Temperature,
		Policy:            orchestrator.ParsePolicy(cfg.Orchestrator.ValidationPolicy),
	}), nil
}

// guard wraps a generator in a circuit breaker that reports to the observers.
func (e *Engine) guard(gen llm.Generator) llm.Generator {
	r := e.cfg.Resilience
	cb := resilience.NewCircuitBreaker(r.BreakerThreshold, time.Duration(r.BreakerCooldownMS)*time.Millisecond)
	if r.TripOnAnyError {
		cb.WithTrip(resilience.AnyError)
	}
	wrapped := llm.NewCircuitBreakerAdapter(gen, cb)
	wrapped.SetObserver(e.asyncObs)
	return wrapped
}

func (e *Engine) openEventLog(path string) (io.Writer, error) {
	switch strings.TrimSpace(path) {
	case "":
		return nil, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfigInvalid)
	}
	e.closers = append(e.closers, f)
	return f, nil
}

func (e *Engine) onStart() {
	fields := []any{"message", "Sakinah ready"}
	if rr, ok := e.transport.(transports.ReadyReporter); ok {
		for k, v := range rr.ReadyFields() {
			fields = append(fields, k, v)
		}
	}
	e.logger.Info("engine_ready", fields...)
}

func (e *Engine) onStop() {
	e.release()
	e.logger.Info("shutdown",
		"goroutines", runtime.NumGoroutine(),
		"active_sessions", e.sessions.Len(),
		"events_dropped", e.asyncObs.Dropped(),
	)
}

// release flushes queued events before stopping the alert worker.
func (e *Engine) release() {
	e.asyncObs.Close()
	for _, f := range e.flushers {
		if err := f.Flush(); err != nil {
			e.logger.Warn("event_log_flush_failed", "error", err.Error())
		}
	}
	if e.notifier != nil {
		e.notifier.Close()
	}
	for _, c := range e.closers {
		_ = c.Close()
	}
}

func (e *Engine) drain() error {
	e.sessions.SetDraining(true)
	if e.transport != nil {
		_ = e.transport.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.cfg.Server.DrainTimeoutMS)*time.Millisecond)
	defer cancel()
	if !e.sessions.WaitForEmpty(ctx, 200*time.Millisecond) {
		e.logger.Warn("drain_incomplete", "active_sessions", e.sessions.Len())
		if n := e.web.CloseClients(); n > 0 {
			e.logger.Info("websockets_closed", "count", n)
		}
	}
	e.sessions.Close()
	return nil
}

// Run starts the transport and blocks until ctx is cancelled, then drains.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	return e.runner.Run(ctx)
}

func (e *Engine) Stop() error {
	return e.runner.Stop()
}

// Ask runs one text turn in a throwaway session.
func (e *Engine) Ask(ctx context.Context, text string) (*turn.Turn, error) {
	return e.oneShot(func(sess *session.Session) (*turn.Turn, error) {
		return e.pipeline.HandleText(ctx, sess, text)
	})
}

// AskAudio runs one voice turn in a throwaway session.
func (e *Engine) AskAudio(ctx context.Context, audio []byte) (*turn.Turn, error) {
	return e.oneShot(func(sess *session.Session) (*turn.Turn, error) {
		return e.pipeline.HandleAudio(ctx, sess, audio)
	})
}

func (e *Engine) oneShot(run func(*session.Session) (*turn.Turn, error)) (*turn.Turn, error) {
	sess, err := e.sessions.Create(session.Preferences{})
	if err != nil {
		return nil, err
	}
	defer e.sessions.End(sess.ID())
	return run(sess)
}

// Close releases observers without running the lifecycle, for one-shot commands.
func (e *Engine) Close() {
	e.onStop()
}

func (e *Engine) Handler() http.Handler         { return e.web.Router() }
func (e *Engine) Pipeline() *pipeline.Pipeline  { return e.pipeline }
func (e *Engine) Sessions() *session.Registry   { return e.sessions }
func (e *Engine) Providers() *ProviderRegistry  { return e.providers }
func (e *Engine) Config() Config                { return e.cfg }
func (e *Engine) Logger() *slog.Logger          { return logging.NewComponentLogger(e.logger, "engine") }

func (e *Engine) State() runner.State { return e.runner.State() }
