package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/adapters/stt"
	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/metrics"
	"github.com/harunnryd/sakinah/pkg/orchestrator"
	"github.com/harunnryd/sakinah/pkg/postprocess"
	"github.com/harunnryd/sakinah/pkg/prompt"
	"github.com/harunnryd/sakinah/pkg/redact"
	"github.com/harunnryd/sakinah/pkg/script"
	"github.com/harunnryd/sakinah/pkg/session"
	"github.com/harunnryd/sakinah/pkg/turn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sakinah.pkg.pipeline")

// ErrNoSpeech means the input carried nothing to answer. No provider is
// called after it is detected.
var ErrNoSpeech = errorsx.New(errorsx.ReasonNoSpeech, "no speech detected")

// Deps are the collaborators of a pipeline. STT is only needed for voice
// turns; a nil TTS produces text-only replies.
type Deps struct {
	STT          stt.Transcriber
	TTS          tts.Synthesizer
	Orchestrator *orchestrator.Orchestrator
	Builder      *prompt.Builder
	Matcher      *crisis.Matcher
	Detector     *script.Detector
	Post         *postprocess.Processor
	Observer     metrics.Observer
	Logger       *slog.Logger
}

// Pipeline sequences one conversation turn:
// detect, match, build, orchestrate, post-process, synthesize.
type Pipeline struct {
	cfg      Config
	stt      stt.Transcriber
	tts      tts.Synthesizer
	orch     *orchestrator.Orchestrator
	builder  *prompt.Builder
	matcher  *crisis.Matcher
	detector script.Detector
	post     *postprocess.Processor
	obs      metrics.Observer
	logger   *slog.Logger
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Orchestrator == nil {
		return nil, errorsx.New(errorsx.ReasonConfigInvalid, "pipeline: orchestrator is required")
	}
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:     cfg,
		stt:     deps.STT,
		tts:     deps.TTS,
		orch:    deps.Orchestrator,
		builder: deps.Builder,
		matcher: deps.Matcher,
		post:    deps.Post,
		obs:     deps.Observer,
		logger:  logging.NewComponentLogger(deps.Logger, "pipeline"),
	}
	if p.builder == nil {
		p.builder = prompt.NewBuilder(prompt.DefaultProfile(), prompt.OmaniPhrases)
	}
	if p.matcher == nil {
		p.matcher = crisis.NewMatcher(crisis.DefaultLexicon())
	}
	if deps.Detector != nil {
		p.detector = *deps.Detector
	} else {
		p.detector = script.NewDetector(p.builder.Profile().PrimaryLanguage)
	}
	if p.post == nil {
		p.post = postprocess.NewProcessor(postprocess.Config{})
	}
	if p.obs == nil {
		p.obs = metrics.NoopObserver{}
	}
	return p, nil
}

// HandleAudio runs a voice turn. Buffers under MinAudioBytes and empty
// transcripts return ErrNoSpeech without reaching any generation provider.
func (p *Pipeline) HandleAudio(ctx context.Context, sess *session.Session, audio []byte, listeners ...turn.StateListener) (*turn.Turn, error) {
	release := sess.BeginTurn()
	defer release()

	t := turn.New(sess.ID(), turn.KindVoice)
	m := turn.NewMachine(t.ID, listeners...)
	p.emit(t, metrics.EventTurnStarted, nil, 0)

	if len(audio) < p.cfg.MinAudioBytes {
		p.noSpeech(t, "short_buffer")
		return t, ErrNoSpeech
	}
	if p.stt == nil {
		return t, errorsx.New(errorsx.ReasonConfigInvalid, "pipeline: no STT provider configured")
	}

	_ = m.Transition(turn.StateTranscribing, "audio received")
	text, lang, err := p.transcribe(ctx, sess, t, audio)
	if err != nil {
		m.Finish("stt failed")
		return t, err
	}
	if text == "" {
		m.Finish("no speech")
		p.noSpeech(t, "empty_transcript")
		return t, ErrNoSpeech
	}
	t.RawText = text
	t.Language = lang
	p.respond(ctx, sess, t, m)
	return t, nil
}

// HandleText runs a typed turn, starting directly at the thinking stage.
func (p *Pipeline) HandleText(ctx context.Context, sess *session.Session, text string, listeners ...turn.StateListener) (*turn.Turn, error) {
	release := sess.BeginTurn()
	defer release()

	t := turn.New(sess.ID(), turn.KindText)
	m := turn.NewMachine(t.ID, listeners...)
	p.emit(t, metrics.EventTurnStarted, nil, 0)

	text = strings.TrimSpace(text)
	if text == "" {
		p.noSpeech(t, "empty_text")
		return t, ErrNoSpeech
	}
	t.RawText = text
	p.respond(ctx, sess, t, m)
	return t, nil
}

func (p *Pipeline) transcribe(ctx context.Context, sess *session.Session, t *turn.Turn, audio []byte) (string, string, error) {
	lang := sess.Preferences().Language
	if lang == "" {
		lang = p.cfg.DefaultLanguage
	}
	start := time.Now()
	text, err := p.callSTT(ctx, audio, lang)
	if err == nil && text == "" && p.cfg.RetryLanguage != "" && p.cfg.RetryLanguage != lang {
		p.logger.Info("stt_empty_retrying",
			slog.String("session_id", t.SessionID),
			slog.String("turn_id", t.ID),
			slog.String("language", lang),
			slog.String("retry_language", p.cfg.RetryLanguage),
		)
		lang = p.cfg.RetryLanguage
		text, err = p.callSTT(ctx, audio, lang)
	}
	t.Latency.STT = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	} else if text == "" {
		status = "empty"
	}
	p.emit(t, metrics.EventSTTDone, map[string]string{
		metrics.TagStage:    "stt",
		metrics.TagStatus:   status,
		metrics.TagProvider: p.stt.Name(),
	}, t.Latency.STT)

	if err != nil {
		p.logger.Error("stt_failed",
			slog.String("session_id", t.SessionID),
			slog.String("turn_id", t.ID),
			slog.String("provider", p.stt.Name()),
			slog.String("reason", string(errorsx.Reason(err))),
			slog.String("error", err.Error()),
		)
		return "", lang, errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}
	return text, lang, nil
}

func (p *Pipeline) callSTT(ctx context.Context, audio []byte, lang string) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.STTTimeout)
	defer cancel()
	tr, err := p.stt.Transcribe(ctx, audio, stt.Options{Language: lang, Format: p.cfg.AudioFormat})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tr.Text), nil
}

// respond is the shared core of voice and text turns. It never fails: the
// orchestrator always yields text and a TTS failure degrades to text only.
func (p *Pipeline) respond(ctx context.Context, sess *session.Session, t *turn.Turn, m *turn.Machine) {
	ctx, span := tracer.Start(ctx, "pipeline.turn", trace.WithAttributes(
		attribute.String("sakinah.session_id", sess.ID()),
		attribute.String("sakinah.turn_id", t.ID),
		attribute.String("sakinah.turn_kind", string(t.Kind)),
	))
	defer span.End()

	_ = m.Transition(turn.StateThinking, "transcript ready")

	t.Script = p.detector.Detect(t.RawText)
	if !p.cfg.DisableCrisisDetection {
		t.Crisis = p.matcher.Match(ctx, t.RawText, t.Script)
	}
	if t.Crisis.Flag {
		p.emit(t, metrics.EventCrisisDetected, map[string]string{metrics.TagCategory: string(t.Crisis.Category)}, 0)
		p.logger.Warn("crisis_detected",
			slog.String("session_id", t.SessionID),
			slog.String("turn_id", t.ID),
			slog.String("category", string(t.Crisis.Category)),
			slog.String("script", string(t.Script)),
		)
	}
	if p.cfg.LogTranscripts {
		p.logger.Debug("turn_transcript",
			slog.String("turn_id", t.ID),
			slog.String("text", redact.Snippet(t.RawText, 80)),
		)
	}

	payload := p.builder.Build(prompt.Input{
		Transcript: t.RawText,
		Script:     t.Script,
		Crisis:     t.Crisis,
		History:    sess.History(),
	})
	out := p.orch.Run(ctx, orchestrator.Input{
		Payload:     payload,
		SafeReply:   p.builder.SafeReply(t.Script, t.Crisis.Flag),
		Instruction: p.builder.ValidationInstruction(t.Crisis),
	})
	t.PrimaryDraft = out.Draft
	t.Verdict = out.Verdict
	t.Latency.Generation = out.GenerationLatency
	t.Latency.Validation = out.ValidationLatency
	p.emit(t, metrics.EventGenerationDone, map[string]string{
		metrics.TagStage:  "generation",
		metrics.TagStatus: string(out.Primary.Status),
	}, out.GenerationLatency)
	p.emit(t, metrics.EventValidationDone, map[string]string{
		metrics.TagStage:   "validation",
		metrics.TagStatus:  string(out.Validation.Status),
		metrics.TagVerdict: string(out.Verdict),
	}, out.ValidationLatency)

	reply := out.FinalText
	t.FinalText = p.post.Process(reply, t.Crisis.Flag)
	if strings.TrimSpace(t.FinalText) == "" {
		// Drafts made only of markup or emoji clean down to nothing.
		p.logger.Warn("empty_reply_replaced",
			slog.String("session_id", t.SessionID),
			slog.String("turn_id", t.ID),
			slog.String("verdict", string(out.Verdict)),
		)
		reply = p.builder.SafeReply(t.Script, t.Crisis.Flag)
		t.FinalText = p.post.Process(reply, t.Crisis.Flag)
		t.Verdict = orchestrator.VerdictOverride
	}
	sess.AppendExchange(t.RawText, reply)

	p.synthesize(ctx, sess, t, m)

	t.Latency.Total = time.Since(t.StartedAt)
	sess.RecordTurn(t.Latency.Total, t.Crisis.Flag)
	if t.Latency.Total > p.cfg.MaxResponseTime {
		p.logger.Warn("latency_budget_exceeded",
			slog.String("session_id", t.SessionID),
			slog.String("turn_id", t.ID),
			slog.Int64("total_ms", t.Latency.Total.Milliseconds()),
			slog.Int64("budget_ms", p.cfg.MaxResponseTime.Milliseconds()),
		)
		p.emit(t, metrics.EventLatencyExceeded, nil, t.Latency.Total)
	}

	span.SetAttributes(
		attribute.String("sakinah.turn.id", t.ID),
		attribute.String("sakinah.script", string(t.Script)),
		attribute.Bool("sakinah.crisis.flag", t.Crisis.Flag),
		attribute.String("sakinah.verdict", string(t.Verdict)),
		attribute.Int64("sakinah.total_ms", t.Latency.Total.Milliseconds()),
	)
	p.emit(t, metrics.EventTurnDone, map[string]string{
		metrics.TagVerdict: string(t.Verdict),
		metrics.TagScript:  string(t.Script),
	}, t.Latency.Total)
	p.logger.Info("turn_done",
		slog.String("session_id", t.SessionID),
		slog.String("turn_id", t.ID),
		slog.String("input", string(t.Kind)),
		slog.String("script", string(t.Script)),
		slog.Bool("crisis", t.Crisis.Flag),
		slog.String("verdict", string(t.Verdict)),
		slog.Bool("audio", t.HasAudio()),
		slog.Int64("total_ms", t.Latency.Total.Milliseconds()),
	)
	m.Finish("delivered")
}

func (p *Pipeline) synthesize(ctx context.Context, sess *session.Session, t *turn.Turn, m *turn.Machine) {
	if p.tts == nil {
		return
	}
	_ = m.Transition(turn.StateSynthesizing, "reply ready")
	voice := p.cfg.Voices.Voice(sess.Preferences().Voice, t.Script, t.Crisis.Flag)

	start := time.Now()
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.TTSTimeout)
	audio, err := p.tts.Synthesize(callCtx, t.FinalText, voice)
	cancel()
	t.Latency.TTS = time.Since(start)

	if err == nil && len(audio.Data) == 0 {
		err = errors.New("tts: empty audio")
	}
	status := "ok"
	if err != nil {
		status = "error"
		t.SpeechErr = errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		p.logger.Warn("tts_failed_text_only",
			slog.String("session_id", t.SessionID),
			slog.String("turn_id", t.ID),
			slog.String("provider", p.tts.Name()),
			slog.String("error", err.Error()),
		)
		_ = m.Transition(turn.StateIdle, "tts failed")
	} else {
		t.Audio = audio.Data
		t.AudioFormat = audio.Format
		_ = m.Transition(turn.StateSpeaking, "audio ready")
	}
	p.emit(t, metrics.EventTTSDone, map[string]string{
		metrics.TagStage:    "tts",
		metrics.TagStatus:   status,
		metrics.TagProvider: p.tts.Name(),
	}, t.Latency.TTS)
}

func (p *Pipeline) noSpeech(t *turn.Turn, reason string) {
	p.emit(t, metrics.EventNoSpeech, map[string]string{metrics.TagStatus: reason}, 0)
	p.logger.Info("no_speech",
		slog.String("session_id", t.SessionID),
		slog.String("turn_id", t.ID),
		slog.String("reason", reason),
	)
}

func (p *Pipeline) emit(t *turn.Turn, name string, tags map[string]string, d time.Duration) {
	all := map[string]string{
		metrics.TagSessionID: t.SessionID,
		metrics.TagTurnID:    t.ID,
		metrics.TagInputKind: string(t.Kind),
	}
	for k, v := range tags {
		all[k] = v
	}
	ev := metrics.MetricsEvent{Name: name, Tags: all}
	if d > 0 {
		ev.Fields = map[string]any{metrics.FieldDuration: d.Milliseconds()}
		ev.Value = float64(d.Milliseconds())
	}
	metrics.Emit(p.obs, ev)
}
