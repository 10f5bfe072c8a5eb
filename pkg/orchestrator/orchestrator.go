package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/prompt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sakinah.pkg.orchestrator")

// Verdict summarises how much the final text can be trusted.
type Verdict string

const (
	VerdictPass     Verdict = "PASS"
	VerdictOverride Verdict = "OVERRIDE"
)

type PrimaryStatus string

const (
	PrimaryOK       PrimaryStatus = "ok"
	PrimaryRetried  PrimaryStatus = "retried"
	PrimaryFallback PrimaryStatus = "fallback"
)

type ValidationStatus string

const (
	ValidationPassed      ValidationStatus = "passed"
	ValidationCorrected   ValidationStatus = "corrected"
	ValidationRejected    ValidationStatus = "rejected"
	ValidationUnavailable ValidationStatus = "unavailable"
	ValidationSkipped     ValidationStatus = "skipped"
)

// PrimaryOutcome is the typed intermediate value between the two stages.
type PrimaryOutcome struct {
	Draft  string
	Status PrimaryStatus
	Err    error
}

type ValidationOutcome struct {
	Status        ValidationStatus
	CorrectedText string
	Err           error
}

// Input carries the built prompt and the fixed safe reply for this turn.
type Input struct {
	Payload   prompt.Payload
	SafeReply string
	// Instruction is the validation instruction for the secondary provider.
	Instruction string
}

// Result is the single value the orchestrator hands back.
type Result struct {
	FinalText         string
	Draft             string
	Verdict           Verdict
	Primary           PrimaryOutcome
	Validation        ValidationOutcome
	GenerationLatency time.Duration
	ValidationLatency time.Duration
}

type Config struct {
	PrimaryTimeout    time.Duration
	ValidationTimeout time.Duration
	MaxTokens         int
	Temperature       float64
	Policy            Policy
}

func (c Config) withDefaults() Config {
	if c.PrimaryTimeout <= 0 {
		c.PrimaryTimeout = 10 * time.Second
	}
	if c.ValidationTimeout <= 0 {
		c.ValidationTimeout = 8 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 300
	}
	if c.Policy == "" {
		c.Policy = PolicyFailOpen
	}
	return c
}

// Orchestrator runs the generate-then-validate chain for one turn.
type Orchestrator struct {
	primary   llm.Generator
	validator Validator
	cfg       Config
	logger    *slog.Logger
}

// New builds an orchestrator. A nil validator skips validation, which always
// yields an OVERRIDE verdict.
func New(primary llm.Generator, validator Validator, cfg Config) *Orchestrator {
	return &Orchestrator{
		primary:   primary,
		validator: validator,
		cfg:       cfg.withDefaults(),
		logger:    logging.NewComponentLogger(slog.Default(), "orchestrator"),
	}
}

// Run never fails: every path ends in non-empty text and a verdict.
// Provider calls are detached from ctx cancellation so an abandoned turn lets
// in-flight calls finish; the caller simply discards the result.
func (o *Orchestrator) Run(ctx context.Context, in Input) Result {
	ctx, span := tracer.Start(ctx, "orchestrator.run")
	defer span.End()
	callCtx := context.WithoutCancel(ctx)

	safe := strings.TrimSpace(in.SafeReply)
	if safe == "" {
		safe = "..."
	}

	start := time.Now()
	primary := o.generate(callCtx, in.Payload, safe)
	genLatency := time.Since(start)

	start = time.Now()
	validation := o.validate(callCtx, in, primary)
	valLatency := time.Since(start)

	final, verdict := o.decide(in, primary, validation, safe)

	span.SetAttributes(
		attribute.String("sakinah.primary.status", string(primary.Status)),
		attribute.String("sakinah.validation.status", string(validation.Status)),
		attribute.String("sakinah.verdict", string(verdict)),
		attribute.Bool("sakinah.crisis.flag", in.Payload.Crisis.Flag),
	)

	o.logger.Info("orchestrator_done",
		slog.String("primary_status", string(primary.Status)),
		slog.String("validation_status", string(validation.Status)),
		slog.String("verdict", string(verdict)),
		slog.Bool("crisis", in.Payload.Crisis.Flag),
		slog.Int64("generation_ms", genLatency.Milliseconds()),
		slog.Int64("validation_ms", valLatency.Milliseconds()),
	)

	return Result{
		FinalText:         final,
		Draft:             primary.Draft,
		Verdict:           verdict,
		Primary:           primary,
		Validation:        validation,
		GenerationLatency: genLatency,
		ValidationLatency: valLatency,
	}
}

func (o *Orchestrator) generate(ctx context.Context, payload prompt.Payload, safe string) PrimaryOutcome {
	ctx, span := tracer.Start(ctx, "orchestrator.primary")
	defer span.End()

	text, err := o.callPrimary(ctx, payload)
	if err == nil {
		return PrimaryOutcome{Draft: text, Status: PrimaryOK}
	}
	span.RecordError(err)
	o.logger.Warn("primary_failed_retrying_shortened",
		slog.String("provider", o.primaryName()),
		slog.String("reason", string(errorsx.Reason(err))),
		slog.String("error", err.Error()),
	)

	text, retryErr := o.callPrimary(ctx, payload.Shortened())
	if retryErr == nil {
		return PrimaryOutcome{Draft: text, Status: PrimaryRetried, Err: err}
	}
	span.RecordError(retryErr)
	span.SetStatus(codes.Error, "primary fallback")
	o.logger.Error("primary_fallback",
		slog.String("provider", o.primaryName()),
		slog.String("reason", string(errorsx.Reason(retryErr))),
		slog.String("error", retryErr.Error()),
	)
	return PrimaryOutcome{Draft: safe, Status: PrimaryFallback, Err: retryErr}
}

func (o *Orchestrator) callPrimary(ctx context.Context, payload prompt.Payload) (string, error) {
	if o.primary == nil {
		return "", errorsx.New(errorsx.ReasonLLMGenerate, "primary provider not configured")
	}
	req := payload.Request(o.cfg.MaxTokens, o.cfg.Temperature)
	resp, err := within(ctx, o.cfg.PrimaryTimeout, errorsx.ReasonLLMGenerate, func(ctx context.Context) (llm.Response, error) {
		return o.primary.Generate(ctx, req)
	})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errorsx.Wrap(llm.ErrEmptyCompletion, errorsx.ReasonLLMMalformed)
	}
	return text, nil
}

func (o *Orchestrator) validate(ctx context.Context, in Input, primary PrimaryOutcome) ValidationOutcome {
	if o.validator == nil || primary.Status == PrimaryFallback {
		return ValidationOutcome{Status: ValidationSkipped}
	}
	ctx, span := tracer.Start(ctx, "orchestrator.validate")
	defer span.End()

	res, err := o.callValidator(ctx, ValidationRequest{
		Draft:       primary.Draft,
		Transcript:  in.Payload.Transcript,
		Instruction: in.Instruction,
		Crisis:      in.Payload.Crisis.Flag,
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("validation_unavailable",
			slog.String("provider", o.validator.Name()),
			slog.String("reason", string(errorsx.Reason(err))),
			slog.String("policy", string(o.cfg.Policy)),
			slog.String("error", err.Error()),
		)
		return ValidationOutcome{Status: ValidationUnavailable, Err: err}
	}
	switch {
	case res.Pass:
		return ValidationOutcome{Status: ValidationPassed}
	case res.CorrectedText != "":
		return ValidationOutcome{Status: ValidationCorrected, CorrectedText: res.CorrectedText}
	default:
		return ValidationOutcome{Status: ValidationRejected}
	}
}

func (o *Orchestrator) callValidator(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	return within(ctx, o.cfg.ValidationTimeout, errorsx.ReasonValidate, func(ctx context.Context) (ValidationResult, error) {
		return o.validator.Validate(ctx, req)
	})
}

func (o *Orchestrator) decide(in Input, primary PrimaryOutcome, v ValidationOutcome, safe string) (string, Verdict) {
	final := primary.Draft
	switch v.Status {
	case ValidationCorrected:
		final = v.CorrectedText
	case ValidationRejected:
		final = safe
	case ValidationUnavailable:
		if o.cfg.Policy.blocks(in.Payload.Crisis.Flag) {
			final = safe
		}
	}
	if strings.TrimSpace(final) == "" {
		final = safe
	}
	if primary.Status == PrimaryOK && v.Status == ValidationPassed {
		return final, VerdictPass
	}
	return final, VerdictOverride
}

func (o *Orchestrator) primaryName() string {
	if o.primary == nil {
		return ""
	}
	return o.primary.Name()
}

// within bounds fn by timeout even when a provider ignores its context, and
// converts a provider panic into an error.
func within[T any](ctx context.Context, timeout time.Duration, reason errorsx.ReasonCode, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: errorsx.New(reason, "provider panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- outcome{v: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.v, out.err
	case <-ctx.Done():
		var zero T
		return zero, errorsx.Wrap(fmt.Errorf("provider timeout after %s: %w", timeout, ctx.Err()), reason)
	}
}
