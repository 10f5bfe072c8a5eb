package errorsx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMGenerate)
	if Reason(err) != ReasonLLMGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonLLMGenerate, Reason(err))
	}
	if !HasReason(err, ReasonLLMGenerate) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonSTTTranscribe)
	second := Wrap(first, ReasonLLMGenerate)
	if Reason(second) != ReasonSTTTranscribe {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("validator: %w", Wrap(assertErr{}, ReasonValidateMalformed))
	if !HasReason(err, ReasonValidateMalformed) {
		t.Fatalf("expected reason through fmt wrap, got %s", Reason(err))
	}
	if !errors.Is(err, assertErr{}) {
		t.Fatalf("expected unwrap to reach the cause")
	}
}

func TestReasonOfNilAndPlain(t *testing.T) {
	if Wrap(nil, ReasonNoSpeech) != nil {
		t.Fatalf("expected nil wrap to stay nil")
	}
	if Reason(nil) != ReasonUnknown || Reason(assertErr{}) != ReasonUnknown {
		t.Fatalf("expected unknown reason")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestTransientAndHTTPStatus(t *testing.T) {
	cases := []struct {
		err       error
		transient bool
		status    int
	}{
		{nil, false, 200},
		{Wrap(assertErr{}, ReasonLLMRateLimit), true, 503},
		{Wrap(assertErr{}, ReasonLLMCircuitOpen), true, 503},
		{fmt.Errorf("stt: %w", context.DeadlineExceeded), true, 503},
		{Wrap(assertErr{}, ReasonTransportDecode), false, 400},
		{Wrap(assertErr{}, ReasonProviderUnknown), false, 500},
		{Wrap(assertErr{}, ReasonSTTTranscribe), false, 502},
		{assertErr{}, false, 502},
	}
	for _, tc := range cases {
		if got := Transient(tc.err); got != tc.transient {
			t.Fatalf("Transient(%v) = %v", tc.err, got)
		}
		if got := HTTPStatus(tc.err); got != tc.status {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}
