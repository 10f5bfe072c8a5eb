package sakinah

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/sakinah/pkg/adapters/stt"
	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/errorsx"
	"github.com/harunnryd/sakinah/pkg/llm"
)

type STTFactory func(ctx context.Context, vendor VendorConfig) (stt.Transcriber, error)
type TTSFactory func(ctx context.Context, vendor VendorConfig) (tts.Synthesizer, error)
type LLMFactory func(ctx context.Context, vendor VendorConfig) (llm.Generator, error)

// ProviderRegistry maps vendor names from the config to adapter constructors.
type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeName(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(ctx context.Context, vendor VendorConfig) (stt.Transcriber, error) {
	fn := r.stt[normalizeName(vendor.Provider)]
	if fn == nil {
		return nil, unknownProvider("stt", vendor.Provider, r.STTNames())
	}
	return fn(ctx, vendor)
}

func (r *ProviderRegistry) BuildTTS(ctx context.Context, vendor VendorConfig) (tts.Synthesizer, error) {
	fn := r.tts[normalizeName(vendor.Provider)]
	if fn == nil {
		return nil, unknownProvider("tts", vendor.Provider, r.TTSNames())
	}
	return fn(ctx, vendor)
}

func (r *ProviderRegistry) BuildLLM(ctx context.Context, vendor VendorConfig) (llm.Generator, error) {
	fn := r.llm[normalizeName(vendor.Provider)]
	if fn == nil {
		return nil, unknownProvider("llm", vendor.Provider, r.LLMNames())
	}
	return fn(ctx, vendor)
}

func (r *ProviderRegistry) STTNames() []string { return sortedKeys(r.stt) }
func (r *ProviderRegistry) TTSNames() []string { return sortedKeys(r.tts) }
func (r *ProviderRegistry) LLMNames() []string { return sortedKeys(r.llm) }

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unknownProvider(kind, name string, known []string) error {
	return errorsx.Wrap(
		fmt.Errorf("%s provider not registered: %q (known: %s)", kind, name, strings.Join(known, ", ")),
		errorsx.ReasonProviderUnknown,
	)
}
