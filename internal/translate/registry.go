package translate

import (
	"context"
	"strings"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

// adapters keyed by provider id, kept in registration order
type Registry struct {
	translators  []entry[Translator]
	dictionaries []entry[Dictionary]
}

type entry[T any] struct {
	id      Provider
	adapter T
}

func NewRegistry() *Registry {
	return &Registry{}
}

// replaces any adapter already registered under id
func (r *Registry) RegisterTranslator(id Provider, t Translator) {
	r.translators = register(r.translators, id, t)
}

func (r *Registry) RegisterDictionary(id Provider, d Dictionary) {
	r.dictionaries = register(r.dictionaries, id, d)
}

func register[T any](entries []entry[T], id Provider, adapter T) []entry[T] {
	for i := range entries {
		if entries[i].id == id {
			entries[i].adapter = adapter
			return entries
		}
	}
	return append(entries, entry[T]{id: id, adapter: adapter})
}

func (r *Registry) Translator(id Provider) (Translator, bool) {
	return lookup(r.translators, id)
}

func (r *Registry) Dictionary(id Provider) (Dictionary, bool) {
	return lookup(r.dictionaries, id)
}

func lookup[T any](entries []entry[T], id Provider) (T, bool) {
	for _, e := range entries {
		if e.id == id {
			return e.adapter, true
		}
	}
	var zero T
	return zero, false
}

func (r *Registry) TranslatorIDs() []Provider {
	ids := make([]Provider, len(r.translators))
	for i, e := range r.translators {
		ids[i] = e.id
	}
	return ids
}

func (r *Registry) DictionaryIDs() []Provider {
	ids := make([]Provider, len(r.dictionaries))
	for i, e := range r.dictionaries {
		ids[i] = e.id
	}
	return ids
}

const (
	DefaultSourceLang = "en"
	DefaultTargetLang = "pt"

	// provider ids stored in settings
	DefaultTranslationProvider Provider = "mymemory"
	DefaultDictionaryProvider  Provider = "freedictionary"

	NoDictionaryMessage = "No dictionary provider available"
)

// picks adapters from a registry, falls back across translators
type Service struct {
	registry *Registry
	logger   *logging.Logger
}

func NewService(registry *Registry, logger *logging.Logger) *Service {
	return &Service{registry: registry, logger: logging.OrNop(logger)}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// true when text trimmed is a single whitespace-free token
func IsSingleWord(text string) bool {
	return len(strings.Fields(text)) == 1
}

// Translate tries the primary provider, then every other registered one in order.
// An unregistered primary goes straight to the others. Returns false when all fail.
func (s *Service) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
	primary Provider,
) (TranslationResult, bool) {
	if sourceLang == "" {
		sourceLang = DefaultSourceLang
	}
	if targetLang == "" {
		targetLang = DefaultTargetLang
	}

	if t, ok := s.registry.Translator(primary); ok {
		result, err := t.Translate(ctx, text, sourceLang, targetLang)
		if err == nil {
			result.Service = t.Name()
			return result, true
		}
		s.logger.Warnw("Translation failed", "provider", primary, "error", err)
	}

	for _, e := range s.registry.translators {
		if e.id == primary {
			continue
		}
		if ctx.Err() != nil {
			return TranslationResult{}, false
		}
		result, err := e.adapter.Translate(ctx, text, sourceLang, targetLang)
		if err != nil {
			s.logger.Warnw("Fallback translation failed", "provider", e.id, "error", err)
			continue
		}
		result.Service = e.adapter.Name() + " (fallback)"
		return result, true
	}

	return TranslationResult{}, false
}

// Define looks word up with provider, or the first registered dictionary when
// provider is unknown. Failures are reported in the result, never as an error.
func (s *Service) Define(
	ctx context.Context,
	word, language string,
	provider Provider,
) DictionaryResult {
	d, ok := s.registry.Dictionary(provider)
	if !ok && len(s.registry.dictionaries) > 0 {
		d, ok = s.registry.dictionaries[0].adapter, true
	}
	if !ok {
		return DictionaryResult{Word: word, Meanings: []Meaning{}, Error: NoDictionaryMessage}
	}

	result, err := d.Define(ctx, strings.TrimSpace(word), language)
	if err != nil {
		s.logger.Warnw("Definition failed", "provider", provider, "word", word, "error", err)
		return DictionaryResult{Word: word, Meanings: []Meaning{}, Error: err.Error()}
	}
	return result
}

// translation plus a definition when text is a single word
type Lookup struct {
	Text        string             `json:"text"`
	Translation *TranslationResult `json:"translation,omitempty"`
	Definition  *DictionaryResult  `json:"definition,omitempty"`
}

type LookupOptions struct {
	SourceLang  string
	TargetLang  string
	Translation Provider
	Dictionary  Provider
}

func (s *Service) Lookup(ctx context.Context, text string, opts LookupOptions) Lookup {
	text = strings.TrimSpace(text)
	out := Lookup{Text: text}

	if tr, ok := s.Translate(ctx, text, opts.SourceLang, opts.TargetLang, opts.Translation); ok {
		out.Translation = &tr
	}
	if IsSingleWord(text) {
		def := s.Define(ctx, text, opts.SourceLang, opts.Dictionary)
		out.Definition = &def
	}
	return out
}
