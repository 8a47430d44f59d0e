package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
)

// outcome of translating one selection
type TranslationResult struct {
	OriginalText   string `json:"originalText,omitempty"`
	TranslatedText string `json:"translatedText"`
	SourceLang     string `json:"sourceLang,omitempty"`
	TargetLang     string `json:"targetLang"`
	Service        string `json:"service,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Meaning struct {
	PartOfSpeech string   `json:"partOfSpeech,omitempty"`
	Definition   string   `json:"definition"`
	Example      string   `json:"example,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty"`
}

type DictionaryResult struct {
	Word     string    `json:"word"`
	Phonetic string    `json:"phonetic,omitempty"`
	Audio    string    `json:"audio,omitempty"`
	Meanings []Meaning `json:"meanings"`
	Error    string    `json:"error,omitempty"`
}

// translates a single selection
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (TranslationResult, error)
}

// looks up a single word
type Dictionary interface {
	Name() string
	Define(ctx context.Context, word, language string) (DictionaryResult, error)
}

// single text item of a batch
type TranslationItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// translated batch item
type ItemResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// translates many subtitle lines, batches run on a worker pool
type BatchTranslator interface {
	TranslateItems(ctx context.Context, items []TranslationItem, concurrency int) ([]ItemResult, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

var ErrNoResult = apperr.New(apperr.FetchFailed, "", "translation returned no result")

type Options struct {
	InputLanguage  string
	TargetLanguage string
	Model          string
	Prompt         string
	BatchSize      int // items per API request (default 50)
}

const DefaultBatchSize = 50

// creates an LLM client for provider, usable as Translator, Dictionary and BatchTranslator
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (*LLM, error) {
	if opts.TargetLanguage == "" {
		return nil, fmt.Errorf("target language is required")
	}

	switch provider {
	case ProviderGemini:
		return NewGemini(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAI(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropic(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}

// BuildPrompt creates the batch translation prompt for subtitle lines
func BuildPrompt(opts Options, items []TranslationItem) string {
	var sb strings.Builder

	if opts.InputLanguage != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate the following %s subtitle lines to %s.\n\n",
			opts.InputLanguage,
			opts.TargetLanguage,
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate the following subtitle lines to %s.\n\n",
			opts.TargetLanguage,
		))
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text content, preserving the meaning.\n")
	sb.WriteString("2. Keep inline markup such as <br> unchanged.\n")
	sb.WriteString("3. Return ONLY a JSON array with the same structure.\n")
	sb.WriteString("4. Each object must have 'index' and 'text' fields.\n")
	sb.WriteString("5. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("6. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		sb.WriteString(fmt.Sprintf("Additional instructions: %s\n\n", opts.Prompt))
	}

	sb.WriteString("Input JSON:\n")
	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)
	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}

// prompt for one selected word or phrase
func BuildTextPrompt(text, sourceLang, targetLang string) string {
	var sb strings.Builder
	if sourceLang != "" {
		sb.WriteString(fmt.Sprintf("Translate this %s text to %s.\n", sourceLang, targetLang))
	} else {
		sb.WriteString(fmt.Sprintf("Translate this text to %s.\n", targetLang))
	}
	sb.WriteString("Reply with the translation only, no quotes, notes or alternatives.\n\n")
	sb.WriteString(text)
	return sb.String()
}

// prompt asking for a dictionary entry as JSON
func BuildDefinitionPrompt(word, language string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Give a dictionary entry for the %s word %q.\n", languageOrDefault(language), word))
	sb.WriteString("Return ONLY a JSON object with the fields: word, phonetic (IPA), and meanings,\n")
	sb.WriteString("an array of objects with partOfSpeech, definition, example and synonyms (array of strings).\n")
	sb.WriteString("Do not add any explanation or markdown formatting.")
	return sb.String()
}

func languageOrDefault(language string) string {
	if language == "" {
		return "English"
	}
	return language
}
