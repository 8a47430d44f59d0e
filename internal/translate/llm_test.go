package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

// answers batch prompts by upper-casing every input item
func upperBatch(calls *atomic.Int32) completeFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		start := strings.Index(prompt, "Input JSON:\n")
		end := strings.LastIndex(prompt, "\n\nOutput")
		if start < 0 || end < 0 {
			return "", fmt.Errorf("unexpected prompt")
		}
		var items []TranslationItem
		if err := json.Unmarshal([]byte(prompt[start+len("Input JSON:\n"):end]), &items); err != nil {
			return "", err
		}
		out := make([]ItemResult, len(items))
		for i, it := range items {
			out[i] = ItemResult{Index: it.Index, Text: strings.ToUpper(it.Text)}
		}
		data, _ := json.Marshal(out)
		return "```json\n" + string(data) + "\n```", nil
	}
}

func TestTranslateItemsBatchesAndOrders(t *testing.T) {
	var calls atomic.Int32
	llm := newLLM("Fake", upperBatch(&calls), Options{TargetLanguage: "pt", BatchSize: 2})

	items := make([]TranslationItem, 5)
	for i := range items {
		items[i] = TranslationItem{Index: i, Text: fmt.Sprintf("line %d", i)}
	}

	results, err := llm.TranslateItems(context.Background(), items, 3)
	if err != nil {
		t.Fatalf("TranslateItems failed: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if want := fmt.Sprintf("LINE %d", i); r.Text != want {
			t.Errorf("result %d = %q, want %q", i, r.Text, want)
		}
	}
}

func TestTranslateItemsEmpty(t *testing.T) {
	llm := newLLM("Fake", func(context.Context, string) (string, error) {
		t.Fatal("no request expected")
		return "", nil
	}, Options{TargetLanguage: "pt"})

	results, err := llm.TranslateItems(context.Background(), nil, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestTranslateItemsBatchFailure(t *testing.T) {
	var calls atomic.Int32
	ok := upperBatch(&calls)
	llm := newLLM("Fake", func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "line 2") {
			return "", errors.New("rate limited")
		}
		return ok(ctx, prompt)
	}, Options{TargetLanguage: "pt", BatchSize: 2})

	items := make([]TranslationItem, 4)
	for i := range items {
		items[i] = TranslationItem{Index: i, Text: fmt.Sprintf("line %d", i)}
	}

	_, err := llm.TranslateItems(context.Background(), items, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "batch 1 failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTranslateItemsCountMismatch(t *testing.T) {
	llm := newLLM("Fake", func(context.Context, string) (string, error) {
		return `[{"index": 0, "text": "olá"}]`, nil
	}, Options{TargetLanguage: "pt"})

	items := []TranslationItem{{Index: 0, Text: "hi"}, {Index: 1, Text: "bye"}}
	if _, err := llm.TranslateItems(context.Background(), items, 1); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestTranslateTrackKeepsTimings(t *testing.T) {
	var calls atomic.Int32
	llm := newLLM("Fake", upperBatch(&calls), Options{TargetLanguage: "pt"})

	track := subtitle.Track{
		{Begin: 1, End: 2, Text: "hello"},
		{Begin: 2.5, End: 4, Text: "world"},
	}

	out, err := TranslateTrack(context.Background(), llm, track, 2)
	if err != nil {
		t.Fatalf("TranslateTrack failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out))
	}
	if out[0].Text != "HELLO" || out[1].Text != "WORLD" {
		t.Errorf("unexpected texts: %q, %q", out[0].Text, out[1].Text)
	}
	if out[1].Begin != 2.5 || out[1].End != 4 {
		t.Errorf("timings changed: %+v", out[1])
	}
	if track[0].Text != "hello" {
		t.Error("input track was modified")
	}
}

func TestLLMTranslateSingleText(t *testing.T) {
	var prompt string
	llm := newLLM("Fake", func(_ context.Context, p string) (string, error) {
		prompt = p
		return "  casa \n", nil
	}, Options{TargetLanguage: "pt"})

	result, err := llm.Translate(context.Background(), "house", "en", "")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if result.TranslatedText != "casa" {
		t.Errorf("expected 'casa', got %q", result.TranslatedText)
	}
	if result.TargetLang != "pt" {
		t.Errorf("expected target from options, got %q", result.TargetLang)
	}
	if !strings.Contains(prompt, "en text to pt") || !strings.HasSuffix(prompt, "house") {
		t.Errorf("unexpected prompt: %q", prompt)
	}
}

func TestLLMTranslateEmptyReply(t *testing.T) {
	llm := newLLM("Fake", func(context.Context, string) (string, error) {
		return "   ", nil
	}, Options{TargetLanguage: "pt"})

	_, err := llm.Translate(context.Background(), "house", "en", "pt")
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestLLMDefine(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
		word    string
	}{
		{
			name: "plain object",
			reply: `{"word": "run", "phonetic": "/rʌn/", "meanings": [
				{"partOfSpeech": "verb", "definition": "move fast", "synonyms": ["sprint"]}]}`,
			word: "run",
		},
		{
			name:  "markdown wrapped without word",
			reply: "```json\n{\"meanings\": [{\"definition\": \"move fast\"}]}\n```",
			word:  "run",
		},
		{
			name:    "no meanings",
			reply:   `{"word": "run", "meanings": []}`,
			wantErr: true,
		},
		{
			name:    "not json",
			reply:   "I don't know that word.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newLLM("Fake", func(context.Context, string) (string, error) {
				return tt.reply, nil
			}, Options{TargetLanguage: "pt"})

			result, err := llm.Define(context.Background(), "run", "en")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Word != tt.word {
				t.Errorf("word = %q, want %q", result.Word, tt.word)
			}
			if len(result.Meanings) != 1 || result.Meanings[0].Definition != "move fast" {
				t.Errorf("unexpected meanings: %+v", result.Meanings)
			}
		})
	}
}
