package translate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

// sends one prompt, returns the model's text reply
type completeFunc func(ctx context.Context, prompt string) (string, error)

// provider-neutral LLM adapter, the provider only supplies completion
type LLM struct {
	name     string
	complete completeFunc
	options  Options
}

func newLLM(name string, complete completeFunc, opts Options) *LLM {
	return &LLM{name: name, complete: complete, options: opts}
}

func (l *LLM) Name() string {
	return l.name
}

func (l *LLM) batchSize() int {
	if l.options.BatchSize > 0 {
		return l.options.BatchSize
	}
	return DefaultBatchSize
}

func (l *LLM) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (TranslationResult, error) {
	if targetLang == "" {
		targetLang = l.options.TargetLanguage
	}

	reply, err := l.complete(ctx, BuildTextPrompt(text, sourceLang, targetLang))
	if err != nil {
		return TranslationResult{}, fmt.Errorf("translation failed: %w", err)
	}

	translated := strings.TrimSpace(cleanJSONResponse(reply))
	if translated == "" {
		return TranslationResult{}, fmt.Errorf("no text in %s response: %w", l.name, ErrNoResult)
	}

	return TranslationResult{
		OriginalText:   text,
		TranslatedText: translated,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
	}, nil
}

func (l *LLM) Define(
	ctx context.Context,
	word, language string,
) (DictionaryResult, error) {
	reply, err := l.complete(ctx, BuildDefinitionPrompt(word, language))
	if err != nil {
		return DictionaryResult{}, fmt.Errorf("definition failed: %w", err)
	}

	result, err := extractDefinition(cleanJSONResponse(reply))
	if err != nil {
		return DictionaryResult{}, fmt.Errorf(
			"failed to parse JSON response: %w (response: %s)",
			err,
			truncateString(reply, 200),
		)
	}
	if result.Word == "" {
		result.Word = word
	}
	return result, nil
}

// Items are split into batches of BatchSize (default 50). Each batch becomes
// one API request. Workers (up to concurrency) pull batches from a shared queue.
func (l *LLM) TranslateItems(
	ctx context.Context,
	items []TranslationItem,
	concurrency int,
) ([]ItemResult, error) {
	if len(items) == 0 {
		return []ItemResult{}, nil
	}

	if concurrency <= 0 {
		concurrency = 3
	}

	batchSize := l.batchSize()
	var batches [][]TranslationItem
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}

	if len(batches) == 1 {
		return l.translateBatch(ctx, batches[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type batchResult struct {
		Index   int
		Results []ItemResult
		Error   error
	}

	workChan := make(chan int)
	resultChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < concurrency && i < len(batches); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIdx := range workChan {
				if ctx.Err() != nil {
					return
				}
				results, err := l.translateBatch(ctx, batches[batchIdx])
				if err != nil {
					cancel()
				}
				resultChan <- batchResult{Index: batchIdx, Results: results, Error: err}
			}
		}()
	}

	go func() {
		defer close(workChan)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var firstErr error
	var allResults []ItemResult
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("batch %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		allResults = append(allResults, result.Results...)
	}

	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].Index < allResults[j].Index
	})

	return allResults, nil
}

func (l *LLM) translateBatch(
	ctx context.Context,
	items []TranslationItem,
) ([]ItemResult, error) {
	reply, err := l.complete(ctx, BuildPrompt(l.options, items))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	reply = cleanJSONResponse(reply)

	results, err := extractTranslationResults(reply)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse JSON response: %w (response: %s)",
			err,
			truncateString(reply, 200),
		)
	}

	if len(results) != len(items) {
		return nil, fmt.Errorf("expected %d results, got %d", len(items), len(results))
	}

	return results, nil
}

// translates every cue of track, timings are kept
func TranslateTrack(
	ctx context.Context,
	t BatchTranslator,
	track subtitle.Track,
	concurrency int,
) (subtitle.Track, error) {
	items := make([]TranslationItem, len(track))
	for i, seg := range track {
		items[i] = TranslationItem{Index: i, Text: seg.Text}
	}

	results, err := t.TranslateItems(ctx, items, concurrency)
	if err != nil {
		return nil, err
	}

	out := make(subtitle.Track, len(track))
	copy(out, track)
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(out) {
			return nil, fmt.Errorf("result index %d out of range", r.Index)
		}
		out[r.Index].Text = r.Text
	}
	return out, nil
}
