package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// escapes stray backslashes like \N (SRT newline) so the reply parses as JSON,
// the literal \N survives in the decoded text
func fixInvalidEscapes(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			result.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		switch next {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
			result.WriteByte('\\')
		default:
			result.WriteString("\\\\")
		}
		result.WriteByte(next)
		i++
	}

	return result.String()
}

// finds the first JSON value in text that decodes to batch results
func extractTranslationResults(text string) ([]ItemResult, error) {
	text = fixInvalidEscapes(text)

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			continue
		}
		if results, ok := tryExtractResults(raw); ok {
			return results, nil
		}
	}
	return nil, fmt.Errorf("no valid translation JSON found in response")
}

// accepts a bare array or one wrapped in an object
func tryExtractResults(raw json.RawMessage) ([]ItemResult, bool) {
	var results []ItemResult
	if err := json.Unmarshal(raw, &results); err == nil && validateResults(results) {
		return results, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}

	for _, key := range []string{"results", "translations", "data", "items"} {
		fieldRaw, exists := wrapper[key]
		if !exists {
			continue
		}
		var fieldResults []ItemResult
		if err := json.Unmarshal(fieldRaw, &fieldResults); err == nil && validateResults(fieldResults) {
			return fieldResults, true
		}
	}

	for _, fieldRaw := range wrapper {
		var fieldResults []ItemResult
		if err := json.Unmarshal(fieldRaw, &fieldResults); err == nil && validateResults(fieldResults) {
			return fieldResults, true
		}
	}

	return nil, false
}

func validateResults(results []ItemResult) bool {
	for _, r := range results {
		if r.Text != "" {
			return true
		}
	}
	return false
}

func extractDefinition(text string) (DictionaryResult, error) {
	text = fixInvalidEscapes(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return DictionaryResult{}, fmt.Errorf("no JSON object in response")
	}

	var result DictionaryResult
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&result); err != nil {
		return DictionaryResult{}, err
	}
	if len(result.Meanings) == 0 {
		return DictionaryResult{}, fmt.Errorf("no definitions found")
	}
	return result, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
