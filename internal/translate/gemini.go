package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

func NewGemini(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	complete := func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			genai.NewContentFromParts(
				[]*genai.Part{genai.NewPartFromText(prompt)},
				genai.RoleUser,
			),
		}
		result, err := client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		return geminiText(result)
	}

	return newLLM("Gemini", complete, opts), nil
}

// text of the first candidate that has any
func geminiText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}

	return "", fmt.Errorf("no text in Gemini response")
}
