package translate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-5-mini"

func NewOpenAI(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	complete := func(ctx context.Context, prompt string) (string, error) {
		completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: model,
		})
		if err != nil {
			return "", err
		}
		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("empty response from OpenAI")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return newLLM("OpenAI", complete, opts), nil
}
