package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAICompleter speaks the OpenAI chat completions protocol. Groq and
// Ollama expose the same endpoint under their own base URLs.
type openAICompleter struct {
	provider    string
	client      openai.Client
	model       openai.ChatModel
	maxTokens   int64
	temperature float64
}

func newOpenAI(cfg Config, defaultBaseURL string) *openAICompleter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(base),
		// WithRetry owns retries so attempts are counted in one place.
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &openAICompleter{
		provider:    string(cfg.Provider),
		client:      openai.NewClient(opts...),
		model:       openai.ChatModel(cfg.Model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

func (c *openAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(c.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if c.maxTokens > 0 {
		// Groq and Ollama read max_tokens, not max_completion_tokens.
		params.MaxTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: c.provider, Code: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: response has no choices", c.provider)
	}
	return resp.Choices[0].Message.Content, nil
}
