package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/koustreak/greeny/internal/errs"
)

// geminiCompleter implements Completer using the Gemini API.
type geminiCompleter struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func newGemini(ctx context.Context, cfg Config) (*geminiCompleter, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to create Gemini client", err)
	}

	return &geminiCompleter{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(cfg.Temperature)),
			MaxOutputTokens: int32(cfg.MaxTokens),
		},
	}, nil
}

func (c *geminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config)
	if err != nil {
		return "", geminiError(err)
	}
	return resp.Text(), nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", Code: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return err
}
