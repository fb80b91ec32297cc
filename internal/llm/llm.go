// Package llm is the seam between the answering pipeline and a language
// model provider. Everything above it sees a Completer.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/greeny/internal/errs"
	"github.com/koustreak/greeny/internal/logger"
)

// Completer turns one prompt into one completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Completer.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Provider names a supported model backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	// ProviderOpenAI speaks the OpenAI chat completions protocol, which Groq
	// and Ollama also serve.
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
	ProviderOllama Provider = "ollama"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

// Config selects and tunes the provider.
type Config struct {
	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64

	// Timeout bounds each attempt; MaxRetries is the number of extra attempts
	// after the first for transient failures.
	Timeout    time.Duration
	MaxRetries int
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderGroq:
		return "llama-3.1-70b-versatile"
	case ProviderOllama:
		return "llama3.1"
	default:
		return "gpt-4o-mini"
	}
}

// ParseProvider accepts a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderAnthropic, ProviderGemini, ProviderOpenAI, ProviderGroq, ProviderOllama:
		return p, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported llm provider %q", s)
	}
}

// Validate fills defaults and reports unusable settings.
func (c *Config) Validate() error {
	p, err := ParseProvider(string(c.Provider))
	if err != nil {
		return err
	}
	c.Provider = p

	if c.Model == "" {
		c.Model = DefaultModel(p)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		return errs.New(errs.ErrKindInvalidInput, "llm max_retries must not be negative")
	}
	if c.APIKey == "" && p != ProviderOllama {
		return errs.Newf(errs.ErrKindInvalidInput, "llm api key is required for provider %s", p)
	}
	return nil
}

// New builds the configured provider client wrapped with per-attempt
// timeouts, retries and instrumentation.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Completer
		err  error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		base = newAnthropic(cfg)
	case ProviderGemini:
		base, err = newGemini(ctx, cfg)
	case ProviderGroq:
		base = newOpenAI(cfg, groqBaseURL)
	case ProviderOllama:
		base = newOpenAI(cfg, ollamaBaseURL)
	default:
		base = newOpenAI(cfg, openAIBaseURL)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(base, RetryOptions{
		Provider:   string(cfg.Provider),
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	}), nil
}

// StatusError is a provider response with a non-success HTTP status.
type StatusError struct {
	Provider string
	Code     int
	Message  string
	Err      error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Transient reports whether the request may succeed if sent again.
func (e *StatusError) Transient() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}
