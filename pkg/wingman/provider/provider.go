// Package provider implements the AI text-generation backends used to
// produce replies. Each backend implements the Provider interface; the
// New registry function is the only place provider identifiers are
// interpreted.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbarroso/wingman/pkg/wingman/history"
)

// Provider identifiers accepted by New.
const (
	Gemini   = "gemini"
	OpenAI   = "openai"
	DeepSeek = "deepseek"
)

// Errors.
var (
	// ErrMissingCredential is returned before any network call when no
	// API key is configured.
	ErrMissingCredential = errors.New("api key not configured")

	// ErrUnknownProvider is returned by New for unrecognized identifiers.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyResponse is returned when the provider answers with no
	// usable text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// HTTPError carries a provider's non-success HTTP response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider returned %s", e.Status)
}

// Provider generates reply text from conversation history.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Generate produces a reply to message given the prior history.
	// Exactly one attempt is made; callers decide what to do on error.
	Generate(ctx context.Context, turns []history.Turn, message string) (string, error)

	// ListModels returns the model names the provider currently offers.
	ListModels(ctx context.Context) ([]string, error)
}

// Config holds the static provider configuration.
type Config struct {
	// Provider selects the backend ("gemini", "openai", "deepseek").
	Provider string `yaml:"provider"`

	// APIKey is the credential forwarded to the backend.
	APIKey string `yaml:"api_key"`

	// Model is the model name (e.g. "gemini-2.0-flash", "gpt-4o-mini").
	Model string `yaml:"model"`

	// BaseURL overrides the backend endpoint (OpenAI-compatible servers).
	BaseURL string `yaml:"base_url"`

	// SystemInstructions is prepended to every conversation.
	SystemInstructions string `yaml:"system_instructions"`

	// Temperature controls sampling randomness.
	Temperature float64 `yaml:"temperature"`

	// TopK limits sampling to the K most likely tokens (gemini only).
	TopK int `yaml:"top_k"`

	// TopP is the nucleus sampling threshold (gemini only).
	TopP float64 `yaml:"top_p"`

	// MaxTokens caps the reply length (OpenAI-compatible backends).
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig() Config {
	return Config{
		Provider:    Gemini,
		Model:       "gemini-2.0-flash",
		Temperature: 0.9,
		TopK:        40,
		TopP:        0.95,
		MaxTokens:   1000,
	}
}

// New builds the Provider selected by cfg.Provider. Unknown identifiers
// return ErrUnknownProvider without any network activity.
func New(cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case Gemini:
		return NewGeminiClient(cfg, logger), nil
	case OpenAI:
		return NewOpenAICompatible(OpenAI, "https://api.openai.com/v1", openaiRoles, cfg, logger), nil
	case DeepSeek:
		return NewOpenAICompatible(DeepSeek, "https://api.deepseek.com/v1", deepseekRoles, cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
