// openai.go implements the OpenAI-compatible chat completions backend.
// Covers the "openai" and "deepseek" providers, which share the wire
// format but differ in endpoint and role vocabulary.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rbarroso/wingman/pkg/wingman/history"
)

// roleVocabulary maps stored turn roles to the role names a backend
// expects in its messages array.
type roleVocabulary struct {
	User      string
	Assistant string
	System    string
}

var (
	openaiRoles   = roleVocabulary{User: "user", Assistant: "assistant", System: "system"}
	deepseekRoles = roleVocabulary{User: "user", Assistant: "assistant", System: "system"}
)

// OpenAICompatible talks to any chat-completions endpoint with bearer
// token auth (api.openai.com, api.deepseek.com, self-hosted gateways).
type OpenAICompatible struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	system      string
	temperature float64
	maxTokens   int
	roles       roleVocabulary
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewOpenAICompatible creates a chat-completions client. cfg.BaseURL,
// when set, overrides defaultBaseURL.
func NewOpenAICompatible(name, defaultBaseURL string, roles roleVocabulary, cfg Config, logger *slog.Logger) *OpenAICompatible {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &OpenAICompatible{
		name:        name,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		system:      cfg.SystemInstructions,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		roles:       roles,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger.With("component", "provider", "provider", name),
	}
}

// ---------- Wire types ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ---------- Provider interface ----------

// Name returns the provider identifier ("openai" or "deepseek").
func (c *OpenAICompatible) Name() string { return c.name }

// Generate sends one chat completion request and returns the first
// choice's message content.
func (c *OpenAICompatible) Generate(ctx context.Context, turns []history.Turn, message string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	messages := make([]chatMessage, 0, len(turns)+2)
	if c.system != "" {
		messages = append(messages, chatMessage{Role: c.roles.System, Content: c.system})
	}
	for _, turn := range turns {
		messages = append(messages, chatMessage{Role: c.mapRole(turn.Role), Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: c.roles.User, Content: message})

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", c.model,
		"messages", len(messages),
		"endpoint", endpoint,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("provider error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return "", &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(respBody), 500),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("provider error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("chat completion done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", chatResp.Choices[0].FinishReason,
	)

	return content, nil
}

// ListModels fetches the backend's model catalog.
func (c *OpenAICompatible) ListModels(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(respBody), 500),
		}
	}

	var parsed modelsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	models := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// mapRole translates a stored role into this backend's vocabulary.
func (c *OpenAICompatible) mapRole(role history.Role) string {
	if role == history.RoleAssistant {
		return c.roles.Assistant
	}
	return c.roles.User
}

// truncate shortens s for log output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var _ Provider = (*OpenAICompatible)(nil)
