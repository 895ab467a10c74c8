// gemini.go implements the Google Gemini backend via the
// generativelanguage REST API. Each Generate call opens a chat seeded
// with the assembled history and submits the new message.
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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient talks to the Gemini generateContent endpoint.
type GeminiClient struct {
	baseURL     string
	apiKey      string
	model       string
	system      string
	temperature float64
	topK        int
	topP        float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewGeminiClient creates a Gemini client from config.
func NewGeminiClient(cfg Config, logger *slog.Logger) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &GeminiClient{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		system:      cfg.SystemInstructions,
		temperature: cfg.Temperature,
		topK:        cfg.TopK,
		topP:        cfg.TopP,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger.With("component", "provider", "provider", Gemini),
	}
}

// ---------- Wire types ----------

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type geminiModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ---------- Provider interface ----------

// Name returns "gemini".
func (c *GeminiClient) Name() string { return Gemini }

// Generate seeds a chat with turns and submits message, returning the
// text of the single response candidate.
func (c *GeminiClient) Generate(ctx context.Context, turns []history.Turn, message string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	contents := make([]geminiContent, 0, len(turns)+1)
	for _, turn := range turns {
		contents = append(contents, geminiContent{
			Role:  geminiRole(turn.Role),
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: message}},
	})

	reqBody := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature: c.temperature,
			TopK:        c.topK,
			TopP:        c.topP,
		},
	}
	if c.system != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: c.system}}}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("sending generateContent",
		"model", c.model,
		"contents", len(contents),
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

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("generateContent done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", parsed.Candidates[0].FinishReason,
	)

	return content, nil
}

// ListModels fetches the Gemini model catalog.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1beta/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

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

	var parsed geminiModelsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	models := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		models = append(models, strings.TrimPrefix(m.Name, "models/"))
	}
	return models, nil
}

// geminiRole maps stored roles to Gemini's user/model vocabulary.
func geminiRole(role history.Role) string {
	if role == history.RoleAssistant {
		return "model"
	}
	return "user"
}

var _ Provider = (*GeminiClient)(nil)
