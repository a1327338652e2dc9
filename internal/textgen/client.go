// Package textgen wraps an OpenAI-compatible chat completion API as a
// plain text-generation capability. Callers are responsible for keeping
// personal data out of prompts; this client treats the prompt as opaque.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/metrics"
)

// Generator produces text from a sanitized prompt on behalf of a tenant.
type Generator interface {
	Generate(ctx context.Context, tenantID, prompt string) (string, error)
}

// Emitter is the slice of the event bus the client needs to report token
// usage.
type Emitter interface {
	Emit(ctx context.Context, evt events.Event)
}

type Config struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	emitter    Emitter
	logger     zerolog.Logger
}

// NewClient creates a text generation client. The emitter may be nil, in
// which case token usage is metered but not published as an event.
func NewClient(cfg Config, emitter Emitter, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("text generation api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		emitter:    emitter,
		logger:     logger.With().Str("component", "textgen").Logger(),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt and returns the completion text. Token usage
// from the response is recorded as an ai.usage_recorded event so spend
// anomalies surface through the automation rules.
func (c *Client) Generate(ctx context.Context, tenantID, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: 600,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "chat completion request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read chat response")
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrapf(err, "failed to parse chat response (status %d)", resp.StatusCode)
	}
	if parsed.Error != nil {
		return "", errors.Errorf("chat completion error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("chat completion returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	c.recordUsage(ctx, tenantID, parsed.Usage.TotalTokens)
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) recordUsage(ctx context.Context, tenantID string, totalTokens int) {
	if totalTokens <= 0 {
		return
	}
	metrics.TextGenTokens.Add(float64(totalTokens))
	c.logger.Debug().Str("tenant_id", tenantID).Int("total_tokens", totalTokens).Msg("recorded text generation usage")
	if c.emitter != nil {
		c.emitter.Emit(ctx, events.AIUsageRecorded{
			TenantID:    tenantID,
			Feature:     "text_generation",
			TotalTokens: totalTokens,
		})
	}
}

var _ Generator = (*Client)(nil)
