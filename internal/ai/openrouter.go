package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultOpenRouterBaseURL is the OpenRouter API root.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// DefaultOpenRouterModel is used when no model is configured.
const DefaultOpenRouterModel = "google/gemini-flash-1.5"

// Message is a chat completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat/completions request body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Choice is one completion.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// ChatResponse is the chat/completions response body.
type ChatResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// OpenRouterClient calls an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	retrier
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewOpenRouterClient builds a client from cfg; zero values fall back to defaults.
func NewOpenRouterClient(cfg RuntimeConfig) *OpenRouterClient {
	cfg = cfg.withDefaults()
	c := &OpenRouterClient{
		retrier:     newRetrier(cfg),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
	}
	if c.model == "" || strings.HasPrefix(c.model, "gemini-") {
		c.model = DefaultOpenRouterModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultOpenRouterBaseURL
	}
	return c
}

// Model returns the configured model name.
func (c *OpenRouterClient) Model() string { return c.model }

// Generate sends the prompt as a single user message.
func (c *OpenRouterClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openrouter: %w", ErrUnavailable)
	}
	payload, err := json.Marshal(ChatRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	var out ChatResponse
	_, err = c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/insightgenie")
		req.Header.Set("X-Title", "Insight Genie")
		return req, nil
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openrouter: response has no choices")
	}
	choice := out.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", &ContentFilteredError{Reason: "SAFETY"}
	}
	return choice.Message.Content, nil
}
