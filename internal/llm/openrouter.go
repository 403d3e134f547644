package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type openRouterClient struct {
	baseURL     string
	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type openRouterResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenRouterClient(cfg Config) *openRouterClient {
	return &openRouterClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		system:      cfg.SystemPrompt,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      newHTTPClient(cfg.Timeout),
	}
}

func (c *openRouterClient) Name() string { return string(BackendOpenRouter) }

func (c *openRouterClient) Ask(ctx context.Context, msg string) (string, error) {
	var messages []message
	if c.system != "" {
		messages = append(messages, message{Role: "system", Content: c.system})
	}
	messages = append(messages, message{Role: "user", Content: msg})

	req := openRouterRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", c.apiKey),
		"HTTP-Referer":  "https://chunktran.local",
		"X-Title":       "chunktran",
	}

	var resp openRouterResponse
	if err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}

	// OpenRouter reports some upstream failures inside a 200 response.
	if resp.Error != nil {
		return "", &Error{Kind: KindBackend, Backend: c.Name(), Status: resp.Error.Code, Err: errors.New(resp.Error.Message)}
	}
	if len(resp.Choices) == 0 {
		return "", newError(KindMalformed, c.Name(), fmt.Errorf("empty response from API"))
	}
	return resp.Choices[0].Message.Content, nil
}
