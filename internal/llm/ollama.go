package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ollamaClient struct {
	baseURL     string
	model       string
	system      string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func newOllamaClient(cfg Config) *ollamaClient {
	return &ollamaClient{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		system:      cfg.SystemPrompt,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      newHTTPClient(cfg.Timeout),
	}
}

func (c *ollamaClient) Name() string { return string(BackendOllama) }

func (c *ollamaClient) Ask(ctx context.Context, msg string) (string, error) {
	var messages []message
	if c.system != "" {
		messages = append(messages, message{Role: "system", Content: c.system})
	}
	messages = append(messages, message{Role: "user", Content: msg})

	req := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}

	var resp ollamaChatResponse
	if err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", newError(KindBackend, c.Name(), errors.New(resp.Error))
	}
	if !resp.Done && resp.Message.Content == "" {
		return "", newError(KindMalformed, c.Name(), fmt.Errorf("incomplete response from model %s", c.model))
	}
	return resp.Message.Content, nil
}

// Ping checks that the server answers on /api/tags.
func (c *ollamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return newError(KindConfig, c.Name(), err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(c.Name(), fmt.Errorf("ollama not available at %s: %w", c.baseURL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: KindBackend, Backend: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("ollama not available at %s", c.baseURL)}
	}
	return nil
}
