package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type geminiClient struct {
	endpoint    string
	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func newGeminiClient(cfg Config) *geminiClient {
	return &geminiClient{
		endpoint:    fmt.Sprintf("%s/v1beta/models/%s:generateContent", cfg.BaseURL, url.PathEscape(cfg.Model)),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		system:      cfg.SystemPrompt,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      newHTTPClient(cfg.Timeout),
	}
}

func (c *geminiClient) Name() string { return string(BackendGemini) }

// foldsSystemPrompt reports whether the model rejects systemInstruction.
// Gemma models served through the Gemini API do.
func (c *geminiClient) foldsSystemPrompt() bool {
	return strings.HasPrefix(strings.ToLower(c.model), "gemma")
}

func (c *geminiClient) buildRequest(msg string) geminiRequest {
	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}
	if c.system != "" {
		if c.foldsSystemPrompt() {
			msg = c.system + "\n\n" + msg
		} else {
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: c.system}}}
		}
	}
	req.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: msg}}}}
	return req
}

func (c *geminiClient) Ask(ctx context.Context, msg string) (string, error) {
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var resp geminiResponse
	if err := postJSON(ctx, c.client, c.Name(), c.endpoint, headers, c.buildRequest(msg), &resp); err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", newError(KindBackend, c.Name(), fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", newError(KindMalformed, c.Name(), fmt.Errorf("no candidates in response"))
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 && resp.Candidates[0].FinishReason != "" && resp.Candidates[0].FinishReason != "STOP" {
		return "", newError(KindBackend, c.Name(), fmt.Errorf("generation stopped: %s", resp.Candidates[0].FinishReason))
	}
	return sb.String(), nil
}
