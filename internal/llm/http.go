package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 2048

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// postJSON sends body to url and decodes a 2xx response into out. Non-2xx
// responses become KindBackend errors carrying the status and the backend's
// own message when one can be found.
func postJSON(ctx context.Context, hc *http.Client, backend, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return newError(KindConfig, backend, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return newError(KindConfig, backend, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return transportError(backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Kind:    KindBackend,
			Backend: backend,
			Status:  resp.StatusCode,
			Err:     errors.New(errorMessage(raw)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(backend, ctx.Err())
		}
		return newError(KindMalformed, backend, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// errorMessage digs the human-readable message out of the usual error
// envelopes: {"error":"..."} (ollama) and {"error":{"message":"..."}}
// (gemini, openai-compatible). Anything else is returned trimmed.
func errorMessage(raw []byte) string {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Error) > 0 {
		var s string
		if json.Unmarshal(env.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty error response"
	}
	return msg
}
