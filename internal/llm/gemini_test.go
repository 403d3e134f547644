package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGemini(t *testing.T, url, model, system string) Client {
	t.Helper()
	c, err := New(Config{
		Backend:      BackendGemini,
		Model:        model,
		APIKey:       "test-key",
		BaseURL:      url,
		SystemPrompt: system,
		Temperature:  DefaultTemperature,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGemini_Ask_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "Be precise." {
			t.Errorf("expected system instruction, got %+v", req.SystemInstruction)
		}
		if req.GenerationConfig.MaxOutputTokens != 8512 {
			t.Errorf("expected maxOutputTokens 8512, got %d", req.GenerationConfig.MaxOutputTokens)
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"<output>one "},{"text":"two</output>"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	got, err := newTestGemini(t, server.URL, "gemini-2.5-flash", "Be precise.").Ask(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "<output>one two</output>" {
		t.Errorf("expected joined parts, got %q", got)
	}
}

func TestGemini_GemmaFoldsSystemPrompt(t *testing.T) {
	c := newTestGemini(t, "http://unused", DefaultGeminiModel, "Be precise.").(*geminiClient)
	req := c.buildRequest("translate")
	if req.SystemInstruction != nil {
		t.Error("gemma models must not receive systemInstruction")
	}
	text := req.Contents[0].Parts[0].Text
	if !strings.HasPrefix(text, "Be precise.") || !strings.HasSuffix(text, "translate") {
		t.Errorf("expected system prompt folded into user turn, got %q", text)
	}
}

func TestGemini_Ask_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	_, err := newTestGemini(t, server.URL, "gemini-2.5-flash", "").Ask(context.Background(), "hi")
	if KindOf(err) != KindBackend || !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("expected backend error naming the block reason, got %v", err)
	}
}

func TestGemini_Ask_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newTestGemini(t, server.URL, "gemini-2.5-flash", "").Ask(context.Background(), "hi")
	if KindOf(err) != KindMalformed {
		t.Errorf("expected malformed error, got %v", err)
	}
}

func TestGemini_Ask_InvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	_, err := newTestGemini(t, server.URL, "gemini-2.5-flash", "").Ask(context.Background(), "hi")
	if KindOf(err) != KindBackend {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected backend message in error, got %v", err)
	}
}

func TestGemini_Ask_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestGemini(t, server.URL, "gemini-2.5-flash", "").Ask(context.Background(), "hi")
	if !IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}
