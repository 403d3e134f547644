// Package llm wraps the chat-completion backends behind a single Ask call.
//
// A Client is built from a Config by New, which validates the configuration
// and fails before any request is sent when something required is missing.
// Ask returns the backend's text verbatim, or an *Error describing why no
// answer is available.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/valpere/chunktran/internal/chunker"
)

// Backend names one of the supported inference providers.
type Backend string

const (
	BackendOllama     Backend = "ollama"
	BackendGemini     Backend = "gemini"
	BackendOpenRouter Backend = "openrouter"
	// BackendGoogle is Cloud Translation: a machine-translation baseline
	// that ignores instructions and translates the tagged payload only.
	BackendGoogle Backend = "google"
)

const (
	DefaultOllamaURL     = "http://127.0.0.1:11434"
	DefaultGeminiURL     = "https://generativelanguage.googleapis.com"
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	DefaultOllamaModel = "gemma3:12b-it-qat"
	DefaultGeminiModel = "gemma-3-27b-it"

	DefaultTemperature = 0.7
)

var defaultMaxTokens = map[Backend]int{
	BackendOllama:     10000,
	BackendGemini:     8512,
	BackendOpenRouter: 4096,
}

// Client is the capability every backend provides.
type Client interface {
	Name() string
	Ask(ctx context.Context, message string) (string, error)
}

// Pinger is implemented by backends that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config describes one backend handle. Generation parameters are fixed per
// client; streaming is never used.
type Config struct {
	Backend      Backend       `mapstructure:"backend" validate:"required,oneof=ollama gemini openrouter google"`
	Model        string        `mapstructure:"model" validate:"required_unless=Backend google"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey       string        `mapstructure:"api_key"`
	MaxTokens    int           `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature  float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// Used by BackendGoogle only.
	SourceLang  string          `mapstructure:"source_lang"`
	TargetLang  string          `mapstructure:"target_lang"`
	Credentials string          `mapstructure:"credentials"`
	RequestTag  chunker.TagPair `mapstructure:"-"`
	AnswerTag   chunker.TagPair `mapstructure:"-"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the configuration without building a client.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return newError(KindConfig, string(c.Backend), err)
	}
	switch c.Backend {
	case BackendGemini, BackendOpenRouter:
		if strings.TrimSpace(c.APIKey) == "" {
			return newError(KindConfig, string(c.Backend), ErrMissingAPIKey)
		}
	case BackendGoogle:
		if c.TargetLang == "" {
			return newError(KindConfig, string(c.Backend), fmt.Errorf("target language is required"))
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens[c.Backend]
	}
	if c.BaseURL == "" {
		switch c.Backend {
		case BackendOllama:
			c.BaseURL = DefaultOllamaURL
		case BackendGemini:
			c.BaseURL = DefaultGeminiURL
		case BackendOpenRouter:
			c.BaseURL = DefaultOpenRouterURL
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestTag.Open == "" {
		c.RequestTag = chunker.Tag("document")
	}
	if c.AnswerTag.Open == "" {
		c.AnswerTag = chunker.Tag("output")
	}
}

// New validates cfg and returns the matching backend.
func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	switch cfg.Backend {
	case BackendOllama:
		return newOllamaClient(cfg), nil
	case BackendGemini:
		return newGeminiClient(cfg), nil
	case BackendOpenRouter:
		return newOpenRouterClient(cfg), nil
	case BackendGoogle:
		return newGoogleClient(cfg)
	default:
		return nil, newError(KindConfig, string(cfg.Backend), fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}

// MaxTokens returns the output budget New would apply for cfg.
func MaxTokens(cfg Config) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens[cfg.Backend]
}
