// Package config resolves translate settings from flags, environment,
// an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/valpere/chunktran/internal/llm"
	"github.com/valpere/chunktran/internal/logging"
	"github.com/valpere/chunktran/internal/prompt"
)

// EnvPrefix namespaces every config key in the environment.
const EnvPrefix = "CHUNKTRAN"

const (
	DefaultLines      = 20
	DefaultChunking   = "exact"
	DefaultOnFailure  = "skip"
	DefaultBackend    = "ollama"
	DefaultMaxRetries = 2
	DefaultDBPath     = "./data/chunktran.db"
)

// Config is everything the translate command needs.
type Config struct {
	Input  string `mapstructure:"input" validate:"required"`
	Output string `mapstructure:"output" validate:"required"`
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target" validate:"required"`

	Backend       string        `mapstructure:"backend" validate:"required,oneof=ollama gemini openrouter google"`
	Model         string        `mapstructure:"model"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
	Temperature   float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens     int           `mapstructure:"max_tokens" validate:"gte=0"`
	ContextWindow int           `mapstructure:"context_window" validate:"gte=0"` // 0 disables size warnings
	Timeout       time.Duration `mapstructure:"timeout" validate:"gte=0"`

	Lines               int    `mapstructure:"lines" validate:"gte=1"`
	Chunking            string `mapstructure:"chunking" validate:"oneof=exact legacy"`
	Fix                 bool   `mapstructure:"fix"`
	TranslatePromptFile string `mapstructure:"translate_prompt_file"`
	FixerPromptFile     string `mapstructure:"fixer_prompt_file"`
	RequestTag          string `mapstructure:"request_tag"`
	DraftTag            string `mapstructure:"draft_tag"`
	AnswerTag           string `mapstructure:"answer_tag"`

	OnFailure      string `mapstructure:"on_failure" validate:"oneof=skip source abort"`
	MaxRetries     int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	StripReasoning bool   `mapstructure:"strip_reasoning"`
	Protect        bool   `mapstructure:"protect"`
	CheckLanguage  bool   `mapstructure:"validate"`

	DB      string `mapstructure:"db"`
	NoCache bool   `mapstructure:"no_cache"`
	HTML    string `mapstructure:"html"`

	Log logging.Config `mapstructure:"log"`

	// Read from the conventional unprefixed variables as well.
	OllamaURL         string `mapstructure:"ollama_url" validate:"omitempty,url"`
	GoogleAPIKey      string `mapstructure:"google_api_key"`
	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	GoogleCredentials string `mapstructure:"google_credentials"`
}

// Options carries file overrides for Load.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Option is a functional option for Load.
type Option func(*Options)

// WithConfigFile sets an explicit YAML config file.
func WithConfigFile(path string) Option {
	return func(o *Options) { o.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file. Without it ./.env is used when present.
func WithEnvFile(path string) Option {
	return func(o *Options) { o.EnvFile = path }
}

// flagKeys maps flag names whose config key is not the flag name with
// dashes replaced.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"no-color":   "log.no_color",
}

// skipFlags are consumed by Load itself.
var skipFlags = map[string]bool{
	"config":   true,
	"env-file": true,
	"help":     true,
}

var envAliases = map[string]string{
	"ollama_url":         "OLLAMA_URL",
	"google_api_key":     "GOOGLE_API_KEY",
	"openrouter_api_key": "OPENROUTER_API_KEY",
	"google_credentials": "GOOGLE_APPLICATION_CREDENTIALS",
}

// Load resolves the configuration. Precedence, highest first: changed
// flags, environment, config file, defaults. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	if err := loadEnvFile(o.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if o.ConfigFile != "" {
		v.SetConfigFile(o.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", o.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", alias, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil || skipFlags[f.Name] {
				return
			}
			if err := v.BindPFlag(FlagKey(f.Name), f); err != nil {
				bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlagKey returns the config key a flag is bound to.
func FlagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("source", "auto")
	v.SetDefault("target", "")
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("model", "")
	v.SetDefault("system_prompt", "")
	v.SetDefault("temperature", llm.DefaultTemperature)
	v.SetDefault("max_tokens", 0)
	v.SetDefault("context_window", 0)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("lines", DefaultLines)
	v.SetDefault("chunking", DefaultChunking)
	v.SetDefault("fix", false)
	v.SetDefault("translate_prompt_file", "")
	v.SetDefault("fixer_prompt_file", "")
	v.SetDefault("request_tag", "")
	v.SetDefault("draft_tag", "")
	v.SetDefault("answer_tag", "")
	v.SetDefault("on_failure", DefaultOnFailure)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("strip_reasoning", false)
	v.SetDefault("protect", false)
	v.SetDefault("validate", false)
	v.SetDefault("db", DefaultDBPath)
	v.SetDefault("no_cache", false)
	v.SetDefault("html", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatAuto)
	v.SetDefault("log.no_color", false)
	v.SetDefault("ollama_url", "")
	v.SetDefault("google_api_key", "")
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("google_credentials", "")
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings each backend needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Tags(); err != nil {
		return err
	}
	return c.LLMConfig().Validate()
}

// Tags returns the delimiter configuration.
func (c *Config) Tags() (prompt.Tags, error) {
	tags := prompt.NewTags(c.RequestTag, c.DraftTag, c.AnswerTag)
	if err := tags.Validate(); err != nil {
		return prompt.Tags{}, err
	}
	return tags, nil
}

// LLMConfig maps the settings onto a client configuration, filling the
// backend's key and default model.
func (c *Config) LLMConfig() llm.Config {
	lc := llm.Config{
		Backend:      llm.Backend(strings.ToLower(c.Backend)),
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		MaxTokens:    c.MaxTokens,
		Temperature:  c.Temperature,
		Timeout:      c.Timeout,
		SourceLang:   c.Source,
		TargetLang:   c.Target,
	}
	switch lc.Backend {
	case llm.BackendOllama:
		lc.BaseURL = c.OllamaURL
		if lc.Model == "" {
			lc.Model = llm.DefaultOllamaModel
		}
	case llm.BackendGemini:
		lc.APIKey = c.GoogleAPIKey
		if lc.Model == "" {
			lc.Model = llm.DefaultGeminiModel
		}
	case llm.BackendOpenRouter:
		lc.APIKey = c.OpenRouterAPIKey
	case llm.BackendGoogle:
		lc.Credentials = c.GoogleCredentials
	}
	if tags, err := c.Tags(); err == nil {
		lc.RequestTag = tags.Request
		lc.AnswerTag = tags.Answer
	}
	return lc
}
