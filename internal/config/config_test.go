package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/valpere/chunktran/internal/llm"
)

// newFlags mirrors the subset of translate flags the tests touch.
func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("translate", pflag.ContinueOnError)
	fs.StringP("input", "i", "", "")
	fs.StringP("output", "o", "", "")
	fs.StringP("target", "t", "", "")
	fs.String("backend", DefaultBackend, "")
	fs.String("model", "", "")
	fs.Int("lines", DefaultLines, "")
	fs.String("chunking", DefaultChunking, "")
	fs.Duration("timeout", 0, "")
	fs.String("answer-tag", "", "")
	fs.String("request-tag", "", "")
	fs.String("log-level", "info", "")
	fs.String("config", "", "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

// unsetEnv clears a variable for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func clearBackendEnv(t *testing.T) {
	for _, key := range []string{"OLLAMA_URL", "GOOGLE_API_KEY", "OPENROUTER_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS", "CHUNKTRAN_LINES", "CHUNKTRAN_LOG_LEVEL"} {
		unsetEnv(t, key)
	}
}

var required = []string{"-i", "in.md", "-o", "out.md", "-t", "Ukrainian"}

func TestLoad_Defaults(t *testing.T) {
	clearBackendEnv(t)
	cfg, err := Load(newFlags(t, required...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Lines != DefaultLines || cfg.Chunking != "exact" || cfg.OnFailure != "skip" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Backend != "ollama" || cfg.Source != "auto" || cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Temperature != llm.DefaultTemperature || cfg.DB != DefaultDBPath {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "auto" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Input != "in.md" || cfg.Output != "out.md" || cfg.Target != "Ukrainian" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("CHUNKTRAN_LINES", "5")
	t.Setenv("CHUNKTRAN_LOG_LEVEL", "debug")

	cfg, err := Load(newFlags(t, required...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Lines != 5 {
		t.Errorf("expected lines 5 from env, got %d", cfg.Lines)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug from env, got %q", cfg.Log.Level)
	}
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	clearBackendEnv(t)
	t.Setenv("CHUNKTRAN_LINES", "5")

	cfg, err := Load(newFlags(t, append(required, "--lines", "7")...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Lines != 7 {
		t.Errorf("expected lines 7 from flag, got %d", cfg.Lines)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearBackendEnv(t)
	path := filepath.Join(t.TempDir(), "chunktran.yaml")
	content := "lines: 9\ntimeout: 45s\non_failure: source\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlags(t, required...), WithConfigFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Lines != 9 || cfg.OnFailure != "source" {
		t.Errorf("config file not applied: %+v", cfg)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Timeout)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected nested log level, got %q", cfg.Log.Level)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearBackendEnv(t)
	_, err := Load(newFlags(t, required...), WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_EnvFileProvidesKey(t *testing.T) {
	clearBackendEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("GOOGLE_API_KEY=from-env-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GOOGLE_API_KEY") })

	cfg, err := Load(newFlags(t, append(required, "--backend", "gemini")...), WithEnvFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lc := cfg.LLMConfig()
	if lc.APIKey != "from-env-file" {
		t.Errorf("expected key from env file, got %q", lc.APIKey)
	}
	if lc.Model != llm.DefaultGeminiModel {
		t.Errorf("expected default gemini model, got %q", lc.Model)
	}
}

func TestLoad_GeminiWithoutKey(t *testing.T) {
	clearBackendEnv(t)
	_, err := Load(newFlags(t, append(required, "--backend", "gemini")...))
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if llm.KindOf(err) != llm.KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing target", []string{"-i", "in.md", "-o", "out.md"}, "target"},
		{"bad chunking", append(required, "--chunking", "paragraphs"), "chunking"},
		{"zero lines", append(required, "--lines", "0"), "lines"},
		{"unknown backend", append(required, "--backend", "deepl"), "backend"},
		{"duplicate tags", append(required, "--answer-tag", "document"), "tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearBackendEnv(t)
			_, err := Load(newFlags(t, tt.args...))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLLMConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantModel string
		wantKey   string
		wantURL   string
	}{
		{
			name:      "ollama defaults",
			cfg:       Config{Backend: "ollama", OllamaURL: "http://gpu:11434"},
			wantModel: llm.DefaultOllamaModel,
			wantURL:   "http://gpu:11434",
		},
		{
			name:      "gemini key",
			cfg:       Config{Backend: "gemini", GoogleAPIKey: "g-key", OpenRouterAPIKey: "o-key"},
			wantModel: llm.DefaultGeminiModel,
			wantKey:   "g-key",
		},
		{
			name:      "openrouter keeps model",
			cfg:       Config{Backend: "openrouter", Model: "qwen/qwen3-32b", GoogleAPIKey: "g-key", OpenRouterAPIKey: "o-key"},
			wantModel: "qwen/qwen3-32b",
			wantKey:   "o-key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := tt.cfg.LLMConfig()
			if lc.Model != tt.wantModel || lc.APIKey != tt.wantKey || lc.BaseURL != tt.wantURL {
				t.Errorf("got model=%q key=%q url=%q", lc.Model, lc.APIKey, lc.BaseURL)
			}
			if lc.AnswerTag.Open != "<output>" || lc.RequestTag.Open != "<document>" {
				t.Errorf("unexpected tags %+v %+v", lc.RequestTag, lc.AnswerTag)
			}
		})
	}
}

func TestFlagKey(t *testing.T) {
	tests := map[string]string{
		"lines":                 "lines",
		"translate-prompt-file": "translate_prompt_file",
		"log-level":             "log.level",
		"log-format":            "log.format",
		"no-color":              "log.no_color",
	}
	for flag, want := range tests {
		if got := FlagKey(flag); got != want {
			t.Errorf("FlagKey(%q) = %q, want %q", flag, got, want)
		}
	}
}
