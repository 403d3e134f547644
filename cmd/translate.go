/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/valpere/chunktran/internal"
	"github.com/valpere/chunktran/internal/chunker"
	"github.com/valpere/chunktran/internal/config"
	"github.com/valpere/chunktran/internal/detector"
	"github.com/valpere/chunktran/internal/llm"
	"github.com/valpere/chunktran/internal/logging"
	"github.com/valpere/chunktran/internal/markdown"
	"github.com/valpere/chunktran/internal/orchestrator"
	"github.com/valpere/chunktran/internal/prompt"
	"github.com/valpere/chunktran/internal/store"
	"github.com/valpere/chunktran/internal/tokenizer"
	"github.com/valpere/chunktran/internal/validator"
)

var (
	configFile string
	envFile    string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a document chunk by chunk",
	Long: `Translate a document with a language model, a fixed number of lines at a time.

Every chunk is wrapped in <document> tags behind a translation instruction,
sent to the backend, and the text between the <output> tags of the answer is
appended to the output file immediately. The output is opened for append, so
rerunning a command adds a second translation after the first.

Available backends:
  - ollama      Local Ollama server (OLLAMA_URL, default http://127.0.0.1:11434)
  - gemini      Gemini API (requires GOOGLE_API_KEY)
  - openrouter  OpenRouter (requires OPENROUTER_API_KEY and --model)
  - google      Google Cloud Translation (GOOGLE_APPLICATION_CREDENTIALS)

Two-pass translation:
  --fix         Send every draft back with its source for correction

Every flag can also be set as CHUNKTRAN_<FLAG> (dashes as underscores) or in
a YAML file passed with --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags(), config.WithConfigFile(configFile), config.WithEnvFile(envFile))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runTranslate(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runTranslate executes one translation run. Everything that can be checked
// up front is checked before the output file is opened.
func runTranslate(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}

	if samePath(cfg.Input, cfg.Output) {
		return fmt.Errorf("input file and output file cannot be the same")
	}

	raw, err := os.ReadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	text := string(raw)

	mode, err := chunker.ParseMode(cfg.Chunking)
	if err != nil {
		return err
	}
	policy, err := orchestrator.ParseFailurePolicy(cfg.OnFailure)
	if err != nil {
		return err
	}
	tags, err := cfg.Tags()
	if err != nil {
		return err
	}

	sourceLang, sourceCode := resolveSource(cfg.Source, text, log)
	targetCode, _ := validator.ISOCode(cfg.Target)

	translateInstr, err := readPrompt(cfg.TranslatePromptFile)
	if err != nil {
		return err
	}
	fixerInstr, err := readPrompt(cfg.FixerPromptFile)
	if err != nil {
		return err
	}

	// google takes codes; the other backends only see the prompt
	lc := cfg.LLMConfig()
	if sourceCode != "" {
		lc.SourceLang = sourceCode
	}
	if targetCode != "" {
		lc.TargetLang = targetCode
	}
	client, err := buildClient(ctx, lc)
	if err != nil {
		return err
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}

	var db *store.Store
	if cfg.DB != "" {
		db, err = openStore(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		terms, err := db.GetGlossaryTerms(ctx, sourceCode, targetCode)
		if err != nil {
			return fmt.Errorf("failed to load glossary: %w", err)
		}
		if len(terms) > 0 {
			if translateInstr == "" {
				translateInstr = prompt.DefaultTranslateInstruction(sourceLang, cfg.Target, tags)
			}
			if fixerInstr == "" {
				fixerInstr = prompt.DefaultFixerInstruction(sourceLang, cfg.Target, tags)
			}
			translateInstr = prompt.WithGlossary(translateInstr, terms)
			fixerInstr = prompt.WithGlossary(fixerInstr, terms)
			log.Info().Int("terms", len(terms)).Msg("glossary applied")
		}
	}

	run := &internal.Run{
		InputPath:  cfg.Input,
		OutputPath: cfg.Output,
		Backend:    client.Name(),
		Model:      lc.Model,
		SourceLang: sourceLang,
		TargetLang: cfg.Target,
	}
	if db != nil {
		if err := db.CreateRun(ctx, run); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	orchCfg := orchestrator.Config{
		LinesPerChunk:        cfg.Lines,
		Chunking:             mode,
		SourceLang:           sourceLang,
		TargetLang:           cfg.Target,
		Model:                lc.Model,
		SystemPrompt:         lc.SystemPrompt,
		TranslateInstruction: translateInstr,
		FixerInstruction:     fixerInstr,
		Fix:                  cfg.Fix,
		Tags:                 tags,
		OnFailure:            policy,
		MaxAttempts:          cfg.MaxRetries + 1,
		StripReasoning:       cfg.StripReasoning,
		Protect:              cfg.Protect,
		RunID:                run.ID,
		MaxTokens:            llm.MaxTokens(lc),
		ContextWindow:        cfg.ContextWindow,
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(log),
		orchestrator.WithProgress(stdout),
	}
	if db != nil {
		opts = append(opts, orchestrator.WithJournal(db))
		if !cfg.NoCache {
			opts = append(opts, orchestrator.WithMemory(db))
		}
	}
	if cfg.CheckLanguage {
		opts = append(opts, orchestrator.WithValidator(plainTextValidator{v: validator.New()}))
	}
	// estimates are only reported with a context window or at debug level
	if cfg.ContextWindow > 0 || log.GetLevel() <= zerolog.DebugLevel {
		loadCtx, cancel := context.WithTimeout(ctx, tokenizerLoadTimeout)
		counter, err := tokenizer.Load(loadCtx, tokenizer.DefaultEncoding)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("token estimates disabled")
		} else {
			opts = append(opts, orchestrator.WithTokenCounter(counter))
		}
	}

	orch := orchestrator.New(client, orchCfg, opts...)

	if dir := filepath.Dir(cfg.Output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return finishRun(db, run.ID, nil, fmt.Errorf("failed to create output directory: %w", err))
		}
	}
	out, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return finishRun(db, run.ID, nil, fmt.Errorf("failed to open output file: %w", err))
	}

	start := time.Now()
	res, runErr := orch.Run(ctx, text, out)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close output file: %w", err)
	}
	if err := finishRun(db, run.ID, res, runErr); err != nil {
		return err
	}

	if cfg.HTML != "" {
		if err := markdown.RenderFile(cfg.Output, cfg.HTML); err != nil {
			return err
		}
	}

	printSummary(stdout, cfg, sourceLang, res, time.Since(start))
	return nil
}

// finishRun closes the run record and passes runErr through.
func finishRun(db *store.Store, runID string, res *orchestrator.Result, runErr error) error {
	if db == nil || runID == "" {
		return runErr
	}
	status := internal.RunCompleted
	msg := ""
	switch {
	case errors.Is(runErr, context.Canceled):
		status = internal.RunCanceled
		msg = runErr.Error()
	case runErr != nil:
		status = internal.RunFailed
		msg = runErr.Error()
	}
	chunks, failed := 0, 0
	if res != nil {
		chunks, failed = res.Chunks, res.Failed
	}
	// the run may have been interrupted; the record must still be closed
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.FinishRun(ctx, runID, status, chunks, failed, msg); err != nil && runErr == nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return runErr
}

// resolveSource returns the source language for the prompt and its ISO code.
// "auto" is resolved from the document head; when detection fails the prompt
// does not name a source language.
func resolveSource(source, text string, log zerolog.Logger) (name, code string) {
	if source != "" && source != "auto" {
		code, _ = validator.ISOCode(source)
		return source, code
	}
	name, code, ok := detector.New().DetectDocument(text)
	if !ok {
		log.Warn().Msg("could not detect source language")
		return "auto", ""
	}
	log.Info().Str("language", name).Str("code", code).Msg("detected source language")
	return name, code
}

func readPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return string(data), nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

func printSummary(w io.Writer, cfg *config.Config, sourceLang string, res *orchestrator.Result, elapsed time.Duration) {
	fmt.Fprintf(w, "Successfully translated %s to %s\n", sourceLang, cfg.Target)
	fmt.Fprintf(w, "Chunks written: %d/%d", res.Written(), res.Chunks)
	if res.Failed > 0 {
		fmt.Fprintf(w, " (%d failed, policy %s)", res.Failed, cfg.OnFailure)
	}
	fmt.Fprintln(w)
	if res.Cached > 0 {
		fmt.Fprintf(w, "From memory: %d\n", res.Cached)
	}
	if cfg.Fix {
		fmt.Fprintf(w, "Fixed: %d, kept draft: %d\n", res.Fixed, res.FixFallbacks)
	}
	if res.ValidationWarnings > 0 {
		fmt.Fprintf(w, "Language warnings: %d\n", res.ValidationWarnings)
	}
	fmt.Fprintf(w, "Elapsed: %s\n", elapsed.Round(time.Second))
	if cfg.HTML != "" {
		fmt.Fprintf(w, "HTML written to %s\n", cfg.HTML)
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringVar(&configFile, "config", "", "YAML config file")
	f.StringVar(&envFile, "env-file", "", "Env file to load (default ./.env when present)")

	f.StringP("input", "i", "", "Input file to translate (required)")
	f.StringP("output", "o", "", "Output file, appended to (required)")
	f.StringP("source", "s", "auto", "Source language (name or code, auto to detect)")
	f.StringP("target", "t", "", "Target language (name or code, required)")

	f.String("backend", config.DefaultBackend, "Backend: ollama, gemini, openrouter or google")
	f.String("model", "", "Model name (backend default if empty)")
	f.String("system-prompt", "", "System prompt sent with every request")
	f.Float64("temperature", llm.DefaultTemperature, "Sampling temperature")
	f.Int("max-tokens", 0, "Output token budget (backend default if 0)")
	f.Duration("timeout", 0, "Per-request timeout (0 = none)")
	f.Int("context-window", 0, "Model context size in tokens; warns when a request may not fit (0 = off)")

	f.Int("lines", config.DefaultLines, "Lines per chunk")
	f.String("chunking", config.DefaultChunking, "Chunking mode: exact or legacy")
	f.Bool("fix", false, "Run a correction pass over every draft")
	f.String("translate-prompt-file", "", "File with the translation instruction")
	f.String("fixer-prompt-file", "", "File with the fixer instruction")
	f.String("request-tag", "", "Tag wrapping the source chunk (default document)")
	f.String("draft-tag", "", "Tag wrapping the draft in fix requests (default translated)")
	f.String("answer-tag", "", "Tag the model wraps its answer in (default output)")

	f.String("on-failure", config.DefaultOnFailure, "Failed chunk policy: skip, source or abort")
	f.Int("max-retries", config.DefaultMaxRetries, "Retries per request for network, timeout and 5xx/429 errors")
	f.Bool("strip-reasoning", false, "Remove <think> style blocks and echoed preambles from answers")
	f.Bool("protect", false, "Replace code and markup with [PHn] markers during translation")
	f.Bool("validate", false, "Warn when a chunk is not in the target language")

	f.String("db", config.DefaultDBPath, "Database for run history, chunk memory and glossary (empty to disable)")
	f.Bool("no-cache", false, "Do not reuse or remember translated chunks")
	f.String("html", "", "Also render the output to this HTML file")

	f.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	f.String("log-format", logging.FormatAuto, "Log format: auto, console or json")
	f.Bool("no-color", false, "Disable colored console logs")
}
