// Package orchestrator runs the chunked translation pipeline.
//
// A document is split into chunks which are processed strictly in order:
// each chunk is translated, optionally passed through the fixer, and appended
// to the output before the next chunk starts. Nothing is rolled back; a
// failed run leaves every chunk written so far in place.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/valpere/chunktran/internal"
	"github.com/valpere/chunktran/internal/chunker"
	"github.com/valpere/chunktran/internal/llm"
	"github.com/valpere/chunktran/internal/placeholder"
	"github.com/valpere/chunktran/internal/postprocess"
	"github.com/valpere/chunktran/internal/prompt"
)

// ErrNoAnswer means the response carried no answer tag at all.
var ErrNoAnswer = errors.New("no tagged answer in response")

// FailurePolicy decides what happens to a chunk whose translation failed.
type FailurePolicy string

const (
	// OnFailureSkip writes nothing for the chunk and continues.
	OnFailureSkip FailurePolicy = "skip"
	// OnFailureSource writes the untranslated chunk and continues.
	OnFailureSource FailurePolicy = "source"
	// OnFailureAbort stops the run and returns the error.
	OnFailureAbort FailurePolicy = "abort"
)

// ParseFailurePolicy accepts skip, source or abort; empty means skip.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OnFailureSkip, nil
	case OnFailureSkip, OnFailureSource, OnFailureAbort:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want skip, source or abort)", s)
	}
}

// Config controls one pipeline run.
type Config struct {
	LinesPerChunk int
	Chunking      chunker.Mode

	SourceLang string
	TargetLang string
	// Model and SystemPrompt are only used to scope remembered chunks; the
	// client already carries them.
	Model        string
	SystemPrompt string

	// Empty instructions fall back to the prompt package defaults.
	TranslateInstruction string
	FixerInstruction     string
	Fix                  bool
	Tags                 prompt.Tags

	OnFailure FailurePolicy
	// MaxAttempts is the number of calls per request, including the first.
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration

	StripReasoning bool
	Protect        bool

	// RunID stamps journal records.
	RunID string
	// MaxTokens is the backend output budget. ContextWindow, when set, is
	// the model's total token limit: a request whose estimated size plus
	// MaxTokens exceeds it is logged as a warning.
	MaxTokens     int
	ContextWindow int
}

// Journal receives one record per processed chunk.
type Journal interface {
	RecordChunk(ctx context.Context, rec internal.ChunkRecord) error
}

// Memory remembers final texts of chunks across runs.
type Memory interface {
	LookupChunk(ctx context.Context, fingerprint, source string) (string, bool, error)
	SaveChunk(ctx context.Context, fingerprint, source, finalText string) error
}

// LanguageValidator checks the language of a translated chunk.
type LanguageValidator interface {
	IsValid(text, targetLang string) (bool, error)
}

// TokenCounter estimates request sizes.
type TokenCounter interface {
	Count(text string) int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithJournal records every processed chunk in j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithMemory reuses and remembers final chunk texts.
func WithMemory(m Memory) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithValidator checks the language of every final chunk.
func WithValidator(v LanguageValidator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithTokenCounter logs a size estimate for every request.
func WithTokenCounter(c TokenCounter) Option {
	return func(o *Orchestrator) { o.counter = c }
}

// WithProgress prints a line per chunk to w.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) { o.progress = w }
}

type Orchestrator struct {
	client    llm.Client
	cfg       Config
	log       zerolog.Logger
	journal   Journal
	memory    Memory
	validator LanguageValidator
	counter   TokenCounter
	progress  io.Writer

	translateInstr string
	fixerInstr     string
	fingerprint    string
	state          State
}

// New prepares an orchestrator; defaults are applied to cfg here.
func New(client llm.Client, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Tags.Answer.Open == "" {
		cfg.Tags = prompt.DefaultTags()
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = OnFailureSkip
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 30 * time.Second
	}
	if cfg.Chunking == "" {
		cfg.Chunking = chunker.ModeExact
	}

	o := &Orchestrator{
		client: client,
		cfg:    cfg,
		log:    zerolog.Nop(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.translateInstr = cfg.TranslateInstruction
	if o.translateInstr == "" {
		o.translateInstr = prompt.DefaultTranslateInstruction(cfg.SourceLang, cfg.TargetLang, cfg.Tags)
	}
	o.fixerInstr = cfg.FixerInstruction
	if o.fixerInstr == "" {
		o.fixerInstr = prompt.DefaultFixerInstruction(cfg.SourceLang, cfg.TargetLang, cfg.Tags)
	}
	if cfg.Protect {
		o.translateInstr = prompt.WithHint(o.translateInstr, placeholder.InstructionHint())
		o.fixerInstr = prompt.WithHint(o.fixerInstr, placeholder.InstructionHint())
	}
	o.fingerprint = o.computeFingerprint()

	return o
}

// Fingerprint identifies everything that shapes a chunk's answer besides the
// chunk itself: backend, model, instructions and tags.
func (o *Orchestrator) Fingerprint() string { return o.fingerprint }

// State reports where the pipeline currently is.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) computeFingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		o.client.Name(), o.cfg.Model, o.cfg.SystemPrompt,
		o.cfg.SourceLang, o.cfg.TargetLang, o.translateInstr,
		fmt.Sprintf("fix=%t strip=%t protect=%t", o.cfg.Fix, o.cfg.StripReasoning, o.cfg.Protect),
		o.cfg.Tags.Request.Open, o.cfg.Tags.Draft.Open, o.cfg.Tags.Answer.Open,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if o.cfg.Fix {
		h.Write([]byte(o.fixerInstr))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (o *Orchestrator) setState(s State, index int) {
	o.state = s
	o.log.Trace().Int("chunk", index).Stringer("state", s).Msg("state")
}

// Run translates document chunk by chunk and appends every result to out as
// soon as it is ready. The returned Result is non-nil even on error.
func (o *Orchestrator) Run(ctx context.Context, document string, out io.Writer) (*Result, error) {
	res := &Result{}

	o.setState(StateChunking, -1)
	chunks := chunker.Split(document, o.cfg.LinesPerChunk, o.cfg.Chunking)
	res.Chunks = len(chunks)
	o.log.Info().Int("chunks", len(chunks)).Int("lines_per_chunk", o.cfg.LinesPerChunk).
		Str("chunking", string(o.cfg.Chunking)).Str("backend", o.client.Name()).Bool("fix", o.cfg.Fix).
		Msg("starting translation")
	if o.progress != nil {
		fmt.Fprintf(o.progress, "Total number of chunks: %d\n", len(chunks))
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			o.setState(StateIdle, i)
			return res, err
		}

		start := time.Now()
		cr := o.processChunk(ctx, i, chunk)
		outcome := ChunkOutcome{Index: i, Status: cr.status, Attempts: cr.attempts, Err: cr.err, Latency: time.Since(start)}

		text, write := cr.text, true
		if cr.err != nil {
			res.Failed++
			if errors.Is(cr.err, ErrNoAnswer) {
				res.MissingTag++
			}
			if errors.Is(cr.err, context.Canceled) || ctx.Err() != nil {
				res.Outcomes = append(res.Outcomes, outcome)
				o.record(ctx, i, chunk, cr, outcome.Latency)
				return res, cr.err
			}

			evt := o.log.Error().Err(cr.err).Int("chunk", i).Int("attempts", cr.attempts)
			if kind := llm.KindOf(cr.err); kind != "" {
				evt = evt.Str("kind", string(kind))
			}
			evt.Str("policy", string(o.cfg.OnFailure)).Msg("chunk failed")

			switch o.cfg.OnFailure {
			case OnFailureAbort:
				res.Outcomes = append(res.Outcomes, outcome)
				o.record(ctx, i, chunk, cr, outcome.Latency)
				o.setState(StateIdle, i)
				return res, fmt.Errorf("chunk %d: %w", i, cr.err)
			case OnFailureSource:
				text, cr.text = chunk, chunk
				res.SourceKept++
				outcome.Status = internal.ChunkSource
				cr.status = internal.ChunkSource
			default:
				write = false
			}
		}

		if write {
			o.setState(StateAppending, i)
			if _, err := io.WriteString(out, text); err != nil {
				o.setState(StateIdle, i)
				return res, fmt.Errorf("failed to append chunk %d: %w", i, err)
			}
		}

		res.count(cr.status)
		res.FixFallbacks += cr.fixFallback
		res.ValidationWarnings += cr.warnings
		res.Outcomes = append(res.Outcomes, outcome)
		o.record(ctx, i, chunk, cr, outcome.Latency)

		o.log.Debug().Int("chunk", i).Str("status", string(outcome.Status)).Dur("latency", outcome.Latency).Msg("chunk processed")
		if o.progress != nil {
			fmt.Fprintf(o.progress, "Chunk processed: %d/%d\n", i+1, len(chunks))
		}
	}

	o.setState(StateDone, len(chunks))
	o.log.Info().Int("translated", res.Translated).Int("fixed", res.Fixed).Int("cached", res.Cached).
		Int("failed", res.Failed).Msg("translation finished")
	return res, nil
}

type chunkResult struct {
	text        string
	draft       string
	status      internal.ChunkStatus
	attempts    int
	fixFallback int
	warnings    int
	err         error
}

func (o *Orchestrator) processChunk(ctx context.Context, index int, chunk string) chunkResult {
	if strings.TrimSpace(chunk) == "" {
		return chunkResult{text: chunk, status: internal.ChunkBlank}
	}

	if o.memory != nil {
		cached, ok, err := o.memory.LookupChunk(ctx, o.fingerprint, chunk)
		if err != nil {
			o.log.Warn().Err(err).Int("chunk", index).Msg("memory lookup failed")
		} else if ok {
			o.log.Debug().Int("chunk", index).Msg("using remembered translation")
			return chunkResult{text: cached, status: internal.ChunkCached}
		}
	}

	payload := chunk
	var protected placeholder.Protected
	if o.cfg.Protect {
		protected = placeholder.Protect(chunk)
		payload = protected.Text
	}

	o.setState(StateTranslating, index)
	draft, attempts, err := o.ask(ctx, index, o.cfg.Tags.Translate(o.translateInstr, payload))
	cr := chunkResult{draft: draft, attempts: attempts, status: internal.ChunkTranslated}
	if err != nil {
		cr.status, cr.err = internal.ChunkFailed, err
		return cr
	}
	if draft == "" {
		o.log.Warn().Int("chunk", index).Msg("model returned an empty answer")
	}

	final := draft
	if o.cfg.Fix {
		o.setState(StateFixing, index)
		fixed, fixAttempts, ferr := o.ask(ctx, index, o.cfg.Tags.Fix(o.fixerInstr, payload, draft))
		cr.attempts += fixAttempts
		switch {
		case ferr != nil && ctx.Err() != nil:
			cr.status, cr.err = internal.ChunkFailed, ferr
			return cr
		case ferr != nil:
			o.log.Warn().Err(ferr).Int("chunk", index).Msg("fixer failed, keeping draft")
			cr.status, cr.fixFallback = internal.ChunkFixFallback, 1
		default:
			final, cr.status = fixed, internal.ChunkFixed
		}
	}

	if o.cfg.Protect && protected.Len() > 0 {
		if missing := protected.Missing(final); len(missing) > 0 {
			o.log.Warn().Int("chunk", index).Ints("markers", missing).Msg("placeholders lost in translation")
		}
		final = protected.Restore(final)
	}

	if o.validator != nil && o.cfg.TargetLang != "" {
		if ok, verr := o.validator.IsValid(final, o.cfg.TargetLang); !ok {
			cr.warnings++
			o.log.Warn().Err(verr).Int("chunk", index).Msg("translation may not be in the target language")
		}
	}

	// a draft kept after a failed fix is not what a healthy run would produce
	if o.memory != nil && cr.status != internal.ChunkFixFallback {
		if err := o.memory.SaveChunk(ctx, o.fingerprint, chunk, final); err != nil {
			o.log.Warn().Err(err).Int("chunk", index).Msg("failed to remember chunk")
		}
	}

	cr.text = final
	return cr
}

// ask sends msg, retrying retryable failures, and returns the extracted answer
// with the number of calls made.
func (o *Orchestrator) ask(ctx context.Context, index int, msg string) (string, int, error) {
	if o.counter != nil {
		tokens := o.counter.Count(msg)
		evt := o.log.Debug()
		if o.cfg.ContextWindow > 0 && tokens+o.cfg.MaxTokens > o.cfg.ContextWindow {
			evt = o.log.Warn()
		}
		evt.Int("chunk", index).Int("request_tokens", tokens).Int("output_budget", o.cfg.MaxTokens).
			Int("context_window", o.cfg.ContextWindow).Msg("request size")
	}

	attempts := 0
	op := func() (string, error) {
		attempts++
		resp, err := o.client.Ask(ctx, msg)
		if err != nil {
			if llm.IsRetryable(err) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return resp, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.RetryInitial
	b.MaxInterval = o.cfg.RetryMax

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(o.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.log.Warn().Err(err).Int("chunk", index).Int("attempt", attempts).Dur("retry_in", next).Msg("request failed, retrying")
		}),
	)
	if err != nil {
		return "", attempts, err
	}

	o.log.Trace().Int("chunk", index).Str("response", resp).Msg("model response")
	if o.cfg.StripReasoning {
		resp = postprocess.StripReasoning(resp)
	}
	answer, found := o.cfg.Tags.Answer.Find(resp)
	if !found {
		return "", attempts, fmt.Errorf("%w (expected %s)", ErrNoAnswer, o.cfg.Tags.Answer.Open)
	}
	if o.cfg.StripReasoning {
		answer = postprocess.Tidy(answer)
	}
	return answer, attempts, nil
}

func (o *Orchestrator) record(ctx context.Context, index int, chunk string, cr chunkResult, latency time.Duration) {
	if o.journal == nil {
		return
	}
	rec := internal.ChunkRecord{
		RunID:    o.cfg.RunID,
		Index:    index,
		Source:   chunk,
		Draft:    cr.draft,
		Final:    cr.text,
		Status:   cr.status,
		Attempts: cr.attempts,
		Latency:  latency,
	}
	if cr.err != nil {
		rec.Error = cr.err.Error()
		rec.ErrorKind = string(llm.KindOf(cr.err))
		if errors.Is(cr.err, ErrNoAnswer) {
			rec.ErrorKind = "no_answer"
		}
	}
	// the journal outlives a cancelled run
	if err := o.journal.RecordChunk(context.WithoutCancel(ctx), rec); err != nil {
		o.log.Warn().Err(err).Int("chunk", index).Msg("failed to journal chunk")
	}
}
