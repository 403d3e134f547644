package llm

import (
	"context"
	"fmt"
	"strings"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/chunktran/internal/chunker"
)

// googleClient answers with a Cloud Translation result wrapped in the answer
// tags, so it can stand in for an LLM in the same pipeline. Instructions are
// ignored; only the payload between the request tags is translated.
type googleClient struct {
	source      language.Tag
	hasSource   bool
	target      language.Tag
	credentials string
	request     chunker.TagPair
	answer      chunker.TagPair
	client      *translate.Client
}

func newGoogleClient(cfg Config) (*googleClient, error) {
	target, err := language.Parse(cfg.TargetLang)
	if err != nil {
		return nil, newError(KindConfig, string(BackendGoogle), fmt.Errorf("invalid target language: %w", err))
	}

	c := &googleClient{
		target:      target,
		credentials: cfg.Credentials,
		request:     cfg.RequestTag,
		answer:      cfg.AnswerTag,
	}
	if cfg.SourceLang != "" && cfg.SourceLang != "auto" {
		source, err := language.Parse(cfg.SourceLang)
		if err != nil {
			return nil, newError(KindConfig, string(BackendGoogle), fmt.Errorf("invalid source language: %w", err))
		}
		c.source, c.hasSource = source, true
	}
	return c, nil
}

func (c *googleClient) Name() string { return string(BackendGoogle) }

// payload returns the text inside the last request-tag region, without the
// newline that follows the open tag. The instruction comes first and may name
// the tags itself. Messages without tags are used whole.
func (c *googleClient) payload(msg string) string {
	open := strings.LastIndex(msg, c.request.Open)
	if open < 0 {
		return msg
	}
	body := msg[open+len(c.request.Open):]
	if end := strings.Index(body, c.request.Close); end >= 0 {
		body = body[:end]
	}
	return strings.TrimPrefix(body, "\n")
}

func (c *googleClient) connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	var opts []option.ClientOption
	if c.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(c.credentials))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return newError(KindConfig, c.Name(), fmt.Errorf("failed to create client: %w", err))
	}
	c.client = client
	return nil
}

func (c *googleClient) Ask(ctx context.Context, msg string) (string, error) {
	if err := c.connect(ctx); err != nil {
		return "", err
	}

	opts := &translate.Options{Format: translate.Text}
	if c.hasSource {
		opts.Source = c.source
	}

	translations, err := c.client.Translate(ctx, []string{c.payload(msg)}, c.target, opts)
	if err != nil {
		if ctx.Err() != nil {
			return "", transportError(c.Name(), ctx.Err())
		}
		return "", newError(KindBackend, c.Name(), fmt.Errorf("translation failed: %w", err))
	}
	if len(translations) == 0 {
		return "", newError(KindMalformed, c.Name(), fmt.Errorf("no translation returned"))
	}
	return c.answer.Open + translations[0].Text + c.answer.Close, nil
}

// Close releases the underlying Cloud Translation client.
func (c *googleClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
