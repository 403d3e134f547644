// Package tokenizer estimates request sizes in BPE tokens.
package tokenizer

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is a reasonable stand-in for local and hosted chat models;
// counts are estimates, not the backend's exact tokenization.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens. A nil *Counter counts nothing.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the named encoding, or DefaultEncoding when name is empty.
func NewCounter(name string) (*Counter, error) {
	if name == "" {
		name = DefaultEncoding
	}
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Counter{encoding: encoding}, nil
}

// Load is NewCounter bounded by ctx. The encoding file is fetched and
// cached on first use, so an unreachable host would otherwise stall the run.
func Load(ctx context.Context, name string) (*Counter, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	type result struct {
		counter *Counter
		err     error
	}
	done := make(chan result, 1)
	go func() {
		c, err := NewCounter(name)
		done <- result{c, err}
	}()
	select {
	case r := <-done:
		return r.counter, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("load tokenizer: %w", ctx.Err())
	}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c == nil || c.encoding == nil || text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}
