package tokenizer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCounterCounts(t *testing.T) {
	t.Parallel()

	counter, err := NewCounter("")
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}

	short := counter.Count("hello world")
	if short <= 0 {
		t.Fatalf("expected positive count, got %d", short)
	}
	long := counter.Count(strings.Repeat("hello world ", 100))
	if long <= short {
		t.Fatalf("expected longer text to have more tokens: %d <= %d", long, short)
	}
	if got := counter.Count(""); got != 0 {
		t.Fatalf("expected 0 for empty text, got %d", got)
	}
}

func TestNilCounter(t *testing.T) {
	t.Parallel()

	var counter *Counter
	if got := counter.Count("anything"); got != 0 {
		t.Fatalf("nil counter should count 0, got %d", got)
	}
}

func TestNewCounterUnknownEncoding(t *testing.T) {
	t.Parallel()

	if _, err := NewCounter("no_such_encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	counter, err := Load(ctx, DefaultEncoding)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if counter != nil {
		t.Fatal("expected no counter")
	}
}
