// Package chunker splits documents into line-bounded chunks for LLM requests
// and pulls answers back out of tagged model responses.
package chunker

import (
	"fmt"
	"strings"
)

// Mode selects how lines are grouped into chunks.
type Mode string

const (
	// ModeExact groups exactly n lines per chunk and reproduces the input
	// byte for byte when the chunks are joined.
	ModeExact Mode = "exact"
	// ModeLegacy reproduces the historical grouping of DivideIntoChunks:
	// the first chunk carries n+1 lines and every line gets a restored "\n".
	ModeLegacy Mode = "legacy"
)

// ParseMode converts a flag value into a Mode. Empty means ModeExact.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExact:
		return ModeExact, nil
	case ModeLegacy:
		return ModeLegacy, nil
	default:
		return "", fmt.Errorf("unknown chunking mode %q (want exact or legacy)", s)
	}
}

// Split dispatches to SplitLines or DivideIntoChunks according to mode.
func Split(text string, linesPerChunk int, mode Mode) []string {
	if mode == ModeLegacy {
		return DivideIntoChunks(text, linesPerChunk)
	}
	return SplitLines(text, linesPerChunk)
}

// DivideIntoChunks splits text on "\n" and groups the parts into chunks,
// flushing after every part whose zero-based index is a positive multiple of
// linesPerChunk. Each part is re-terminated with "\n".
//
// The flush rule means the first chunk holds linesPerChunk+1 lines and the
// output always ends with "\n", even if text did not. Text without any
// newline, or linesPerChunk <= 0, yields a single chunk equal to text.
func DivideIntoChunks(text string, linesPerChunk int) []string {
	if !strings.Contains(text, "\n") || linesPerChunk <= 0 {
		return []string{text}
	}

	var (
		chunks []string
		buf    strings.Builder
	)
	for i, part := range strings.Split(text, "\n") {
		buf.WriteString(part)
		buf.WriteByte('\n')

		if i > 0 && i%linesPerChunk == 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// SplitLines groups text into chunks of exactly linesPerChunk lines; only the
// last chunk may be shorter. Lines keep their own terminators, so joining the
// chunks gives back text unchanged. Text without any newline, or
// linesPerChunk <= 0, yields a single chunk equal to text.
func SplitLines(text string, linesPerChunk int) []string {
	if !strings.Contains(text, "\n") || linesPerChunk <= 0 {
		return []string{text}
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	chunks := make([]string, 0, (len(lines)+linesPerChunk-1)/linesPerChunk)
	for start := 0; start < len(lines); start += linesPerChunk {
		end := min(start+linesPerChunk, len(lines))
		chunks = append(chunks, strings.Join(lines[start:end], ""))
	}
	return chunks
}
