// Package placeholder shields markup inside a chunk from the model.
//
// Fenced code blocks, inline code spans and HTML/XML tags are replaced with
// numbered markers ([PH0], [PH1], …) before the chunk is sent, and put back
// into the extracted answer afterwards. Protecting HTML tags also keeps
// stray tags in the source from colliding with the envelope delimiters.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reFencedCode  = regexp.MustCompile("(?s)```.*?```")
	reInlineCode  = regexp.MustCompile("`[^`\n]+`")
	reHTMLTag     = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)
	rePlaceholder = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protected is a chunk with its markup swapped out for markers.
type Protected struct {
	Text      string
	originals []string
}

// Protect replaces markup in text with markers in order of appearance.
// Fenced blocks go first so their contents are never matched as inline code.
func Protect(text string) Protected {
	var originals []string
	replace := func(match string) string {
		originals = append(originals, match)
		return marker(len(originals) - 1)
	}

	text = reFencedCode.ReplaceAllStringFunc(text, replace)
	text = reInlineCode.ReplaceAllStringFunc(text, replace)
	text = reHTMLTag.ReplaceAllStringFunc(text, replace)

	return Protected{Text: text, originals: originals}
}

// Len reports how many markers were created.
func (p Protected) Len() int { return len(p.originals) }

// Restore puts the originals back into translated. Unknown indices are left
// as they are.
func (p Protected) Restore(translated string) string {
	if len(p.originals) == 0 {
		return translated
	}
	return rePlaceholder.ReplaceAllStringFunc(translated, func(match string) string {
		sub := rePlaceholder.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx >= len(p.originals) {
			return match
		}
		return p.originals[idx]
	})
}

// Missing lists the indices of markers absent from translated.
func (p Protected) Missing(translated string) []int {
	var missing []int
	for i := range p.originals {
		if !strings.Contains(translated, marker(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint is appended to the prompt when protection is enabled.
func InstructionHint() string {
	return "Preserve all [PHn] markers exactly as they appear. Do not translate, move or remove them."
}

func marker(i int) string {
	return fmt.Sprintf("[PH%d]", i)
}
