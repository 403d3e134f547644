// Package prompt builds the request envelopes sent to the model.
//
// Every envelope is an instruction followed by tagged payloads. The same Tags
// value is used to build the request and to extract the answer, so the
// instruction always names the tag the extractor looks for.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valpere/chunktran/internal/chunker"
)

// Tags is the delimiter configuration shared by envelopes and extraction.
type Tags struct {
	Request chunker.TagPair
	Draft   chunker.TagPair
	Answer  chunker.TagPair
}

// DefaultTags returns <document>, <translated> and <output>.
func DefaultTags() Tags {
	return Tags{
		Request: chunker.Tag("document"),
		Draft:   chunker.Tag("translated"),
		Answer:  chunker.Tag("output"),
	}
}

// NewTags builds a Tags value from bare names; empty names keep the default.
func NewTags(request, draft, answer string) Tags {
	t := DefaultTags()
	if request != "" {
		t.Request = chunker.Tag(request)
	}
	if draft != "" {
		t.Draft = chunker.Tag(draft)
	}
	if answer != "" {
		t.Answer = chunker.Tag(answer)
	}
	return t
}

// Validate rejects configurations where two roles share a tag, which would
// make the answer indistinguishable from the echoed payload.
func (t Tags) Validate() error {
	seen := map[string]string{}
	for role, pair := range map[string]chunker.TagPair{"request": t.Request, "draft": t.Draft, "answer": t.Answer} {
		if pair.Open == "" || pair.Close == "" {
			return fmt.Errorf("%s tag is empty", role)
		}
		if other, ok := seen[pair.Open]; ok {
			return fmt.Errorf("%s and %s tags are both %s", other, role, pair.Open)
		}
		seen[pair.Open] = role
	}
	return nil
}

// Translate returns instruction + <document>\n + chunk + </document>.
func (t Tags) Translate(instruction, chunk string) string {
	return instruction + t.Request.Wrap(chunk)
}

// Fix returns the fixer envelope carrying the original chunk and the draft.
func (t Tags) Fix(instruction, original, draft string) string {
	return instruction + t.Request.Wrap(original) + "\n" + t.Draft.Wrap(draft)
}

// DefaultTranslateInstruction is used when no translate prompt file is given.
func DefaultTranslateInstruction(sourceLang, targetLang string, tags Tags) string {
	var sb strings.Builder
	if sourceLang == "" || sourceLang == "auto" {
		fmt.Fprintf(&sb, "You are a professional translator. Translate the document below into %s.\n", targetLang)
	} else {
		fmt.Fprintf(&sb, "You are a professional translator. Translate the document below from %s to %s.\n", sourceLang, targetLang)
	}
	sb.WriteString("Keep the line structure, markdown formatting, names and numbers exactly as they are.\n")
	fmt.Fprintf(&sb, "The document is enclosed in %s and %s.\n", tags.Request.Open, tags.Request.Close)
	fmt.Fprintf(&sb, "Write ONLY the translation between %s and %s. Do not include any explanation.\n", tags.Answer.Open, tags.Answer.Close)
	return sb.String()
}

// DefaultFixerInstruction is the literary-editor prompt for the second pass.
func DefaultFixerInstruction(sourceLang, targetLang string, tags Tags) string {
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "the source language"
	}
	return fmt.Sprintf(`You are an elite %s literary editor and prose stylist.

# YOUR TASK: COMPARE AND FIX

You will receive the ORIGINAL text (%s) enclosed in %s and a DRAFT %s translation enclosed in %s.
Compare them line by line and REWRITE the draft where it is wrong or unnatural.

**What to Fix:**
- Omitted or added content
- Mistranslated words and phrases
- Awkward literal translations → Natural expressions

**What to Preserve:**
- All factual content and meaning
- Line structure and markdown formatting
- Character names and proper nouns

CRITICAL: If the draft is already good, return it unchanged.

Write ONLY the corrected %s translation between %s and %s. Do not include any explanation.
`,
		targetLang,
		sourceLang, tags.Request.Open, targetLang, tags.Draft.Open,
		targetLang, tags.Answer.Open, tags.Answer.Close,
	)
}

// WithGlossary appends a terminology section listing terms in source order.
func WithGlossary(instruction string, terms map[string]string) string {
	if len(terms) == 0 {
		return instruction
	}
	keys := make([]string, 0, len(terms))
	for k := range terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(instruction)
	if !strings.HasSuffix(instruction, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\nTERMINOLOGY (use these exact translations):\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s → %s\n", k, terms[k])
	}
	sb.WriteString("\n")
	return sb.String()
}

// WithHint appends an extra instruction line when hint is non-empty.
func WithHint(instruction, hint string) string {
	if hint == "" {
		return instruction
	}
	if !strings.HasSuffix(instruction, "\n") {
		instruction += "\n"
	}
	return instruction + hint + "\n"
}
