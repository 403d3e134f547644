// Package postprocess removes common LLM artifacts from model responses.
//
// StripReasoning runs on the raw response before the answer is extracted, so
// tags quoted inside a reasoning scratchpad never reach the extractor. Tidy
// runs on the extracted answer and keeps its surrounding whitespace intact,
// since chunk answers are concatenated without separators.
package postprocess

import (
	"regexp"
	"strings"
	"unicode"
)

// reasoningBlockRe matches complete <think>…</think> style blocks.
// RE2 has no backreferences, so each variant is listed.
var reasoningBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedReasoningRe matches a reasoning block the model never closed.
var truncatedReasoningRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

// StripReasoning removes closed and truncated reasoning blocks. Text outside
// the blocks is returned unchanged.
func StripReasoning(text string) string {
	text = reasoningBlockRe.ReplaceAllString(text, "")
	return truncatedReasoningRe.ReplaceAllString(text, "")
}

// echoPatterns match introductory phrases some models prepend to the answer.
// Anchored at the start and requiring a colon to avoid false positives.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:refined |polished |corrected |translated )?(?:translation|text)\s*:[ \t]*\n?`),
	regexp.MustCompile(`(?i)^(?:the )?(?:refined |polished |corrected )?(?:translation|translated text)\s*:[ \t]*\n?`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:refined |polished |corrected |translated )?(?:translation|text)\s*:[ \t]*\n?`),
}

// Tidy removes an echoed preamble and outer quote wrapping from an extracted
// answer. Leading and trailing whitespace is preserved as found.
func Tidy(answer string) string {
	core := strings.TrimFunc(answer, unicode.IsSpace)
	if core == "" {
		return answer
	}
	start := strings.Index(answer, core)
	lead, trail := answer[:start], answer[start+len(core):]

	cleaned := removeQuoteWrapping(removeInstructionEchoes(core))
	return lead + cleaned + trail
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[loc[1]:]
		}
	}
	return text
}

// removeQuoteWrapping strips one matching pair of outer quotes when the whole
// single-line text is wrapped in them.
func removeQuoteWrapping(text string) string {
	if strings.Contains(text, "\n") {
		return text
	}
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
