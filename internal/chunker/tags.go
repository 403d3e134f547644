package chunker

import "strings"

// TagPair is a matched open/close delimiter such as <output>...</output>.
type TagPair struct {
	Open  string
	Close string
}

// Tag builds the XML-style pair <name> / </name>.
func Tag(name string) TagPair {
	name = strings.Trim(strings.TrimSpace(name), "<>/")
	return TagPair{Open: "<" + name + ">", Close: "</" + name + ">"}
}

// Wrap returns body enclosed in the pair, with the open tag on its own line.
func (t TagPair) Wrap(body string) string {
	return t.Open + "\n" + body + t.Close
}

// Extract is ExtractBetweenTags for this pair.
func (t TagPair) Extract(text string) string {
	return ExtractBetweenTags(text, t.Open, t.Close)
}

// Find is FindBetweenTags for this pair.
func (t TagPair) Find(text string) (string, bool) {
	return FindBetweenTags(text, t.Open, t.Close)
}

func (t TagPair) String() string { return t.Open + "..." + t.Close }

// ExtractBetweenTags returns the concatenation of every region of text that
// follows an occurrence of open, cut at the first close inside that region.
// A region without close runs to the next open (or the end of text). If open
// does not occur at all the result is "".
func ExtractBetweenTags(text, open, close string) string {
	s, _ := FindBetweenTags(text, open, close)
	return s
}

// FindBetweenTags is ExtractBetweenTags that also reports whether open was
// present, so an empty answer can be told apart from a missing one.
func FindBetweenTags(text, open, close string) (string, bool) {
	if open == "" || !strings.Contains(text, open) {
		return "", false
	}

	var sb strings.Builder
	for _, segment := range strings.Split(text, open)[1:] {
		if close != "" {
			if idx := strings.Index(segment, close); idx >= 0 {
				segment = segment[:idx]
			}
		}
		sb.WriteString(segment)
	}
	return sb.String(), true
}
