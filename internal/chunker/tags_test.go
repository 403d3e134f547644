package chunker_test

import (
	"testing"

	"github.com/valpere/chunktran/internal/chunker"
)

func TestExtractBetweenTags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"absent open tag", "no tags here", ""},
		{"single pair", "<a>hello</a>", "hello"},
		{"repeated pairs concatenate", "<a>hi</a><a>there</a>", "hithere"},
		{"unclosed consumes remainder", "<a>unclosed", "unclosed"},
		{"surrounding noise", "Sure!\n<a>x</a>\nbye", "x"},
		{"close before open is ignored", "</a>junk<a>kept</a>", "kept"},
		{"empty answer", "<a></a>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunker.ExtractBetweenTags(tt.text, "<a>", "</a>"); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFindBetweenTags_DistinguishesMissingFromEmpty(t *testing.T) {
	if s, ok := chunker.FindBetweenTags("<output></output>", "<output>", "</output>"); !ok || s != "" {
		t.Errorf("expected found empty answer, got %q found=%v", s, ok)
	}
	if s, ok := chunker.FindBetweenTags("plain answer", "<output>", "</output>"); ok || s != "" {
		t.Errorf("expected not found, got %q found=%v", s, ok)
	}
}

func TestTagPair(t *testing.T) {
	tag := chunker.Tag("output")
	if tag.Open != "<output>" || tag.Close != "</output>" {
		t.Fatalf("unexpected pair %+v", tag)
	}
	if chunker.Tag("<document>") != chunker.Tag("document") {
		t.Error("Tag should accept names with angle brackets")
	}

	wrapped := tag.Wrap("body\n")
	if wrapped != "<output>\nbody\n</output>" {
		t.Errorf("unexpected wrap %q", wrapped)
	}
	if got := tag.Extract(wrapped); got != "\nbody\n" {
		t.Errorf("unexpected extract %q", got)
	}
	if _, ok := tag.Find("nothing"); ok {
		t.Error("expected Find to report missing tag")
	}
}
