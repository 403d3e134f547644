package llm

import (
	"testing"

	"github.com/valpere/chunktran/internal/chunker"
)

func TestGoogle_Payload(t *testing.T) {
	c, err := newGoogleClient(Config{
		Backend:    BackendGoogle,
		TargetLang: "uk",
		RequestTag: chunker.Tag("document"),
		AnswerTag:  chunker.Tag("output"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		msg  string
		want string
	}{
		{"Translate this:<document>\nHello\nWorld\n</document>", "Hello\nWorld\n"},
		{"no tags at all", "no tags at all"},
		{"<document>\nunclosed", "unclosed"},
		{"Text is enclosed in <document> and </document>.\n<document>\nHi\n</document>", "Hi\n"},
	}
	for _, tt := range tests {
		if got := c.payload(tt.msg); got != tt.want {
			t.Errorf("payload(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestGoogle_SourceLanguage(t *testing.T) {
	c, err := newGoogleClient(Config{Backend: BackendGoogle, TargetLang: "uk", SourceLang: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.hasSource || c.source.String() != "en" {
		t.Errorf("expected explicit source 'en', got %v (set=%v)", c.source, c.hasSource)
	}

	auto, err := newGoogleClient(Config{Backend: BackendGoogle, TargetLang: "uk", SourceLang: "auto"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auto.hasSource {
		t.Error("auto source should leave detection to the service")
	}
}

func TestGoogle_CloseWithoutConnect(t *testing.T) {
	c, _ := newGoogleClient(Config{Backend: BackendGoogle, TargetLang: "de"})
	if err := c.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
