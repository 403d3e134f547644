package placeholder_test

import (
	"strings"
	"testing"

	"github.com/valpere/chunktran/internal/placeholder"
)

func TestProtect_NoMarkup(t *testing.T) {
	text := "Hello, world!\n"
	p := placeholder.Protect(text)
	if p.Text != text {
		t.Errorf("expected unchanged text, got %q", p.Text)
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 markers, got %d", p.Len())
	}
	if got := p.Restore("Привіт, світе!\n"); got != "Привіт, світе!\n" {
		t.Errorf("restore without markers should be identity, got %q", got)
	}
}

func TestProtect_HTMLTags(t *testing.T) {
	p := placeholder.Protect("<p>Hello <b>world</b></p>")
	if p.Len() != 4 {
		t.Fatalf("expected 4 markers, got %d", p.Len())
	}
	for _, tag := range []string{"<p>", "<b>", "</b>", "</p>"} {
		if strings.Contains(p.Text, tag) {
			t.Errorf("expected tag %q to be replaced, still present in %q", tag, p.Text)
		}
	}
}

func TestProtect_LessThanIsNotATag(t *testing.T) {
	text := "if a < b and c > d\n"
	p := placeholder.Protect(text)
	if p.Len() != 0 || p.Text != text {
		t.Errorf("comparison operators should not be protected, got %q (%d markers)", p.Text, p.Len())
	}
}

func TestProtect_FencedCode(t *testing.T) {
	p := placeholder.Protect("Before\n```go\nfmt.Println(\"hi\")\n```\nAfter")
	if p.Len() != 1 {
		t.Fatalf("expected 1 marker for fenced block, got %d", p.Len())
	}
	if p.Text != "Before\n[PH0]\nAfter" {
		t.Errorf("unexpected protected text %q", p.Text)
	}
}

func TestProtect_InlineCode(t *testing.T) {
	p := placeholder.Protect("Use `fmt.Println` to print.")
	if p.Text != "Use [PH0] to print." {
		t.Errorf("unexpected protected text %q", p.Text)
	}
}

func TestProtect_Mixed(t *testing.T) {
	p := placeholder.Protect("See <a href=\"#\">link</a> or use `code` here.")
	// inline code is numbered before HTML tags
	if p.Text != "See [PH1]link[PH2] or use [PH0] here." {
		t.Errorf("unexpected protected text %q", p.Text)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	for _, original := range []string{
		"<p>Hello <b>world</b></p>",
		"Before\n```go\nfmt.Println(\"hi\")\n```\nAfter",
		"See <a href=\"#\">link</a> or use `code` here.\n",
	} {
		p := placeholder.Protect(original)
		if restored := p.Restore(p.Text); restored != original {
			t.Errorf("round-trip failed:\n  original: %q\n  restored: %q", original, restored)
		}
	}
}

func TestRestore_TranslatedText(t *testing.T) {
	p := placeholder.Protect("Use `go test` to run <b>all</b> tests.")
	got := p.Restore("Використовуйте [PH0], щоб запустити [PH1]усі[PH2] тести.")
	want := "Використовуйте `go test`, щоб запустити <b>усі</b> тести."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRestore_OutOfRangeIndexIgnored(t *testing.T) {
	p := placeholder.Protect("<p>")
	if restored := p.Restore("[PH99] some text"); !strings.Contains(restored, "[PH99]") {
		t.Errorf("expected [PH99] to remain, got %q", restored)
	}
}

func TestMissing(t *testing.T) {
	p := placeholder.Protect("<p>a</p><b>c")
	if missing := p.Missing("[PH0] a [PH1] [PH2]"); len(missing) != 0 {
		t.Errorf("expected no missing, got %v", missing)
	}
	missing := p.Missing("[PH0] some text")
	if len(missing) != 2 || missing[0] != 1 || missing[1] != 2 {
		t.Errorf("expected missing [1 2], got %v", missing)
	}
}

func TestInstructionHint_NamesMarkers(t *testing.T) {
	if !strings.Contains(placeholder.InstructionHint(), "[PHn]") {
		t.Error("InstructionHint should name the marker format")
	}
}
