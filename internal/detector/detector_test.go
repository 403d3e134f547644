package detector

import (
	"strings"
	"testing"
)

func TestDetector_DetectDocument(t *testing.T) {
	d := New()

	tests := []struct {
		name     string
		doc      string
		wantName string
		wantCode string
	}{
		{
			name:     "english markdown",
			doc:      "# Getting started\n\nThe quick brown fox jumps over the lazy dog near the river bank.\n",
			wantName: "English",
			wantCode: "en",
		},
		{
			name:     "ukrainian markdown",
			doc:      "# Вступ\n\nПривіт, це тест українською мовою. Ми перекладаємо документ частинами.\n",
			wantName: "Ukrainian",
			wantCode: "uk",
		},
		{
			name:     "german prose",
			doc:      "Hallo, das ist ein Test auf Deutsch. Wir übersetzen das Dokument Stück für Stück.\n",
			wantName: "German",
			wantCode: "de",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, code, ok := d.DetectDocument(tt.doc)
			if !ok {
				t.Fatalf("DetectDocument(%q) found no language", tt.doc)
			}
			if name != tt.wantName || code != tt.wantCode {
				t.Errorf("DetectDocument = (%q, %q), want (%q, %q)", name, code, tt.wantName, tt.wantCode)
			}
		})
	}
}

func TestDetector_DetectDocumentUsesHead(t *testing.T) {
	d := New()

	head := strings.Repeat("The quick brown fox jumps over the lazy dog near the river bank.\n", 100)
	tail := strings.Repeat("Привіт, це тест українською мовою.\n", 400)
	name, code, ok := d.DetectDocument(head + tail)
	if !ok {
		t.Fatal("expected a language for a long document")
	}
	if name != "English" || code != "en" {
		t.Errorf("DetectDocument = (%q, %q), want the language of the head", name, code)
	}
}

func TestDetector_WhitespaceOnly(t *testing.T) {
	d := New()

	for _, doc := range []string{"", "  \n\t"} {
		if _, _, ok := d.DetectDocument(doc); ok {
			t.Errorf("DetectDocument(%q) should find no language", doc)
		}
		if _, ok := d.DetectISO(doc); ok {
			t.Errorf("DetectISO(%q) should find no language", doc)
		}
	}
}

func TestDetector_DetectISO(t *testing.T) {
	d := New()

	code, ok := d.DetectISO("Привіт, це тест українською мовою.")
	if !ok || code != "UK" {
		t.Errorf("DetectISO = (%q, %v), want (UK, true)", code, ok)
	}
}
