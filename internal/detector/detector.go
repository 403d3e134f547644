// Package detector identifies the language of a document or chunk.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// sampleRunes bounds how much of a document is inspected when resolving an
// automatic source language.
const sampleRunes = 2000

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector for all languages. Building is slow; share the
// instance.
func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the upper-case ISO 639-1 code, e.g. "EN".
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// DetectDocument inspects the head of a document and returns the language
// name ("English") and its lower-case ISO code ("en").
func (d *Detector) DetectDocument(text string) (name, code string, ok bool) {
	if r := []rune(text); len(r) > sampleRunes {
		text = string(r[:sampleRunes])
	}
	lang, ok := d.Detect(text)
	if !ok {
		return "", "", false
	}
	return lang.String(), strings.ToLower(lang.IsoCode639_1().String()), true
}
