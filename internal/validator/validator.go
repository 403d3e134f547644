// Package validator checks that extracted text is in the expected target language.
package validator

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"

	"github.com/valpere/chunktran/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// Validator checks that a translation is written in the expected target language.
type Validator struct {
	det *detector.Detector
}

// New creates a Validator with its own lingua-go detector.
func New() *Validator {
	return &Validator{det: detector.New()}
}

// NewWithDetector reuses an existing detector.
func NewWithDetector(d *detector.Detector) *Validator {
	return &Validator{det: d}
}

// IsValid returns true when translatedText appears to be written in targetLang.
// targetLang may be an ISO code ("uk", "pt-BR") or an English language name
// ("Ukrainian").
//
// Short texts, texts whose language cannot be determined and targets that
// cannot be mapped to a code pass without error. When the detected language
// differs from targetLang the returned error names both codes.
func (v *Validator) IsValid(translatedText, targetLang string) (bool, error) {
	want, ok := ISOCode(targetLang)
	if !ok {
		return true, nil
	}

	text := strings.TrimSpace(translatedText)
	if text == "" {
		return false, fmt.Errorf("translation is empty")
	}

	if len([]rune(text)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return true, nil
	}

	if !strings.EqualFold(detected, want) {
		return false, fmt.Errorf("expected %s but detected %s", want, strings.ToLower(detected))
	}

	return true, nil
}

// ISOCode maps a language name or BCP 47 tag to its lower-case ISO 639-1 code.
func ISOCode(lang string) (string, bool) {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return "", false
	}
	for _, l := range lingua.AllLanguages() {
		if strings.EqualFold(l.String(), lang) {
			return strings.ToLower(l.IsoCode639_1().String()), true
		}
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	return base.String(), true
}
