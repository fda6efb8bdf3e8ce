// Package validator checks that translated text is in the requested target
// language.
package validator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/valpere/doctran/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// Validator checks that a translation result is written in the expected target language.
type Validator struct {
	det *detector.Detector
}

// New creates a Validator backed by det. A nil det gets a fresh detector.
func New(det ...*detector.Detector) *Validator {
	if len(det) > 0 && det[0] != nil {
		return &Validator{det: det[0]}
	}
	return &Validator{det: detector.New()}
}

// baseLanguage reduces a tag such as "pt-BR" or "zh_Hans" to its ISO 639
// base ("pt", "zh").
func baseLanguage(tag string) string {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if t, err := language.Parse(tag); err == nil {
		base, _ := t.Base()
		return strings.ToLower(base.String())
	}
	b, _, _ := strings.Cut(strings.ToLower(tag), "-")
	return b
}

// IsValid returns true when translatedText appears to be written in targetLang.
//
// Short texts (fewer than minValidationLength runes) and texts whose language
// cannot be determined pass without error. When the detected language differs
// from targetLang the returned error names both codes.
func (v *Validator) IsValid(translatedText, targetLang string) (bool, error) {
	if targetLang == "" {
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

	if want := baseLanguage(targetLang); detected != want {
		return false, fmt.Errorf("expected %s but detected %s", want, detected)
	}

	return true, nil
}

// Offenders returns the indices of translations that are not in targetLang.
// Empty translations are skipped; they keep their source text downstream.
func (v *Validator) Offenders(translations []string, targetLang string) []int {
	var out []int
	for i, t := range translations {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if ok, _ := v.IsValid(t, targetLang); !ok {
			out = append(out, i)
		}
	}
	return out
}
