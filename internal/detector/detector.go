// Package detector guesses the language of document text.
package detector

import (
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"
)

// DefaultSampleChars bounds how much text DetectSample looks at.
const DefaultSampleChars = 2000

// Detector wraps a lingua detector built on first use; building it loads
// the models of every language.
type Detector struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func New() *Detector {
	return &Detector{}
}

func (d *Detector) get() lingua.LanguageDetector {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return d.detector
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.get().DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of text.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// DetectSample detects the language of the first texts, joined, up to
// maxChars runes. maxChars <= 0 uses DefaultSampleChars.
func (d *Detector) DetectSample(texts []string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		maxChars = DefaultSampleChars
	}
	var sb strings.Builder
	used := 0
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		r := []rune(t)
		if used+len(r) > maxChars {
			r = r[:maxChars-used]
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(r))
		used += len(r)
		if used >= maxChars {
			break
		}
	}
	return d.DetectISO(sb.String())
}
