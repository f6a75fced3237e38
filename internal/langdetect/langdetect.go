// Package langdetect guesses the ISO-639-1 language of a text.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// Default is reported when the language cannot be determined.
const Default = "en"

// Supported are the languages the translation surfaces are asked about.
var Supported = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.French, lingua.German,
	lingua.Italian, lingua.Portuguese, lingua.Russian, lingua.Japanese,
	lingua.Korean, lingua.Chinese, lingua.Arabic, lingua.Hindi,
	lingua.Dutch, lingua.Swedish, lingua.Danish, lingua.Bokmal,
	lingua.Finnish, lingua.Polish, lingua.Turkish, lingua.Thai,
	lingua.Vietnamese,
}

// Detector wraps a lingua detector built on first use.
type Detector struct {
	// MinConfidence below which Default is returned. Zero accepts any guess.
	MinConfidence float64

	once sync.Once
	d    lingua.LanguageDetector
}

func New() *Detector { return &Detector{} }

func (d *Detector) detector() lingua.LanguageDetector {
	d.once.Do(func() {
		d.d = lingua.NewLanguageDetectorBuilder().
			FromLanguages(Supported...).
			Build()
	})
	return d.d
}

// Detect returns the ISO-639-1 code of text, or Default.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return Default
	}
	det := d.detector()
	lang, ok := det.DetectLanguageOf(text)
	if !ok {
		return Default
	}
	if d.MinConfidence > 0 && det.ComputeLanguageConfidence(text, lang) < d.MinConfidence {
		return Default
	}
	return code(lang)
}

func code(l lingua.Language) string {
	if l == lingua.Bokmal {
		return "no"
	}
	return strings.ToLower(l.IsoCode639_1().String())
}
