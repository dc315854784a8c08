// Package language names the language a question is written in.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Unknown is reported for blank or unrecognisable text.
const Unknown = "Unknown"

// SampleRunes bounds how much of the text is inspected.
const SampleRunes = 400

// Detector is implemented by anything that can name a language.
type Detector interface {
	Detect(text string) string
}

// Whatlang detects with trigram statistics and reports English language names.
type Whatlang struct {
	// MinConfidence below which the result is reported as Unknown.
	MinConfidence float64
}

func NewDetector() *Whatlang { return &Whatlang{MinConfidence: 0.1} }

func (w *Whatlang) Detect(text string) string {
	sample := sample(text)
	if sample == "" {
		return Unknown
	}
	info := whatlanggo.Detect(sample)
	if info.Lang == -1 || info.Confidence < w.MinConfidence {
		return Unknown
	}
	return Name(info.Lang.Iso6391(), info.Lang.String())
}

// Name returns the English display name for an ISO 639-1 code, or fallback.
func Name(code, fallback string) string {
	if code == "" {
		return fallback
	}
	tag, err := language.Parse(code)
	if err != nil {
		return fallback
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return fallback
}

func sample(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) > SampleRunes {
		r = r[:SampleRunes]
	}
	return string(r)
}
