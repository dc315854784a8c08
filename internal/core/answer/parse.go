// Package answer turns free-form model output into an answer and a justification.
package answer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	// NoJustification marks answers recovered from text with no sentence boundary.
	NoJustification = "no structured justification"

	// MaxJustification bounds the justification recovered by the sentence split, in runes.
	MaxJustification = 500
)

type Result struct {
	Answer        string `json:"answer"`
	Justification string `json:"justification"`
}

var sentenceBoundary = regexp.MustCompile(`[.!?]\s`)

// Parse applies, in order: whole-string JSON, the outermost {...} span, and a
// first-sentence split. It never fails.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{}
	}
	if r, ok := parseWhole(text); ok {
		return r
	}
	if r, ok := parseEmbedded(text); ok {
		return r
	}
	return splitSentence(text)
}

func parseWhole(text string) (Result, bool) {
	fields, ok := decode(text)
	if !ok {
		return Result{}, false
	}
	a, hasAnswer := fields["answer"]
	j, hasJustification := fields["justification"]
	if !hasAnswer || !hasJustification {
		return Result{}, false
	}
	return Result{Answer: stringify(a), Justification: stringify(j)}, true
}

func parseEmbedded(text string) (Result, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}
	fields, ok := decode(text[start : end+1])
	if !ok {
		return Result{}, false
	}
	a, hasAnswer := fields["answer"]
	if !hasAnswer {
		return Result{}, false
	}
	r := Result{Answer: stringify(a)}
	if j, ok := fields["justification"]; ok {
		r.Justification = stringify(j)
	}
	return r, true
}

func splitSentence(text string) Result {
	loc := sentenceBoundary.FindStringIndex(text)
	if loc == nil {
		return Result{Answer: text, Justification: NoJustification}
	}
	return Result{
		Answer:        strings.TrimSpace(text[:loc[0]]),
		Justification: truncate(strings.TrimSpace(text[loc[0]+1:]), MaxJustification),
	}
}

func decode(s string) (map[string]interface{}, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
