// Package classify normalizes a rendered form question into an answer type and its values.
package classify

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"formsai/internal/core/document"
)

// Widget markers, checked in this order. The first one present decides the type,
// so a matrix that also renders choice items classifies as a choice question.
const (
	ChoiceMarker = `[data-automation-id="choiceItem"]`
	TextMarker   = `[data-automation-id="textInput"]`
	ScaleMarker  = `[data-automation-id="npsContainer"]`
)

// TextPlaceholder is stored for free-text questions.
const TextPlaceholder = "Input text"

// Classified is one of ChoiceQuestion, TextQuestion, ScaleQuestion or UnknownQuestion.
type Classified interface {
	Type() string
	Values() document.AnswerValues
	classified()
}

type ChoiceQuestion struct{ Options []string }

type TextQuestion struct{ Placeholder string }

type ScaleQuestion struct{ Labels []string }

type UnknownQuestion struct{ Diagnostic string }

func (ChoiceQuestion) Type() string  { return document.AnswerTypeChoice }
func (TextQuestion) Type() string    { return document.AnswerTypeText }
func (ScaleQuestion) Type() string   { return document.AnswerTypeScale }
func (UnknownQuestion) Type() string { return document.AnswerTypeUnknown }

func (q ChoiceQuestion) Values() document.AnswerValues  { return document.ListValues(q.Options) }
func (q TextQuestion) Values() document.AnswerValues    { return document.TextValue(q.Placeholder) }
func (q ScaleQuestion) Values() document.AnswerValues   { return document.ListValues(q.Labels) }
func (q UnknownQuestion) Values() document.AnswerValues { return document.TextValue(q.Diagnostic) }

func (ChoiceQuestion) classified()  {}
func (TextQuestion) classified()    {}
func (ScaleQuestion) classified()   {}
func (UnknownQuestion) classified() {}

type widget struct {
	marker string
	build  func(*goquery.Selection) Classified
}

var widgets = []widget{
	{ChoiceMarker, choice},
	{TextMarker, func(*goquery.Selection) Classified { return TextQuestion{Placeholder: TextPlaceholder} }},
	{ScaleMarker, scale},
}

// Classify inspects a question element. It never panics; anything it cannot
// recognise becomes an UnknownQuestion with a diagnostic.
func Classify(q *goquery.Selection) (c Classified) {
	defer func() {
		if r := recover(); r != nil {
			c = UnknownQuestion{Diagnostic: fmt.Sprintf("classification failed: %v", r)}
		}
	}()
	if q == nil || q.Length() == 0 {
		return UnknownQuestion{Diagnostic: "empty question element"}
	}
	for _, w := range widgets {
		if found := q.Find(w.marker); found.Length() > 0 {
			return w.build(found)
		}
	}
	return UnknownQuestion{Diagnostic: "no known answer widget in question"}
}

// ClassifyHTML classifies a question from its outer or inner HTML.
func ClassifyHTML(html string) Classified {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return UnknownQuestion{Diagnostic: fmt.Sprintf("unparseable question html: %v", err)}
	}
	return Classify(doc.Selection)
}

func choice(items *goquery.Selection) Classified {
	options := make([]string, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		label := item.Find(".text-format-content").First()
		if label.Length() == 0 {
			label = item
		}
		if text := Clean(label.Text()); text != "" {
			options = append(options, text)
		}
	})
	return ChoiceQuestion{Options: options}
}

// scale keeps one label per cell, empty ones included, so a label's index
// stays aligned with its position on the scale.
func scale(containers *goquery.Selection) Classified {
	labels := []string{}
	containers.First().Find("tbody td").Each(func(_ int, cell *goquery.Selection) {
		text := Clean(cell.Find("span").First().Text())
		if text == "" {
			text = Clean(cell.Text())
		}
		labels = append(labels, text)
	})
	return ScaleQuestion{Labels: labels}
}

// Clean collapses runs of whitespace and trims the result.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
