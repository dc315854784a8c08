package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"formsai/internal/core/classify"
	"formsai/internal/core/document"
	"formsai/internal/core/links"
	"formsai/internal/logger"
)

// DOM selectors of the Microsoft Forms response page.
const (
	QuestionListSelector = "#question-list"
	QuestionItemSelector = `div[data-automation-id*="questionItem"]`
	QuestionTextSelector = ".text-format-content"
)

var ErrNoQuestionList = errors.New("question list not found")

// Extracted is what a single question element yields before images are fetched.
type Extracted struct {
	Text       string
	ImageSrcs  []string
	Classified classify.Classified
}

// ExtractQuestion reads text, HTTP image sources and the answer widget of one question.
func ExtractQuestion(item *goquery.Selection) Extracted {
	ex := Extracted{
		Text:       classify.Clean(item.Find(QuestionTextSelector).First().Text()),
		Classified: classify.Classify(item),
	}
	item.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && links.IsHTTP(src) {
			ex.ImageSrcs = append(ex.ImageSrcs, strings.TrimSpace(src))
		}
	})
	return ex
}

// PageParser turns a rendered form page into a ScrapedForm.
type PageParser struct {
	images ImageFetcher
	log    *logger.Logger
	now    func() time.Time
}

func NewPageParser(images ImageFetcher, log *logger.Logger) *PageParser {
	return &PageParser{images: images, log: log, now: time.Now}
}

// Parse builds the document from page HTML. Image download failures are
// recorded in the statistics and do not fail the form.
func (p *PageParser) Parse(ctx context.Context, link links.FormLink, html string) (*document.ScrapedForm, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	list := doc.Find(QuestionListSelector).First()
	if list.Length() == 0 {
		return nil, ErrNoQuestionList
	}

	form := &document.ScrapedForm{
		URL:          link.URL,
		FormName:     link.Name,
		ScrapingDate: p.now().Format(time.RFC3339),
		Questions:    []document.Question{},
		Statistics: document.Statistics{
			AnswerTypes: map[string]int{},
			Errors:      []string{},
		},
	}
	var ctxErr error
	list.Find(QuestionItemSelector).EachWithBreak(func(i int, item *goquery.Selection) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		p.add(ctx, form, i+1, ExtractQuestion(item))
		return true
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	form.ContainsImages = form.Statistics.TotalImagesDownloaded > 0
	return form, nil
}

func (p *PageParser) add(ctx context.Context, form *document.ScrapedForm, number int, ex Extracted) {
	q := document.Question{
		QuestionNumber: number,
		QuestionText:   ex.Text,
		HasText:        ex.Text != "",
		Images:         []document.ImageRef{},
		AnswerType:     ex.Classified.Type(),
		AnswerValues:   ex.Classified.Values(),
		ScrapedAt:      p.now().Format(time.RFC3339),
	}
	for j, src := range ex.ImageSrcs {
		if p.images == nil {
			break
		}
		ref, err := p.images.Fetch(ctx, src, number, j+1)
		if err != nil {
			msg := fmt.Sprintf("question %d image %d: %v", number, j+1, err)
			form.Statistics.Errors = append(form.Statistics.Errors, msg)
			p.log.LogWarnf("Image download failed, %s", msg)
			continue
		}
		q.Images = append(q.Images, ref)
	}
	q.ImagesCount = len(q.Images)
	q.HasImages = q.ImagesCount > 0

	st := &form.Statistics
	st.TotalQuestions++
	if q.HasText {
		st.QuestionsWithText++
	}
	if q.HasImages {
		st.QuestionsWithImages++
	}
	st.TotalImagesDownloaded += q.ImagesCount
	st.AnswerTypes[q.AnswerType]++
	form.Questions = append(form.Questions, q)
}
