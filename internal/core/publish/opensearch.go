package publish

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"formsai/internal/core/document"
)

// IndexedQuestion is the searchable projection of an answered question.
type IndexedQuestion struct {
	Number        int                   `json:"question_number"`
	Text          string                `json:"question_text"`
	AnswerType    string                `json:"answer_type"`
	AnswerValues  document.AnswerValues `json:"answer_values"`
	Images        []document.ImageRef   `json:"images,omitempty"`
	Answer        string                `json:"llm_answer,omitempty"`
	Justification string                `json:"llm_justification,omitempty"`
	Language      string                `json:"llm_language_detected,omitempty"`
}

type IndexedForm struct {
	URL          string            `json:"url"`
	FormName     string            `json:"form_name,omitempty"`
	ScrapingDate string            `json:"scraping_date"`
	SourceFile   string            `json:"source_file"`
	Questions    []IndexedQuestion `json:"questions"`
	IndexedAt    string            `json:"indexed_at"`
}

// Indexer writes answered forms to an OpenSearch index.
type Indexer struct {
	client *opensearch.Client
	index  string
	now    func() time.Time
}

func NewOpenSearchClient(url string) (*opensearch.Client, error) {
	return opensearch.NewClient(opensearch.Config{Addresses: []string{url}})
}

func NewIndexer(client *opensearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index, now: time.Now}
}

func (i *Indexer) Name() string { return "opensearch" }

// Project builds the indexed representation of a form.
func Project(path string, form *document.ScrapedForm, at time.Time) IndexedForm {
	out := IndexedForm{
		URL:          form.URL,
		FormName:     form.FormName,
		ScrapingDate: form.ScrapingDate,
		SourceFile:   filepath.Base(path),
		Questions:    make([]IndexedQuestion, 0, len(form.Questions)),
		IndexedAt:    at.Format(time.RFC3339),
	}
	for _, q := range form.Questions {
		iq := IndexedQuestion{
			Number:       q.QuestionNumber,
			Text:         q.QuestionText,
			AnswerType:   q.AnswerType,
			AnswerValues: q.AnswerValues,
			Images:       q.Images,
			Language:     q.LLMLanguageDetected,
		}
		if q.LLMAnswer != nil {
			iq.Answer = *q.LLMAnswer
		}
		if q.LLMJustification != nil {
			iq.Justification = *q.LLMJustification
		}
		out.Questions = append(out.Questions, iq)
	}
	return out
}

func (i *Indexer) Publish(ctx context.Context, path string, form *document.ScrapedForm) error {
	body, err := document.Marshal(Project(path, form, i.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	req := opensearchapi.IndexRequest{
		Index:      i.index,
		DocumentID: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to execute index request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}
	return nil
}
