package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer types recognised by the classifier.
const (
	AnswerTypeChoice  = "choiceItem"
	AnswerTypeText    = "textInput"
	AnswerTypeScale   = "npsContainer"
	AnswerTypeUnknown = "unknown"
)

// ScrapedForm is the persisted per-form record.
type ScrapedForm struct {
	URL               string             `json:"url"`
	FormName          string             `json:"form_name,omitempty"`
	ScrapingDate      string             `json:"scraping_date"`
	ContainsImages    bool               `json:"contains_images"`
	Questions         []Question         `json:"questions"`
	Statistics        Statistics         `json:"statistics"`
	Error             string             `json:"error,omitempty"`
	OCRProcessingInfo *OCRProcessingInfo `json:"ocr_processing_info,omitempty"`
}

type Statistics struct {
	TotalQuestions        int            `json:"total_questions"`
	QuestionsWithText     int            `json:"questions_with_text"`
	QuestionsWithImages   int            `json:"questions_with_images"`
	TotalImagesDownloaded int            `json:"total_images_downloaded"`
	AnswerTypes           map[string]int `json:"answer_types"`
	Errors                []string       `json:"errors"`
}

type OCRProcessingInfo struct {
	ProcessedAt          string `json:"processed_at"`
	TotalImagesProcessed int    `json:"total_images_processed"`
	OCRMethod            string `json:"ocr_method"`
	AgentVersion         string `json:"agent_version"`
}

// Question carries both the scraped fields and, once answered, the llm_* annotations.
// LLMAnswer is a pointer so that "never answered" and "answered with an empty string" stay distinct.
type Question struct {
	QuestionNumber int          `json:"question_number"`
	QuestionText   string       `json:"question_text"`
	HasText        bool         `json:"has_text"`
	HasImages      bool         `json:"has_images"`
	ImagesCount    int          `json:"images_count"`
	Images         []ImageRef   `json:"images"`
	AnswerType     string       `json:"answer_type"`
	AnswerValues   AnswerValues `json:"answer_values"`
	ScrapedAt      string       `json:"scraped_at"`

	LLMAnswer           *string `json:"llm_answer,omitempty"`
	LLMJustification    *string `json:"llm_justification,omitempty"`
	LLMLanguageDetected string  `json:"llm_language_detected,omitempty"`
}

// Answered reports whether the question already carries a model answer.
func (q Question) Answered() bool { return q.LLMAnswer != nil }

type ImageRef struct {
	ImageNumber int    `json:"image_number"`
	Filename    string `json:"filename"`
	Filepath    string `json:"filepath"`
	OriginalSrc string `json:"original_src"`

	OCRExtractedText string `json:"ocr_extracted_text,omitempty"`
	OCRProcessedAt   string `json:"ocr_processed_at,omitempty"`
	OCRMethod        string `json:"ocr_method,omitempty"`
}

// AnswerValues is either a list of labels (choice and scale questions) or a
// single string (text placeholder or unknown diagnostic).
type AnswerValues struct {
	list   []string
	text   string
	isList bool
}

func ListValues(values []string) AnswerValues {
	if values == nil {
		values = []string{}
	}
	return AnswerValues{list: values, isList: true}
}

func TextValue(text string) AnswerValues { return AnswerValues{text: text} }

func (v AnswerValues) IsList() bool   { return v.isList }
func (v AnswerValues) List() []string { return v.list }
func (v AnswerValues) Text() string   { return v.text }

func (v AnswerValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	var err error
	if v.isList {
		err = enc.Encode(v.list)
	} else {
		err = enc.Encode(v.text)
	}
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (v *AnswerValues) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*v = AnswerValues{}
		return nil
	case b[0] == '[':
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("answer_values: %w", err)
		}
		*v = ListValues(list)
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("answer_values: %w", err)
		}
		*v = TextValue(s)
		return nil
	}
	return fmt.Errorf("answer_values: unsupported JSON %s", string(b))
}
