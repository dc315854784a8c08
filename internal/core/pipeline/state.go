package pipeline

import (
	"fmt"
	"slices"

	"formsai/internal/core/links"
)

// Stage names, in execution order.
const (
	StageExtractLinks = "extract_links"
	StageScrapeForms  = "scrape_forms"
	StageValidate     = "validate_and_flag"
	StageOCR          = "ocr_if_needed"
	StageAnswers      = "generate_answers"
)

// Stages lists every stage in the order Run executes them.
var Stages = []string{StageExtractLinks, StageScrapeForms, StageValidate, StageOCR, StageAnswers}

// Candidate is a validated document and whether it needs OCR.
type Candidate struct {
	Path           string `json:"path"`
	ContainsImages bool   `json:"contains_images"`
}

// StageError records one item that a stage skipped.
type StageError struct {
	Stage string `json:"stage"`
	Item  string `json:"item"`
	Err   string `json:"error"`
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Item, e.Err)
}

// State is the value threaded through the stages. Each stage receives the
// previous State and returns a new one; a field is written by exactly one stage.
type State struct {
	Links            []links.FormLink `json:"links"`
	Scraped          []string         `json:"scraped_json_files"`
	Validated        []Candidate      `json:"validated"`
	Enriched         []string         `json:"enriched_json_files"`
	OCRIntermediates []string         `json:"ocr_intermediates"`
	Final            []string         `json:"final_json_files"`
	Errors           []StageError     `json:"errors"`
}

func (s State) withError(stage, item string, err error) State {
	s.Errors = append(slices.Clone(s.Errors), StageError{Stage: stage, Item: item, Err: err.Error()})
	return s
}

// ErrorsFor returns the errors recorded by one stage.
func (s State) ErrorsFor(stage string) []StageError {
	var out []StageError
	for _, e := range s.Errors {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}
