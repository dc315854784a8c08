package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"formsai/internal/core/answer"
	"formsai/internal/core/document"
	"formsai/internal/core/language"
	"formsai/internal/core/links"
	"formsai/internal/core/model"
	"formsai/internal/core/ocr"
	"formsai/internal/core/scrape"
	"formsai/internal/logger"
	"formsai/prompts"
)

// OCR is the optional enrichment step. *ocr.Enricher satisfies it.
type OCR interface {
	Available() bool
	Enrich(ctx context.Context, path string) (string, error)
}

// Dependencies are the collaborators the stages call into. OCR may be nil.
type Dependencies struct {
	Links    links.Source
	Scraper  scrape.Scraper
	Store    *document.Store
	OCR      OCR
	Asker    model.Asker
	Detector language.Detector
}

type Options struct {
	ModelTimeout time.Duration
	MaxAttempts  int
	Cleanup      bool
	RetainImages bool
	ImagesDir    string
}

// Pipeline runs the five stages in a fixed order.
type Pipeline struct {
	deps Dependencies
	opts Options

	log         *logger.Logger
	linksLog    *logger.Logger
	scrapeLog   *logger.Logger
	validateLog *logger.Logger
	ocrLog      *logger.Logger
	llmLog      *logger.Logger
	cleanupLog  *logger.Logger
}

func New(deps Dependencies, opts Options, logs logger.Config) *Pipeline {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 35 * time.Second
	}
	if deps.Detector == nil {
		deps.Detector = language.NewDetector()
	}
	return &Pipeline{
		deps:        deps,
		opts:        opts,
		log:         logs.For(logger.ComponentPipeline),
		linksLog:    logs.For(logger.ComponentLinks),
		scrapeLog:   logs.For(logger.ComponentScrape),
		validateLog: logs.For(logger.ComponentValidate),
		ocrLog:      logs.For(logger.ComponentOCR),
		llmLog:      logs.For(logger.ComponentLLM),
		cleanupLog:  logs.For(logger.ComponentCleanup),
	}
}

// Run executes every stage on the result of the previous one. It stops early
// only when no links were extracted.
func (p *Pipeline) Run(ctx context.Context, initial State) State {
	start := time.Now()
	p.log.LogInfo("Pipeline started")

	s := p.ExtractLinks(ctx, initial)
	if len(s.Links) == 0 {
		p.log.LogWarn("No form links found, nothing to do")
		return s
	}
	s = p.ScrapeForms(ctx, s)
	s = p.ValidateAndFlag(ctx, s)
	s = p.OCRIfNeeded(ctx, s)
	s = p.GenerateAnswers(ctx, s)

	p.log.Info().
		Int("links", len(s.Links)).
		Int("final", len(s.Final)).
		Int("errors", len(s.Errors)).
		Dur("took", time.Since(start)).
		Msg("pipeline finished")
	for _, f := range s.Final {
		p.log.LogSuccessf("Output: %s", f)
	}
	return s
}

// ExtractLinks replaces the state's links with those of the configured source.
func (p *Pipeline) ExtractLinks(ctx context.Context, s State) State {
	if p.deps.Links == nil {
		return s
	}
	found, err := p.deps.Links.Links(ctx)
	if err != nil {
		p.linksLog.LogError("Link extraction failed", err)
		s = s.withError(StageExtractLinks, "source", err)
	}
	s.Links = slices.Clone(found)
	p.linksLog.LogInfof("Found %d form link(s)", len(s.Links))
	return s
}

// ScrapeForms scrapes and persists each link. A failing link is skipped.
func (p *Pipeline) ScrapeForms(ctx context.Context, s State) State {
	scraped := []string{}
	for i, link := range s.Links {
		if err := ctx.Err(); err != nil {
			s = s.withError(StageScrapeForms, link.URL, err)
			continue
		}
		p.scrapeLog.LogInfof("Form %d/%d: %s", i+1, len(s.Links), link.URL)
		form, err := p.deps.Scraper.Scrape(ctx, link)
		if err != nil {
			p.scrapeLog.LogError(fmt.Sprintf("Scrape failed for %s", link.URL), err)
			s = s.withError(StageScrapeForms, link.URL, err)
			continue
		}
		path, err := p.deps.Store.SaveNew(form)
		if err != nil {
			p.scrapeLog.LogError(fmt.Sprintf("Persist failed for %s", link.URL), err)
			s = s.withError(StageScrapeForms, link.URL, err)
			continue
		}
		p.logStatistics(form, path)
		scraped = append(scraped, path)
	}
	s.Scraped = scraped
	return s
}

func (p *Pipeline) logStatistics(form *document.ScrapedForm, path string) {
	st := form.Statistics
	p.scrapeLog.LogSuccessf("Saved %s: %d question(s), %d with text, %d with images, %d image(s)",
		path, st.TotalQuestions, st.QuestionsWithText, st.QuestionsWithImages, st.TotalImagesDownloaded)
	for i, e := range st.Errors {
		if i == 5 {
			p.scrapeLog.LogWarnf("... and %d more error(s)", len(st.Errors)-5)
			break
		}
		p.scrapeLog.LogWarnf("  %s", e)
	}
}

// ValidateAndFlag keeps readable documents and records whether they hold images.
func (p *Pipeline) ValidateAndFlag(_ context.Context, s State) State {
	validated := []Candidate{}
	for _, path := range s.Scraped {
		flag, err := document.ContainsImages(path)
		if err != nil {
			p.validateLog.LogError(fmt.Sprintf("Invalid document %s", path), err)
			s = s.withError(StageValidate, path, err)
			continue
		}
		validated = append(validated, Candidate{Path: path, ContainsImages: flag})
	}
	p.validateLog.LogInfof("%d/%d document(s) valid", len(validated), len(s.Scraped))
	s.Validated = validated
	return s
}

// OCRIfNeeded enriches documents that contain images. When OCR is unavailable
// or fails, the original document continues down the pipeline.
func (p *Pipeline) OCRIfNeeded(ctx context.Context, s State) State {
	enriched := []string{}
	intermediates := []string{}
	available := p.deps.OCR != nil && p.deps.OCR.Available()
	if !available {
		p.ocrLog.LogWarn("OCR engine unavailable, documents pass through unchanged")
	}
	for _, c := range s.Validated {
		if !available || !c.ContainsImages {
			enriched = append(enriched, c.Path)
			continue
		}
		out, err := p.deps.OCR.Enrich(ctx, c.Path)
		if err != nil {
			p.ocrLog.LogError(fmt.Sprintf("OCR failed for %s, keeping original", c.Path), err)
			s = s.withError(StageOCR, c.Path, err)
			enriched = append(enriched, c.Path)
			continue
		}
		enriched = append(enriched, out)
		intermediates = append(intermediates, out)
	}
	s.Enriched = enriched
	s.OCRIntermediates = intermediates
	return s
}

// GenerateAnswers asks the model about every unanswered question, persists
// the answered copy and cleans up images and OCR intermediates.
func (p *Pipeline) GenerateAnswers(ctx context.Context, s State) State {
	final := []string{}
	for _, path := range s.Enriched {
		out, form, err := p.answerDocument(ctx, path)
		if err != nil {
			p.llmLog.LogError(fmt.Sprintf("Answering failed for %s", path), err)
			s = s.withError(StageAnswers, path, err)
			continue
		}
		final = append(final, out)
		if p.opts.Cleanup {
			p.cleanup(form, path, out, s.OCRIntermediates)
		}
	}
	s.Final = final
	return s
}

func (p *Pipeline) answerDocument(ctx context.Context, path string) (string, *document.ScrapedForm, error) {
	form, err := document.Load(path)
	if err != nil {
		return "", nil, err
	}
	modified := 0
	for i := range form.Questions {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		q := &form.Questions[i]
		if q.Answered() {
			continue
		}
		text := QuestionText(*q)
		lang := language.Unknown
		if text != "" {
			lang = p.deps.Detector.Detect(text)
		}
		raw := p.ask(ctx, q.QuestionNumber, prompts.BuildAnswerPrompt(prompts.AnswerRequest{
			Language:   lang,
			AnswerType: q.AnswerType,
			Question:   text,
			Options:    options(q.AnswerValues),
		}))

		res := answer.Result{Answer: raw}
		if !model.IsFallback(raw) {
			res = answer.Parse(raw)
		}
		q.LLMAnswer = &res.Answer
		q.LLMJustification = &res.Justification
		q.LLMLanguageDetected = lang
		modified++
	}
	if modified == 0 {
		p.llmLog.LogInfof("All questions already answered in %s", path)
		return path, form, nil
	}
	out := document.AnswersPath(path)
	if err := document.Save(out, form); err != nil {
		return "", nil, err
	}
	p.llmLog.LogSuccessf("Answered %d question(s) -> %s", modified, out)
	return out, form, nil
}

// ask retries only timeouts, up to the configured number of attempts.
func (p *Pipeline) ask(ctx context.Context, question int, prompt string) string {
	var out string
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		out = p.deps.Asker.Ask(ctx, prompt, p.opts.ModelTimeout)
		if !model.IsTimeout(out) {
			return out
		}
		p.llmLog.LogWarnf("Question %d timed out (attempt %d/%d)", question, attempt, p.opts.MaxAttempts)
	}
	p.llmLog.LogWarnf("Question %d abandoned after %d attempt(s)", question, p.opts.MaxAttempts)
	return out
}

// QuestionText is the question text followed by the OCR text of its images.
func QuestionText(q document.Question) string {
	parts := []string{}
	if t := strings.TrimSpace(q.QuestionText); t != "" {
		parts = append(parts, t)
	}
	for _, img := range q.Images {
		t := strings.TrimSpace(img.OCRExtractedText)
		if t == "" || ocr.IsMarker(t) {
			continue
		}
		parts = append(parts, "OCR: "+t)
	}
	return strings.Join(parts, " | ")
}

func options(v document.AnswerValues) []string {
	if v.IsList() {
		return v.List()
	}
	if v.Text() == "" {
		return nil
	}
	return []string{v.Text()}
}

// cleanup deletes the images of an answered document and the OCR intermediate
// it was read from, unless that intermediate is the final output.
func (p *Pipeline) cleanup(form *document.ScrapedForm, input, final string, intermediates []string) {
	if !p.opts.RetainImages {
		n, errs := document.RemoveImages(form, p.opts.ImagesDir)
		for _, err := range errs {
			p.cleanupLog.LogWarnf("Image removal: %v", err)
		}
		if n > 0 {
			p.cleanupLog.LogInfof("Removed %d image(s) for %s", n, final)
		}
	}
	if input == final || !slices.Contains(intermediates, input) {
		return
	}
	if err := os.Remove(input); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.cleanupLog.LogWarnf("Remove intermediate %s: %v", input, err)
		return
	}
	p.cleanupLog.LogInfof("Removed intermediate %s", input)
}
