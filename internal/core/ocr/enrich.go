package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"formsai/internal/core/document"
	"formsai/internal/logger"
)

// AgentVersion is recorded in ocr_processing_info.
const AgentVersion = "1.0"

// Markers stored in ocr_extracted_text when no real text was read.
const (
	MarkerImageNotFound = "[IMAGE_NOT_FOUND]"
	MarkerNoText        = "[NO_TEXT_DETECTED]"
	MarkerErrorPrefix   = "[OCR_ERROR]"
)

// IsMarker reports whether text is a placeholder rather than recognised content.
func IsMarker(text string) bool {
	return text == MarkerImageNotFound || text == MarkerNoText || strings.HasPrefix(text, MarkerErrorPrefix)
}

// Enricher annotates every image of a document and writes a _with_ocr_ sibling.
type Enricher struct {
	engine    Engine
	imagesDir string
	log       *logger.Logger
	now       func() time.Time
}

func NewEnricher(engine Engine, imagesDir string, log *logger.Logger) *Enricher {
	return &Enricher{engine: engine, imagesDir: imagesDir, log: log, now: time.Now}
}

func (e *Enricher) Available() bool { return e.engine != nil && e.engine.Available() }

// Enrich reads path, runs OCR on each referenced image and returns the path of
// the annotated copy. The source document is left untouched.
func (e *Enricher) Enrich(ctx context.Context, path string) (string, error) {
	if !e.Available() {
		return "", ErrUnavailable
	}
	form, err := document.Load(path)
	if err != nil {
		return "", err
	}

	processed := 0
	for qi := range form.Questions {
		q := &form.Questions[qi]
		for ii := range q.Images {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			img := &q.Images[ii]
			img.OCRExtractedText = e.extract(ctx, document.ResolveImage(*img, e.imagesDir))
			img.OCRProcessedAt = e.now().Format(time.RFC3339)
			img.OCRMethod = e.engine.Name()
			processed++
		}
	}

	at := e.now()
	form.OCRProcessingInfo = &document.OCRProcessingInfo{
		ProcessedAt:          at.Format(time.RFC3339),
		TotalImagesProcessed: processed,
		OCRMethod:            e.engine.Name(),
		AgentVersion:         AgentVersion,
	}
	out := document.OCRPath(path, at)
	if err := document.Save(out, form); err != nil {
		return "", err
	}
	e.log.LogInfof("OCR processed %d image(s) -> %s", processed, out)
	return out, nil
}

func (e *Enricher) extract(ctx context.Context, imagePath string) string {
	if imagePath == "" {
		return MarkerImageNotFound
	}
	if _, err := os.Stat(imagePath); err != nil {
		e.log.LogWarnf("Image not found: %s", imagePath)
		return MarkerImageNotFound
	}
	text, err := e.engine.Extract(ctx, imagePath)
	if err != nil {
		e.log.LogWarnf("OCR failed for %s: %v", imagePath, err)
		return fmt.Sprintf("%s %v", MarkerErrorPrefix, err)
	}
	if strings.TrimSpace(text) == "" {
		return MarkerNoText
	}
	return strings.TrimSpace(text)
}
