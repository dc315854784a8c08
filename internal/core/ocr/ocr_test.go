package ocr

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"formsai/internal/core/document"
	"formsai/internal/logger"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Name() string { return "mock" }

func (m *MockEngine) Available() bool { return m.Called().Bool(0) }

func (m *MockEngine) Extract(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(imagePath)
	return args.String(0), args.Error(1)
}

func quiet() *logger.Logger {
	return logger.Config{Level: logger.LevelError, Out: io.Discard}.For(logger.ComponentOCR)
}

func writeForm(t *testing.T, dir string, images ...string) string {
	t.Helper()
	q := document.Question{QuestionNumber: 1, QuestionText: "Voir image", HasText: true, HasImages: true, AnswerType: document.AnswerTypeText, AnswerValues: document.TextValue("Input text")}
	for i, img := range images {
		q.Images = append(q.Images, document.ImageRef{ImageNumber: i + 1, Filename: filepath.Base(img), Filepath: img})
	}
	q.ImagesCount = len(q.Images)
	path := filepath.Join(dir, "microsoft_forms_complete_data_20250101_000000.json")
	require.NoError(t, document.Save(path, &document.ScrapedForm{URL: "https://forms.office.com/r/x", ContainsImages: true, Questions: []document.Question{q}}))
	return path
}

func TestEnrich(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "q1_a.jpg")
	broken := filepath.Join(dir, "q1_b.jpg")
	require.NoError(t, os.WriteFile(present, []byte("img"), 0o644))
	require.NoError(t, os.WriteFile(broken, []byte("img"), 0o644))
	src := writeForm(t, dir, present, broken, filepath.Join(dir, "gone.jpg"))

	engine := &MockEngine{}
	engine.On("Available").Return(true)
	engine.On("Extract", present).Return(" Âge minimum : 18 ans \n", nil)
	engine.On("Extract", broken).Return("", errors.New("bad image"))

	e := NewEnricher(engine, dir, quiet())
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	e.now = func() time.Time { return at }

	out, err := e.Enrich(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, document.OCRPath(src, at), out)

	form, err := document.Load(out)
	require.NoError(t, err)
	images := form.Questions[0].Images
	assert.Equal(t, "Âge minimum : 18 ans", images[0].OCRExtractedText)
	assert.Equal(t, "mock", images[0].OCRMethod)
	assert.True(t, IsMarker(images[1].OCRExtractedText))
	assert.Contains(t, images[1].OCRExtractedText, "bad image")
	assert.Equal(t, MarkerImageNotFound, images[2].OCRExtractedText)
	require.NotNil(t, form.OCRProcessingInfo)
	assert.Equal(t, 3, form.OCRProcessingInfo.TotalImagesProcessed)
	assert.Equal(t, AgentVersion, form.OCRProcessingInfo.AgentVersion)

	original, err := document.Load(src)
	require.NoError(t, err)
	assert.Empty(t, original.Questions[0].Images[0].OCRExtractedText)
	engine.AssertExpectations(t)
}

func TestEnrichUnavailable(t *testing.T) {
	engine := &MockEngine{}
	engine.On("Available").Return(false)

	_, err := NewEnricher(engine, "", quiet()).Enrich(context.Background(), "whatever.json")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, NewEnricher(nil, "", quiet()).Available())
}

func TestEnrichMissingDocument(t *testing.T) {
	engine := &MockEngine{}
	engine.On("Available").Return(true)

	_, err := NewEnricher(engine, "", quiet()).Enrich(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestTesseract(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stand-ins need a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "tesseract")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"  read $1 to $2 with $4  \"\n"), 0o755))

	engine := NewTesseract(bin, "eng+fra")
	require.True(t, engine.Available())

	text, err := engine.Extract(context.Background(), "img.png")
	require.NoError(t, err)
	assert.Equal(t, "read img.png to stdout with eng+fra", text)

	missing := NewTesseract(filepath.Join(t.TempDir(), "absent"), "")
	assert.False(t, missing.Available())
	_, err = missing.Extract(context.Background(), "img.png")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIsMarker(t *testing.T) {
	assert.True(t, IsMarker(MarkerNoText))
	assert.True(t, IsMarker(MarkerErrorPrefix+" boom"))
	assert.False(t, IsMarker("Texte réel"))
}
