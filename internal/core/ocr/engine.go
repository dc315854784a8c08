// Package ocr extracts text from downloaded question images.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrUnavailable = errors.New("ocr engine unavailable")

// Engine reads the text contained in one image file.
type Engine interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, imagePath string) (string, error)
}

// Tesseract shells out to the tesseract CLI.
type Tesseract struct {
	Binary    string
	Languages string
	lookPath  func(string) (string, error)
}

func NewTesseract(binary, languages string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{Binary: binary, Languages: languages, lookPath: exec.LookPath}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Available() bool {
	_, err := t.lookPath(t.Binary)
	return err == nil
}

func (t *Tesseract) Extract(ctx context.Context, imagePath string) (string, error) {
	bin, err := t.lookPath(t.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	args := []string{imagePath, "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("tesseract %s: %w: %s", imagePath, err, msg)
		}
		return "", fmt.Errorf("tesseract %s: %w", imagePath, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
