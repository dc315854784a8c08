package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// TimestampLayout is the suffix format used in every generated file name.
	TimestampLayout = "20060102_150405"

	baseName      = "microsoft_forms_complete_data"
	ocrSuffix     = "_with_ocr_"
	answersSuffix = "_with_answers"
)

var ErrNotFound = errors.New("document not found")

// Store owns the directory where form documents are written.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

// SaveNew writes a freshly scraped form under a timestamped name and returns its path.
func (s *Store) SaveNew(form *ScrapedForm) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}
	stamp := s.now().Format(TimestampLayout)
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", baseName, stamp))
	// Several forms can be scraped within the same second.
	for i := 2; exists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%s_%d.json", baseName, stamp, i))
	}
	if err := Save(path, form); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a form document.
func Load(path string) (*ScrapedForm, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	var form ScrapedForm
	if err := json.Unmarshal(b, &form); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &form, nil
}

// ContainsImages reads only the contains_images flag of a document.
func ContainsImages(path string) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var head struct {
		ContainsImages *bool `json:"contains_images"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	if head.ContainsImages == nil {
		return false, fmt.Errorf("%s: missing contains_images", path)
	}
	return *head.ContainsImages, nil
}

// Save writes the document as indented UTF-8 JSON with HTML and non-ASCII
// characters kept literal. The write goes through a temp file and a rename.
func Save(path string, form *ScrapedForm) error {
	b, err := Marshal(form)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OCRPath is the sibling written by OCR enrichment.
func OCRPath(path string, at time.Time) string {
	dir, stem := split(path)
	return filepath.Join(dir, stem+ocrSuffix+at.Format(TimestampLayout)+".json")
}

// AnswersPath is the sibling written by answer generation.
func AnswersPath(path string) string {
	dir, stem := split(path)
	return filepath.Join(dir, stem+answersSuffix+".json")
}

func split(path string) (string, string) {
	base := filepath.Base(path)
	return filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveImage returns the on-disk location of an image reference. Relative
// paths that do not exist from the working directory are looked up in imagesDir.
func ResolveImage(img ImageRef, imagesDir string) string {
	p := img.Filepath
	if p == "" {
		p = img.Filename
	}
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) || exists(p) || imagesDir == "" {
		return p
	}
	return filepath.Join(imagesDir, filepath.Base(p))
}

// RemoveImages deletes every image file referenced by the form. Missing files
// are not errors; other failures are collected and returned.
func RemoveImages(form *ScrapedForm, imagesDir string) (int, []error) {
	removed := 0
	var errs []error
	for _, q := range form.Questions {
		for _, img := range q.Images {
			p := ResolveImage(img, imagesDir)
			if p == "" {
				continue
			}
			err := os.Remove(p)
			switch {
			case err == nil:
				removed++
			case errors.Is(err, os.ErrNotExist):
			default:
				errs = append(errs, err)
			}
		}
	}
	return removed, errs
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
