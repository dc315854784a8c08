package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"formsai/internal/core/document"
)

// DownloadTimeout bounds a single image download.
const DownloadTimeout = 10 * time.Second

// ImageFetcher stores the image at src for the given question and image numbers.
type ImageFetcher interface {
	Fetch(ctx context.Context, src string, question, image int) (document.ImageRef, error)
}

// HTTPImageFetcher downloads images into Dir.
type HTTPImageFetcher struct {
	Dir     string
	client  *http.Client
	profile BrowserProfile
	now     func() time.Time
}

func NewHTTPImageFetcher(dir string, profile BrowserProfile) *HTTPImageFetcher {
	return &HTTPImageFetcher{
		Dir:     dir,
		client:  &http.Client{Timeout: DownloadTimeout},
		profile: profile,
		now:     time.Now,
	}
}

// ImageFilename is question_<n>_image_<j>_<timestamp>.jpg.
func ImageFilename(question, image int, at time.Time) string {
	return fmt.Sprintf("question_%d_image_%d_%s.jpg", question, image, at.Format(document.TimestampLayout))
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, src string, question, image int) (document.ImageRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return document.ImageRef{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.profile.UserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return document.ImageRef{}, fmt.Errorf("download %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return document.ImageRef{}, fmt.Errorf("download %s: status %d", src, resp.StatusCode)
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return document.ImageRef{}, err
	}
	name := ImageFilename(question, image, f.now())
	path := filepath.Join(f.Dir, name)
	out, err := os.Create(path)
	if err != nil {
		return document.ImageRef{}, err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return document.ImageRef{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return document.ImageRef{}, err
	}
	return document.ImageRef{ImageNumber: image, Filename: name, Filepath: path, OriginalSrc: src}, nil
}
