package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"

	"formsai/internal/core/document"
)

type uploadFunc func(bucket, path string, data []byte, contentType string) error

// Archiver uploads final documents to a Supabase storage bucket.
type Archiver struct {
	bucket string
	prefix string
	upload uploadFunc
}

// NewArchiver returns nil when Supabase is not configured.
func NewArchiver(url, serviceKey, bucket string) (*Archiver, error) {
	if url == "" || serviceKey == "" || bucket == "" {
		return nil, nil
	}
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	upsert := true
	return &Archiver{
		bucket: bucket,
		prefix: "answers",
		upload: func(bucket, path string, data []byte, contentType string) error {
			_, err := client.Storage.UploadFile(bucket, path, bytes.NewReader(data), storage_go.FileOptions{
				ContentType: &contentType,
				Upsert:      &upsert,
			})
			return err
		},
	}, nil
}

func (a *Archiver) Name() string { return "supabase" }

// ObjectPath is the bucket key of a document.
func (a *Archiver) ObjectPath(path string) string {
	return filepath.ToSlash(filepath.Join(a.prefix, filepath.Base(path)))
}

func (a *Archiver) Publish(_ context.Context, path string, _ *document.ScrapedForm) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := a.upload(a.bucket, a.ObjectPath(path), data, "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", a.ObjectPath(path), err)
	}
	return nil
}
