// Package gcs archives raw pages in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

type objectWriter interface {
	io.Writer
	Close() error
}

type writerFunc func(ctx context.Context, object, contentType string) objectWriter

// BlobStore writes archived pages to a configured GCS bucket.
type BlobStore struct {
	client    *storage.Client
	bucket    string
	newWriter writerFunc
}

// Dial creates a storage client with Application Default Credentials and
// checks the bucket is reachable before returning a store.
func Dial(ctx context.Context, cfg Config) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %q attributes: %w", cfg.Bucket, err)
	}
	return New(client, cfg)
}

// New creates a GCS-backed blob store from an existing client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	s := &BlobStore{client: client, bucket: cfg.Bucket}
	s.newWriter = func(ctx context.Context, object, contentType string) objectWriter {
		w := client.Bucket(s.bucket).Object(object).NewWriter(ctx)
		if contentType != "" {
			w.ContentType = contentType
		}
		return w
	}
	return s, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.newWriter(ctx, path, contentType)
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the storage client.
func (s *BlobStore) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
