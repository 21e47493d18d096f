// Package gcs stores failure captures in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters for the GCS capture store.
type Config struct {
	// Bucket receives all capture objects.
	Bucket string
	// Prefix namespaces capture keys inside the bucket, e.g. "captures".
	// Optional.
	Prefix string
}

// BlobStore writes failure captures to a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed capture store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads one capture and returns its gs:// URI. Captures are
// a few hundred KB of HTML at most, so the upload is a single request:
// ChunkSize 0 disables resumable buffering.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	key := path
	if s.prefix != "" {
		key = s.prefix + "/" + path
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ChunkSize = 0
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload capture: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize capture: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
