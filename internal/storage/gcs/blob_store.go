// Package gcs archives snapshots to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config names the bucket snapshots are written to.
type Config struct {
	Bucket string
}

// writerFunc opens a writer for one object.
type writerFunc func(ctx context.Context, path, contentType string) io.WriteCloser

// BlobStore writes objects into one bucket.
type BlobStore struct {
	bucket string
	open   writerFunc
	client *storage.Client
}

// New wraps an existing client. The caller keeps ownership of the client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket name is required")
	}
	return &BlobStore{bucket: cfg.Bucket, open: bucketWriter(client, cfg.Bucket)}, nil
}

// Dial creates a client, verifies the bucket is reachable and returns a BlobStore that owns the client.
func Dial(ctx context.Context, cfg Config, opts ...option.ClientOption) (*BlobStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("check bucket %q: %w", cfg.Bucket, err), client.Close())
	}
	return &BlobStore{bucket: cfg.Bucket, open: bucketWriter(client, cfg.Bucket), client: client}, nil
}

func bucketWriter(client *storage.Client, bucket string) writerFunc {
	return func(ctx context.Context, path, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(path).NewWriter(ctx)
		if contentType != "" {
			w.ContentType = contentType
		}
		return w
	}
}

// PutObject uploads data and returns a gs:// URI. The upload is committed only when
// the whole reader was copied.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", errors.New("path is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.open(ctx, path, contentType)
	if _, err := io.Copy(w, r); err != nil {
		// Canceling the context aborts the pending upload.
		cancel()
		return "", errors.Join(fmt.Errorf("copy object: %w", err), w.Close())
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the client when this BlobStore owns it.
func (s *BlobStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
