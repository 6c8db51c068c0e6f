package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores files in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS returns a Store writing in 'bucket'. Credentials come from the
// service account key file 'keyPath', or from the environment when empty.
func NewGCS(ctx context.Context, bucket, keyPath string) (*GCS, error) {
	var opts []option.ClientOption
	if keyPath != "" {
		opts = append(opts, option.WithCredentialsFile(keyPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put implements Store.
func (g *GCS) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if !validKey(key) {
		return 0, fmt.Errorf("invalid file key %q", key)
	}
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("failed to copy to GCS object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return n, nil
}

// Open implements Store.
func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", key, err)
	}
	return r, nil
}

// URL implements Store.
func (g *GCS) URL(key string) string { return "gs://" + g.bucket + "/" + key }

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }
