package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/and161185/eventcert/internal/errs"
)

// GCS stores blobs in a Google Cloud Storage bucket.
type GCS struct {
	client *gcstorage.Client
	bucket *gcstorage.BucketHandle
}

// NewGCS opens a client for bucket. credentialsFile may be empty to use
// application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs: bucket not set")
	}
	opts := []option.ClientOption{gcstorage.WithDisabledClientMetrics()}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

// Close closes the client.
func (g *GCS) Close() error { return g.client.Close() }

// Put uploads data under key.
func (g *GCS) Put(ctx context.Context, key string, data []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	w := g.bucket.Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Get downloads the object; missing objects yield errs.ErrNotFound.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	r, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Delete removes the object. Deleting a missing object is not an error.
func (g *GCS) Delete(ctx context.Context, key string) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil
	}
	return err
}
