// Package gcs stores receipts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ReceiptStore implements payment.ReceiptStore on a bucket.
type ReceiptStore struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewClient creates a storage client. Explicit credentials JSON takes
// precedence over application default credentials.
func NewClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

// NewReceiptStore binds a store to bucket. Object URLs are built from
// publicBaseURL, defaulting to the public storage endpoint of the bucket.
func NewReceiptStore(client *storage.Client, bucket, publicBaseURL string) *ReceiptStore {
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}
	return &ReceiptStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// CheckBucket verifies the bucket exists and is reachable.
func (s *ReceiptStore) CheckBucket(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %q not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *ReceiptStore) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write receipt %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("write receipt %s: %w", key, err)
	}
	return ObjectURL(s.publicBaseURL, key), nil
}

func (s *ReceiptStore) Close() error {
	return s.client.Close()
}

// ObjectURL joins a base URL and an object key, escaping each key segment.
func ObjectURL(base, key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
