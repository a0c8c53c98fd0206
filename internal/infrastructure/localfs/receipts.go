// Package localfs stores receipts on the local disk for development setups
// without a bucket.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("invalid receipt key")

// ReceiptStore implements payment.ReceiptStore under a root directory.
type ReceiptStore struct {
	dir     string
	baseURL string
}

// NewReceiptStore creates the root directory if needed. URLs are baseURL
// followed by the key; an empty baseURL yields root-relative URLs.
func NewReceiptStore(dir, baseURL string) (*ReceiptStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &ReceiptStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the root directory files are written under.
func (s *ReceiptStore) Dir() string {
	return s.dir
}

func (s *ReceiptStore) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	path := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return s.baseURL + "/" + filepath.ToSlash(clean), nil
}
