package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t,
		"https://cdn.example.com/receipts/abc/file.png",
		ObjectURL("https://cdn.example.com/", "receipts/abc/file.png"))
	assert.Equal(t,
		"https://storage.googleapis.com/b/receipts/a%20b.pdf",
		ObjectURL("https://storage.googleapis.com/b", "/receipts/a b.pdf"))
}

func TestNewReceiptStoreDefaultsBaseURL(t *testing.T) {
	s := NewReceiptStore(nil, "bucket-1", "")
	assert.Equal(t, "https://storage.googleapis.com/bucket-1", s.publicBaseURL)

	s = NewReceiptStore(nil, "bucket-1", "https://files.example.com/")
	assert.Equal(t, "https://files.example.com", s.publicBaseURL)
}
