package payment

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_payment.go -package=mocks . Verifier,ReceiptStore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CaptureStatusCompleted is the provider status of a captured order.
const CaptureStatusCompleted = "COMPLETED"

var (
	ErrNotCaptured         = errors.New("payment has not been captured")
	ErrAmountMismatch      = errors.New("captured amount does not cover the price")
	ErrCurrencyMismatch    = errors.New("captured currency does not match")
	ErrVerifierUnavailable = errors.New("payment verification is not configured")
	ErrOrderNotFound       = errors.New("payment order not found")
	ErrVerificationFailed  = errors.New("payment could not be verified")
	ErrReceiptTooLarge     = errors.New("receipt file is too large")
	ErrReceiptEmpty        = errors.New("receipt file is empty")
	ErrReceiptType         = errors.New("unsupported receipt file type")
)

// Capture is the provider's view of a hosted-checkout order.
type Capture struct {
	OrderID  string          `json:"order_id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Check validates the capture against the expected price and currency.
func (c *Capture) Check(price decimal.Decimal, currency string) error {
	if !strings.EqualFold(c.Status, CaptureStatusCompleted) {
		return fmt.Errorf("%w: provider status %s", ErrNotCaptured, c.Status)
	}
	if currency != "" && !strings.EqualFold(c.Currency, currency) {
		return fmt.Errorf("%w: got %s want %s", ErrCurrencyMismatch, c.Currency, currency)
	}
	if c.Amount.LessThan(price) {
		return fmt.Errorf("%w: captured %s, price %s", ErrAmountMismatch, c.Amount.String(), price.String())
	}
	return nil
}

// Verifier confirms hosted-checkout orders with the payment provider.
type Verifier interface {
	VerifyOrder(ctx context.Context, orderID string) (*Capture, error)
}

// ReceiptStore durably stores uploaded manual-payment receipts.
type ReceiptStore interface {
	// Put stores data under key and returns a retrievable URL.
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

var receiptTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// DetectReceiptType sniffs the content type of a receipt and rejects anything
// that is not an image or PDF.
func DetectReceiptType(data []byte, maxBytes int64) (contentType string, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrReceiptEmpty
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", "", ErrReceiptTooLarge
	}
	contentType = http.DetectContentType(data)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := receiptTypes[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrReceiptType, contentType)
	}
	return contentType, ext, nil
}

// ReceiptKey builds the object key for a conversation's receipt.
func ReceiptKey(conversationID uuid.UUID, ext string) string {
	return path.Join("receipts", conversationID.String(), uuid.NewString()+ext)
}
