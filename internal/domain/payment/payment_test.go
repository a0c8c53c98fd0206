package payment

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestCaptureCheck(t *testing.T) {
	price := decimal.NewFromInt(50)

	t.Run("completed and covering", func(t *testing.T) {
		c := &Capture{Status: "COMPLETED", Amount: decimal.RequireFromString("50.00"), Currency: "USD"}
		assert.NoError(t, c.Check(price, "USD"))
	})

	t.Run("not completed", func(t *testing.T) {
		c := &Capture{Status: "APPROVED", Amount: price, Currency: "USD"}
		assert.ErrorIs(t, c.Check(price, "USD"), ErrNotCaptured)
	})

	t.Run("short amount", func(t *testing.T) {
		c := &Capture{Status: "COMPLETED", Amount: decimal.RequireFromString("49.99"), Currency: "USD"}
		assert.ErrorIs(t, c.Check(price, "USD"), ErrAmountMismatch)
	})

	t.Run("wrong currency", func(t *testing.T) {
		c := &Capture{Status: "COMPLETED", Amount: price, Currency: "EUR"}
		assert.ErrorIs(t, c.Check(price, "USD"), ErrCurrencyMismatch)
	})

	t.Run("currency not enforced when empty", func(t *testing.T) {
		c := &Capture{Status: "completed", Amount: price, Currency: "EUR"}
		assert.NoError(t, c.Check(price, ""))
	})
}

func TestDetectReceiptType(t *testing.T) {
	ct, ext, err := DetectReceiptType(pngHeader, 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, ".png", ext)

	ct, ext, err = DetectReceiptType([]byte("%PDF-1.7\n"), 1024)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)
	assert.Equal(t, ".pdf", ext)

	_, _, err = DetectReceiptType(nil, 1024)
	assert.ErrorIs(t, err, ErrReceiptEmpty)

	_, _, err = DetectReceiptType(pngHeader, 4)
	assert.ErrorIs(t, err, ErrReceiptTooLarge)

	_, _, err = DetectReceiptType([]byte("just some text"), 1024)
	assert.ErrorIs(t, err, ErrReceiptType)
}

func TestReceiptKey(t *testing.T) {
	id := uuid.New()
	key := ReceiptKey(id, ".png")
	assert.True(t, strings.HasPrefix(key, "receipts/"+id.String()+"/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
}
