package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("ENV", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("SUPPORT_USER_ID", "")
	t.Setenv("OPERATOR_USER_IDS", "")
	t.Setenv("RECEIPT_MAX_BYTES", "")
	t.Setenv("CHECKOUT_CURRENCY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, uuid.Nil, cfg.SupportUserID)
	assert.Empty(t, cfg.OperatorUserIDs)
	assert.Equal(t, int64(10485760), cfg.ReceiptMaxBytes)
	assert.Equal(t, "USD", cfg.CheckoutCurrency)
}

func TestLoadOperatorsAndSupport(t *testing.T) {
	support := uuid.New()
	a, b := uuid.New(), uuid.New()
	t.Setenv("SUPPORT_USER_ID", support.String())
	t.Setenv("OPERATOR_USER_IDS", " "+a.String()+", ,"+b.String())
	t.Setenv("CHECKOUT_BASE_URL", "https://api.checkout.test/")
	t.Setenv("CHECKOUT_CLIENT_ID", "id")
	t.Setenv("CHECKOUT_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, support, cfg.SupportUserID)
	assert.Equal(t, []uuid.UUID{a, b}, cfg.OperatorUserIDs)
	assert.Equal(t, "https://api.checkout.test", cfg.CheckoutBaseURL)
	assert.True(t, cfg.CheckoutConfigured())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SESSION_TTL":       "soon",
		"SUPPORT_USER_ID":   "admin",
		"OPERATOR_USER_IDS": "not-a-uuid",
		"RECEIPT_MAX_BYTES": "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_HOST", "")

	_, err := Load()
	assert.Error(t, err)
}
