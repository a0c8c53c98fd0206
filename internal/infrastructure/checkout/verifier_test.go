package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkerhub/checkerhub/internal/domain/payment"
)

type provider struct {
	*httptest.Server
	tokenCalls atomic.Int32
}

func newServer(t *testing.T, status int, body string) *provider {
	t.Helper()
	p := &provider{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			if r.Method != http.MethodPost || !ok || user != "id" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			p.tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "tok-1", "token_type": "Bearer", "expires_in": 32400}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v2/checkout/orders/ORDER-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(p.Close)
	return p
}

func TestVerifyOrder_Captured(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"id": "ORDER-1",
		"status": "COMPLETED",
		"purchase_units": [{
			"amount": {"currency_code": "USD", "value": "50.00"},
			"payments": {"captures": [
				{"id": "CAP-1", "status": "COMPLETED", "amount": {"currency_code": "usd", "value": "30.00"}},
				{"id": "CAP-2", "status": "COMPLETED", "amount": {"currency_code": "USD", "value": "20.00"}},
				{"id": "CAP-3", "status": "DECLINED", "amount": {"currency_code": "USD", "value": "99.00"}}
			]}
		}]
	}`)
	v := NewVerifier(srv.URL+"/", "id", "secret", nil)

	c, err := v.VerifyOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", c.OrderID)
	assert.Equal(t, "COMPLETED", c.Status)
	assert.Equal(t, "USD", c.Currency)
	assert.True(t, c.Amount.Equal(decimal.NewFromInt(50)), c.Amount.String())
	assert.NoError(t, c.Check(decimal.NewFromInt(50), "USD"))
}

func TestVerifyOrder_ApprovedNotCaptured(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"id": "ORDER-1",
		"status": "APPROVED",
		"purchase_units": [{"amount": {"currency_code": "USD", "value": "50.00"}}]
	}`)
	v := NewVerifier(srv.URL, "id", "secret", srv.Client())

	c, err := v.VerifyOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.True(t, c.Amount.Equal(decimal.NewFromInt(50)))
	assert.ErrorIs(t, c.Check(decimal.NewFromInt(50), "USD"), payment.ErrNotCaptured)
}

func TestVerifyOrder_Errors(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id": "ORDER-1", "status": "COMPLETED"}`)

	_, err := NewVerifier(srv.URL, "id", "secret", nil).VerifyOrder(context.Background(), "OTHER")
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)

	_, err = NewVerifier(srv.URL, "id", "wrong", nil).VerifyOrder(context.Background(), "ORDER-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	bad := newServer(t, http.StatusOK, `{"id": "ORDER-1", "status": "COMPLETED", "purchase_units": [{"amount": {"currency_code": "USD", "value": "abc"}}]}`)
	_, err = NewVerifier(bad.URL, "id", "secret", nil).VerifyOrder(context.Background(), "ORDER-1")
	assert.Error(t, err)

	mismatch := newServer(t, http.StatusOK, `{"id": "ORDER-2", "status": "COMPLETED"}`)
	_, err = NewVerifier(mismatch.URL, "id", "secret", nil).VerifyOrder(context.Background(), "ORDER-1")
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)
}

func TestVerifyOrder_ReusesAccessToken(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id": "ORDER-1", "status": "COMPLETED", "purchase_units": [{"amount": {"currency_code": "USD", "value": "5.00"}}]}`)
	v := NewVerifier(srv.URL, "id", "secret", nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := v.VerifyOrder(context.Background(), "ORDER-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.tokenCalls.Load())

	now = now.Add(9 * time.Hour)
	_, err := v.VerifyOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.tokenCalls.Load())
}

func TestVerifyOrder_DropsRejectedToken(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id": "ORDER-1", "status": "COMPLETED"}`)
	v := NewVerifier(srv.URL, "id", "secret", nil)
	v.token = "stale"
	v.tokenExpiry = time.Now().Add(time.Hour)

	_, err := v.VerifyOrder(context.Background(), "ORDER-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = v.VerifyOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.tokenCalls.Load())
}
