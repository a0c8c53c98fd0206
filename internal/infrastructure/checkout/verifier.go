// Package checkout verifies hosted-checkout orders against the provider's
// order API.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/checkerhub/checkerhub/internal/domain/payment"
)

const (
	defaultTimeout = 10 * time.Second
	// tokenLeeway refreshes the access token before the provider expires it.
	tokenLeeway = time.Minute
)

// Verifier implements payment.Verifier over HTTP. The client credentials are
// exchanged for a bearer token that is cached until shortly before expiry.
type Verifier struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewVerifier(baseURL, clientID, clientSecret string, httpClient *http.Client) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Verifier{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns the cached token or fetches a new one with the
// client_credentials grant.
func (v *Verifier) accessToken(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.token != "" && v.now().Before(v.tokenExpiry) {
		return v.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(v.clientID, v.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fetch access token: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("fetch access token: empty token")
	}
	v.token = tok.AccessToken
	v.tokenExpiry = v.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenLeeway)
	return v.token, nil
}

func (v *Verifier) dropToken() {
	v.mu.Lock()
	v.token = ""
	v.mu.Unlock()
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount   money `json:"amount"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount money  `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// VerifyOrder fetches the order and reports what was actually captured.
func (v *Verifier) VerifyOrder(ctx context.Context, orderID string) (*payment.Capture, error) {
	token, err := v.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := v.baseURL + "/v2/checkout/orders/" + url.PathEscape(orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		v.dropToken()
		return nil, fmt.Errorf("fetch order %s: provider returned 401", orderID)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", payment.ErrOrderNotFound, orderID)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch order %s: provider returned %d: %s", orderID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var order orderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&order); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return toCapture(orderID, &order)
}

// toCapture sums completed captures. Orders without capture records fall back
// to the purchase unit amounts.
func toCapture(orderID string, order *orderResponse) (*payment.Capture, error) {
	c := &payment.Capture{OrderID: orderID, Status: order.Status, Amount: decimal.Zero}
	if order.ID != "" && order.ID != orderID {
		return nil, fmt.Errorf("%w: provider returned order %s", payment.ErrOrderNotFound, order.ID)
	}

	captured := false
	for _, pu := range order.PurchaseUnits {
		for _, cp := range pu.Payments.Captures {
			captured = true
			if !strings.EqualFold(cp.Status, payment.CaptureStatusCompleted) {
				continue
			}
			if err := addAmount(c, cp.Amount); err != nil {
				return nil, err
			}
		}
	}
	if captured {
		return c, nil
	}
	for _, pu := range order.PurchaseUnits {
		if err := addAmount(c, pu.Amount); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func addAmount(c *payment.Capture, m money) error {
	amount, err := decimal.NewFromString(m.Value)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", m.Value, err)
	}
	if c.Currency == "" {
		c.Currency = strings.ToUpper(m.CurrencyCode)
	} else if !strings.EqualFold(c.Currency, m.CurrencyCode) {
		return fmt.Errorf("%w: mixed currencies %s and %s", payment.ErrCurrencyMismatch, c.Currency, m.CurrencyCode)
	}
	c.Amount = c.Amount.Add(amount)
	return nil
}
