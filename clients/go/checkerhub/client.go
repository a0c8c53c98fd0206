// Package checkerhub is a Go client for the checkerhub HTTP API.
package checkerhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/application/admin"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
)

// Client is a checkerhub API client authenticated with a session token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client. Streaming requests are not subject to the
// client timeout.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
	// Status is the stored conversation status on a 409 conflict.
	Status conversation.Status `json:"status,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("checkerhub error %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("checkerhub error %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsConflict reports whether the server refused a transition because the
// conversation moved on.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.send(ctx, method, path, body, out)
	return err
}

// send performs a request and decodes a successful JSON response into out.
func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return resp.StatusCode, apiErr
	}
	if out == nil || len(respBody) == 0 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.Unmarshal(respBody, out)
}

// LoginResponse is returned by Login.
type LoginResponse struct {
	SessionID    string `json:"session_id"`
	ExpiresAt    string `json:"expires_at"`
	SessionToken string `json:"session_token"`
	User         struct {
		UserID   uuid.UUID `json:"user_id"`
		Username string    `json:"username"`
		Role     string    `json:"role"`
	} `json:"user"`
}

// Login starts a session and stores its token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.Token = resp.SessionToken
	return &resp, nil
}

// RequestTest opens (or reuses) the booking with a checker. reused is true
// when the pair already had an open conversation.
func (c *Client) RequestTest(ctx context.Context, checkerID uuid.UUID) (*conversation.Detail, bool, error) {
	var d conversation.Detail
	status, err := c.send(ctx, http.MethodPost, "/v1/conversations", map[string]string{"checker_id": checkerID.String()}, &d)
	if err != nil {
		return nil, false, err
	}
	return &d, status == http.StatusOK, nil
}

func (c *Client) Conversation(ctx context.Context, id uuid.UUID) (*conversation.Detail, error) {
	var d conversation.Detail
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/"+id.String(), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) Accept(ctx context.Context, id uuid.UUID) (*conversation.Detail, error) {
	return c.transition(ctx, id, "accept", nil)
}

func (c *Client) Decline(ctx context.Context, id uuid.UUID) (*conversation.Detail, error) {
	return c.transition(ctx, id, "decline", nil)
}

// ConfirmCheckout asks the server to verify a hosted-checkout order.
func (c *Client) ConfirmCheckout(ctx context.Context, id uuid.UUID, orderID string) (*conversation.Detail, error) {
	return c.transition(ctx, id, "checkout", map[string]string{"order_id": orderID})
}

func (c *Client) transition(ctx context.Context, id uuid.UUID, action string, body interface{}) (*conversation.Detail, error) {
	var d conversation.Detail
	if err := c.do(ctx, http.MethodPost, "/v1/conversations/"+id.String()+"/"+action, body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Messages returns up to limit messages oldest first. A non-nil before
// pages backwards.
func (c *Client) Messages(ctx context.Context, id uuid.UUID, limit int, before *time.Time) ([]*message.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != nil {
		q.Set("before", before.UTC().Format(time.RFC3339Nano))
	}
	path := "/v1/conversations/" + id.String() + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Messages []*message.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, id uuid.UUID, content string) (*message.Message, error) {
	var m message.Message
	if err := c.do(ctx, http.MethodPost, "/v1/conversations/"+id.String()+"/messages", map[string]string{"content": content}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkRead marks the other party's messages read and returns the ids that
// changed.
func (c *Client) MarkRead(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var resp struct {
		MessageIDs []uuid.UUID `json:"message_ids"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/conversations/"+id.String()+"/messages/read", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MessageIDs, nil
}

// Lookup fetches a conversation for an operator. raw may be pasted as-is.
func (c *Client) Lookup(ctx context.Context, raw string) (*admin.Result, error) {
	var res admin.Result
	path := "/v1/admin/conversations/lookup?" + url.Values{"id": {raw}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Activate overrides a conversation to approved.
func (c *Client) Activate(ctx context.Context, raw string) (*admin.Result, error) {
	var res admin.Result
	if err := c.do(ctx, http.MethodPost, "/v1/admin/conversations/activate", map[string]string{"id": raw}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
