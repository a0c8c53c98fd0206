package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkerhub/checkerhub/internal/application/admin"
	appAuth "github.com/checkerhub/checkerhub/internal/application/auth"
	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/booking"
	appChecker "github.com/checkerhub/checkerhub/internal/application/checker"
	"github.com/checkerhub/checkerhub/internal/application/messaging"
	"github.com/checkerhub/checkerhub/internal/application/notify"
	appPayment "github.com/checkerhub/checkerhub/internal/application/payment"
	"github.com/checkerhub/checkerhub/internal/application/support"
	appUser "github.com/checkerhub/checkerhub/internal/application/user"
	"github.com/checkerhub/checkerhub/internal/infrastructure/memory"
	"github.com/checkerhub/checkerhub/internal/infrastructure/redisbus"
	"github.com/checkerhub/checkerhub/internal/infrastructure/sse"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	store := memory.NewStore()
	hub := sse.NewHub()
	notifier := notify.New(redisbus.NewLocalPublisher(hub), logger)
	az := authz.NewAuthorizer(nil, uuid.Nil)
	supportSvc := support.NewService(store.Conversations(), store.Checkers(), az, notifier, logger)

	svc := Services{
		Auth:     appAuth.NewService(store.Users(), store.Sessions(), time.Hour, logger),
		Users:    appUser.NewService(store.Users(), logger),
		Checkers: appChecker.NewService(store.Checkers(), logger),
		Bookings: booking.NewService(store.Conversations(), store.Checkers(), az, notifier, logger),
		Payments: appPayment.NewService(store.Conversations(), nil, nil, supportSvc, appPayment.Config{Currency: "USD"}, notifier, logger),
		Support:  supportSvc,
		Messages: messaging.NewService(store.Conversations(), store.Messages(), notifier, logger),
		Admin:    admin.NewService(store.Conversations(), az, notifier, logger),
		Authz:    az,
	}
	srv := httptest.NewServer(NewServer(svc, hub, Options{}, logger).Router())
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return &testServer{Server: srv, t: t}
}

func (ts *testServer) do(method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (ts *testServer) register(username string) (string, string) {
	ts.t.Helper()
	resp, body := ts.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "correct-horse-42",
	})
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, body)
	u := body["user"].(map[string]interface{})
	return body["session_token"].(string), u["user_id"].(string)
}

func TestServer_BookingFlow(t *testing.T) {
	ts := newTestServer(t)
	clientToken, _ := ts.register("alice")
	checkerToken, _ := ts.register("bob.checks")

	resp, body := ts.do(http.MethodPost, "/v1/checkers", checkerToken, map[string]interface{}{
		"display_name": "Bob",
		"price":        "25.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	checkerID := body["id"].(string)

	resp, body = ts.do(http.MethodPost, "/v1/conversations", clientToken, map[string]string{"checker_id": checkerID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	convID := body["id"].(string)
	assert.Equal(t, "pending_approval", body["status"])

	resp, body = ts.do(http.MethodPost, "/v1/conversations", clientToken, map[string]string{"checker_id": checkerID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, convID, body["id"])

	resp, _ = ts.do(http.MethodPost, "/v1/conversations/"+convID+"/accept", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(http.MethodPost, "/v1/conversations/"+convID+"/accept", checkerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "approved", body["status"])

	resp, body = ts.do(http.MethodPost, "/v1/conversations/"+convID+"/decline", checkerToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", body["error"])

	resp, body = ts.do(http.MethodPost, "/v1/conversations/"+convID+"/checkout", clientToken, map[string]string{"order_id": "ORDER-1"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, body)

	resp, body = ts.do(http.MethodGet, "/v1/conversations/"+convID+"/transitions", clientToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func TestServer_Messages(t *testing.T) {
	ts := newTestServer(t)
	clientToken, _ := ts.register("carol")
	checkerToken, _ := ts.register("dave.checks")
	outsiderToken, _ := ts.register("eve.watcher")

	_, body := ts.do(http.MethodPost, "/v1/checkers", checkerToken, map[string]interface{}{"display_name": "Dave", "price": 10})
	_, body = ts.do(http.MethodPost, "/v1/conversations", clientToken, map[string]string{"checker_id": body["id"].(string)})
	convID := body["id"].(string)
	base := "/v1/conversations/" + convID + "/messages"

	resp, body := ts.do(http.MethodPost, base, clientToken, map[string]string{"content": "  hello  "})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "hello", body["content"])

	resp, body = ts.do(http.MethodPost, base, clientToken, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PARAM", body["error"])

	resp, _ = ts.do(http.MethodPost, base, outsiderToken, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(http.MethodGet, base+"/unread", checkerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["unread"])

	resp, body = ts.do(http.MethodPost, base+"/read", checkerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, body = ts.do(http.MethodPost, base+"/read", checkerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])

	resp, body = ts.do(http.MethodGet, base+"?limit=10", checkerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["messages"], 1)

	resp, _ = ts.do(http.MethodGet, base+"?before=yesterday", checkerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_AuthErrors(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register("frank")

	resp, body := ts.do(http.MethodGet, "/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["error"])

	resp, _ = ts.do(http.MethodGet, "/v1/conversations/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/v1/conversations/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/v1/admin/conversations/lookup?id="+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "frank", "password": "wrong-password-1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"username": "frank", "password": "correct-horse-42"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = ts.do(http.MethodGet, "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "frank", body["username"])
	assert.Equal(t, false, body["is_operator"])

	resp, _ = ts.do(http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(http.MethodGet, "/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_AdminActivate(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(http.MethodPost, "/v1/auth/bootstrap", "", map[string]string{
		"username": "root.admin",
		"password": "correct-horse-42",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	resp, body = ts.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "root.admin",
		"password": "correct-horse-42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	adminToken := body["session_token"].(string)

	clientToken, _ := ts.register("grace")
	checkerToken, _ := ts.register("heidi.checks")
	_, body = ts.do(http.MethodPost, "/v1/checkers", checkerToken, map[string]interface{}{"display_name": "Heidi", "price": "5"})
	_, body = ts.do(http.MethodPost, "/v1/conversations", clientToken, map[string]string{"checker_id": body["id"].(string)})
	convID := body["id"].(string)

	resp, body = ts.do(http.MethodGet, "/v1/admin/conversations/lookup?id=%23"+convID, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["already_active"])

	resp, body = ts.do(http.MethodPost, "/v1/admin/conversations/activate", adminToken, map[string]string{"id": " #" + convID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["activated"])

	resp, body = ts.do(http.MethodPost, "/v1/admin/conversations/activate", adminToken, map[string]string{"id": convID})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["already_active"])

	resp, _ = ts.do(http.MethodPost, "/v1/admin/conversations/activate", adminToken, map[string]string{"id": "nonsense"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/v1/auth/bootstrap", "", map[string]string{
		"username": "second.admin",
		"password": "correct-horse-42",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_UserAdministration(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(http.MethodPost, "/v1/auth/bootstrap", "", map[string]string{
		"username": "root.admin",
		"password": "correct-horse-42",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	_, body = ts.do(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "root.admin",
		"password": "correct-horse-42",
	})
	adminToken := body["session_token"].(string)

	ivanToken, ivanID := ts.register("ivan")
	resp, _ = ts.do(http.MethodGet, "/v1/users", ivanToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = ts.do(http.MethodGet, "/v1/users?q=IVA", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["users"], 1)

	resp, _ = ts.do(http.MethodGet, "/v1/users?role=owner", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.do(http.MethodPut, "/v1/users/"+ivanID+"/password", ivanToken, map[string]string{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	// A self-service change keeps the current session.
	resp, body = ts.do(http.MethodPut, "/v1/users/"+ivanID+"/password", ivanToken, map[string]string{"password": "battery-staple-7"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	resp, _ = ts.do(http.MethodGet, "/v1/auth/me", ivanToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(http.MethodPatch, "/v1/users/"+ivanID, adminToken, map[string]string{"status": "disabled"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "DISABLED", body["status"])
	resp, _ = ts.do(http.MethodGet, "/v1/auth/me", ivanToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/v1/users/"+uuid.NewString(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
