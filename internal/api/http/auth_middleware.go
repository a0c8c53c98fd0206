package httpapi

import (
	"net/http"
	"strings"

	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/domain/user"
)

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r, s.opts.SessionCookieName)
		u, sess, err := s.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		ctx := withCaller(r.Context(), &caller{
			Actor:     authz.ActorFrom(u),
			Username:  u.Username,
			SessionID: sess.SessionID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := callerFrom(r.Context())
		if u == nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
			return
		}
		if u.Role != user.RoleAdmin {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireOperator admits ADMIN users and configured operator identities.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := callerFrom(r.Context())
		if u == nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
			return
		}
		if !s.svc.Authz.IsOperator(u.Actor) {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "operator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request, cookieName string) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return c.Value
		}
	}
	// EventSource cannot set headers.
	if r.URL.Path == "/v1/stream" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
