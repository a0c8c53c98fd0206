package httpapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	appAuth "github.com/checkerhub/checkerhub/internal/application/auth"
	domainUser "github.com/checkerhub/checkerhub/internal/domain/user"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username    string `json:"username" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Password    string `json:"password" validate:"required"`
}

type loginResponse struct {
	User         *domainUser.User `json:"user"`
	SessionID    string           `json:"session_id"`
	ExpiresAt    string           `json:"expires_at"`
	SessionToken string           `json:"session_token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.startSession(w, r, req.Username, req.Password, http.StatusOK)
}

// register creates a member account and logs it in.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.bind(w, r, &req) {
		return
	}
	if _, err := s.svc.Users.Register(r.Context(), req.Username, req.DisplayName, req.Password); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.startSession(w, r, req.Username, req.Password, http.StatusCreated)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, username, password string, status int) {
	userAgent := r.UserAgent()
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	res, err := s.svc.Auth.Login(r.Context(), username, password, &userAgent, &ip)
	if err != nil {
		if errors.Is(err, appAuth.ErrInvalidCredentials) || errors.Is(err, appAuth.ErrUserDisabled) {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		s.respondServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, status, loginResponse{
		User:         res.User,
		SessionID:    res.Session.SessionID.String(),
		ExpiresAt:    res.Session.ExpiresAt.Format(time.RFC3339),
		SessionToken: res.Token,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r, s.opts.SessionCookieName)
	if err := s.svc.Auth.Logout(r.Context(), token); err != nil {
		s.logger.Warn().Err(err).Msg("logout failed")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.opts.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "OK"})
}

type meResponse struct {
	*domainUser.User
	IsOperator bool        `json:"is_operator"`
	Checker    interface{} `json:"checker,omitempty"`
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	auth := callerFrom(r.Context())
	u, err := s.svc.Users.GetUser(r.Context(), auth.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if u == nil {
		s.respondServiceError(w, r, domainUser.ErrNotFound)
		return
	}
	resp := meResponse{User: u, IsOperator: s.svc.Authz.IsOperator(auth.Actor)}
	k, err := s.svc.Checkers.GetByUserID(r.Context(), u.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if k != nil {
		resp.Checker = k
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) bootstrapAdmin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.bind(w, r, &req) {
		return
	}
	u, err := s.svc.Users.Bootstrap(r.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}
