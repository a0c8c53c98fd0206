package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	appUser "github.com/checkerhub/checkerhub/internal/application/user"
	"github.com/checkerhub/checkerhub/internal/domain/user"
)

type createUserRequest struct {
	Username    string `json:"username" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role"`
}

type patchUserRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Role        *string `json:"role,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type changePasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type userListResponse struct {
	Users  []*user.User `json:"users"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// createUser lets an administrator open an account directly.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.bind(w, r, &req) {
		return
	}
	in := appUser.CreateInput{Username: req.Username, DisplayName: req.DisplayName, Password: req.Password}
	if req.Role != "" {
		role, err := user.ParseRole(req.Role)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		in.Role = role
	}
	u, err := s.svc.Users.CreateUser(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parseLimitOffset(r, 100, 200)
	filter := user.Filter{Search: q.Get("q")}
	if v := q.Get("role"); v != "" {
		role, err := user.ParseRole(v)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		filter.Role = &role
	}
	if v := q.Get("status"); v != "" {
		st, err := user.ParseStatus(v)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		filter.Status = &st
	}
	users, err := s.svc.Users.ListUsers(r.Context(), filter, limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, userListResponse{Users: users, Limit: limit, Offset: offset})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.selfOrAdmin(w, r)
	if !ok {
		return
	}
	u, err := s.svc.Users.GetUser(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if u == nil {
		s.respondServiceError(w, r, user.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// updateUser applies an administrator's changes. Disabling an account ends
// all of its sessions.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	var req patchUserRequest
	if !s.bind(w, r, &req) {
		return
	}
	in := appUser.UpdateInput{DisplayName: req.DisplayName}
	if req.Role != nil {
		role, err := user.ParseRole(*req.Role)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		in.Role = &role
	}
	if req.Status != nil {
		st, err := user.ParseStatus(*req.Status)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		in.Status = &st
	}
	u, err := s.svc.Users.UpdateUser(r.Context(), id, in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if !u.IsActive() {
		s.revokeSessions(r, u.UserID, uuid.Nil)
	}
	respondJSON(w, http.StatusOK, u)
}

// setUserPassword changes a password and signs out the account's other
// sessions. The caller's own session survives a self-service change.
func (s *Server) setUserPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.selfOrAdmin(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !s.bind(w, r, &req) {
		return
	}
	if err := s.svc.Users.SetPassword(r.Context(), id, req.Password); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	keep := uuid.Nil
	if c := callerFrom(r.Context()); c != nil && c.UserID == id {
		keep = c.SessionID
	}
	s.revokeSessions(r, id, keep)
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "OK"})
}

// selfOrAdmin parses {userId} and admits the account itself or an ADMIN.
func (s *Server) selfOrAdmin(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return uuid.Nil, false
	}
	c := callerFrom(r.Context())
	if c == nil || (c.Role != user.RoleAdmin && c.UserID != id) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) revokeSessions(r *http.Request, userID, keep uuid.UUID) {
	n, err := s.svc.Auth.RevokeUser(r.Context(), userID, keep)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("session revocation failed")
		return
	}
	if n > 0 {
		s.logger.Info().
			Str("user_id", userID.String()).
			Int("sessions", n).
			Str("by", actorOf(r).UserID.String()).
			Msg("sessions revoked")
	}
}
