package httpapi

import (
	"net/http"
)

type activateRequest struct {
	ID string `json:"id" validate:"required"`
}

// adminLookup accepts the id as pasted by the operator, e.g. "#<uuid>".
func (s *Server) adminLookup(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "id is required")
		return
	}
	res, err := s.svc.Admin.Lookup(r.Context(), actorOf(r), raw)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) adminActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !s.bind(w, r, &req) {
		return
	}
	res, err := s.svc.Admin.Activate(r.Context(), actorOf(r), req.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
