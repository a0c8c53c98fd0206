package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	appChecker "github.com/checkerhub/checkerhub/internal/application/checker"
	"github.com/checkerhub/checkerhub/internal/domain/checker"
)

type checkerCreateRequest struct {
	DisplayName string          `json:"display_name" validate:"required,max=100"`
	Bio         string          `json:"bio" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
}

type checkerUpdateRequest struct {
	DisplayName *string          `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Bio         *string          `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

func (s *Server) createChecker(w http.ResponseWriter, r *http.Request) {
	var req checkerCreateRequest
	if !s.bind(w, r, &req) {
		return
	}
	actor := actorOf(r)
	k, err := s.svc.Checkers.Register(r.Context(), actor.UserID, appChecker.CreateInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Price:       req.Price,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, k)
}

func (s *Server) listCheckers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	list, err := s.svc.Checkers.List(r.Context(), activeOnly, limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*checker.Checker{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"checkers": list})
}

func (s *Server) getChecker(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "checkerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid checkerId")
		return
	}
	k, err := s.svc.Checkers.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, k)
}

func (s *Server) getMyChecker(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	k, err := s.svc.Checkers.GetByUserID(r.Context(), actor.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if k == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", checker.ErrNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, k)
}

func (s *Server) updateMyChecker(w http.ResponseWriter, r *http.Request) {
	var req checkerUpdateRequest
	if !s.bind(w, r, &req) {
		return
	}
	actor := actorOf(r)
	k, err := s.svc.Checkers.UpdateMine(r.Context(), actor.UserID, appChecker.UpdateInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Price:       req.Price,
		IsActive:    req.IsActive,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, k)
}
