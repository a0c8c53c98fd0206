package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/application/booking"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/payment"
)

type requestTestRequest struct {
	CheckerID string `json:"checker_id" validate:"required,uuid"`
}

type checkoutRequest struct {
	OrderID string `json:"order_id" validate:"required,max=128"`
}

type receiptResponse struct {
	Conversation        *conversation.Detail `json:"conversation"`
	SupportConversation *conversation.Detail `json:"support_conversation,omitempty"`
	SupportError        string               `json:"support_error,omitempty"`
}

type supportResponse struct {
	Conversation *conversation.Detail `json:"conversation"`
	Created      bool                 `json:"created"`
}

// requestTest answers 201 for a new booking and 200 when the pair's open
// conversation is returned instead.
func (s *Server) requestTest(w http.ResponseWriter, r *http.Request) {
	var req requestTestRequest
	if !s.bind(w, r, &req) {
		return
	}
	checkerID, _ := uuid.Parse(req.CheckerID)
	res, err := s.svc.Bookings.RequestTest(r.Context(), actorOf(r), checkerID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	respondJSON(w, status, res.Conversation)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	role := booking.Role(r.URL.Query().Get("role"))
	if role != "" && role != booking.RoleClient && role != booking.RoleChecker {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "role must be client or checker")
		return
	}
	var status *conversation.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := conversation.ParseStatus(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
			return
		}
		status = &st
	}
	list, err := s.svc.Bookings.List(r.Context(), actorOf(r), role, status, limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*conversation.Detail{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversations": list})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Bookings.Get(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) hideConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	deleted, err := s.svc.Bookings.Hide(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"hidden": true, "deleted": deleted})
}

func (s *Server) listTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	trs, err := s.svc.Bookings.Transitions(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if trs == nil {
		trs = []*conversation.Transition{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"transitions": trs})
}

func (s *Server) acceptConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Bookings.Accept(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) declineConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Bookings.Decline(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !s.bind(w, r, &req) {
		return
	}
	d, err := s.svc.Payments.ConfirmCheckout(r.Context(), actorOf(r), id, req.OrderID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// uploadReceipt takes the receipt as multipart field "file".
func (s *Server) uploadReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxReceiptBytes+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", payment.ErrReceiptTooLarge.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxReceiptBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	res, err := s.svc.Payments.SubmitReceipt(r.Context(), actorOf(r), id, data)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := receiptResponse{Conversation: res.Conversation}
	if res.Support != nil {
		resp.SupportConversation = res.Support.Conversation
	}
	if res.SupportErr != nil {
		resp.SupportError = res.SupportErr.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// openManualPayment opens, or returns, the client's support conversation for
// a booking without uploading a receipt.
func (s *Server) openManualPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Support.ForBooking(r.Context(), actorOf(r), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, supportResponse{Conversation: res.Conversation, Created: res.Created})
}

func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", conversation.ErrNotFound.Error())
		return uuid.Nil, false
	}
	return id, true
}
