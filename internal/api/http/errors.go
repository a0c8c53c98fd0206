package httpapi

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	appAuth "github.com/checkerhub/checkerhub/internal/application/auth"
	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/booking"
	appPayment "github.com/checkerhub/checkerhub/internal/application/payment"
	"github.com/checkerhub/checkerhub/internal/application/support"
	appUser "github.com/checkerhub/checkerhub/internal/application/user"
	"github.com/checkerhub/checkerhub/internal/domain/checker"
	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
	"github.com/checkerhub/checkerhub/internal/domain/payment"
	"github.com/checkerhub/checkerhub/internal/domain/user"
)

type errorClass struct {
	status int
	code   string
	errs   []error
}

var errorClasses = []errorClass{
	{http.StatusUnauthorized, "UNAUTHORIZED", []error{appAuth.ErrUnauthenticated}},
	{http.StatusForbidden, "FORBIDDEN", []error{authz.ErrForbidden}},
	{http.StatusNotFound, "NOT_FOUND", []error{
		conversation.ErrNotFound,
		checker.ErrNotFound,
		user.ErrNotFound,
	}},
	{http.StatusPaymentRequired, "PAYMENT_NOT_VERIFIED", []error{
		payment.ErrVerificationFailed,
		payment.ErrNotCaptured,
		payment.ErrAmountMismatch,
		payment.ErrCurrencyMismatch,
		payment.ErrOrderNotFound,
	}},
	{http.StatusConflict, "CONFLICT", []error{
		conversation.ErrTerminal,
		conversation.ErrInvalidTransition,
		conversation.ErrDuplicateOpen,
		conversation.ErrDuplicatePayment,
		booking.ErrBookingRejected,
		checker.ErrAlreadyRegistered,
		checker.ErrInactive,
		support.ErrSupportThread,
		user.ErrUsernameTaken,
		appUser.ErrAlreadyBootstrapped,
	}},
	{http.StatusServiceUnavailable, "UNAVAILABLE", []error{
		payment.ErrVerifierUnavailable,
		support.ErrSupportUnavailable,
		appPayment.ErrReceiptsUnavailable,
	}},
	{http.StatusRequestEntityTooLarge, "TOO_LARGE", []error{payment.ErrReceiptTooLarge}},
	{http.StatusBadRequest, "INVALID_PARAM", []error{
		message.ErrEmptyContent,
		message.ErrContentTooLong,
		payment.ErrReceiptEmpty,
		payment.ErrReceiptType,
		appPayment.ErrOrderIDRequired,
		booking.ErrSelfBooking,
		booking.ErrSupportChecker,
		checker.ErrInvalidPrice,
		checker.ErrNameRequired,
		conversation.ErrInvalidStatus,
		conversation.ErrInvalidPrice,
		user.ErrInvalid,
	}},
}

// respondServiceError maps application errors to HTTP responses. Conflicts
// carry the stored status so clients can refresh their view.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *conversation.ConflictError
	if errors.As(err, &conflict) {
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":           "CONFLICT",
			"message":         err.Error(),
			"status":          conflict.Current,
			"conversation_id": conflict.ConversationID,
		})
		return
	}
	for _, class := range errorClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				respondError(w, class.status, class.code, err.Error())
				return
			}
		}
	}
	s.logger.Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", chimw.GetReqID(r.Context())).
		Msg("request failed")
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
