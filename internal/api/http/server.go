package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/checkerhub/checkerhub/internal/application/admin"
	appAuth "github.com/checkerhub/checkerhub/internal/application/auth"
	"github.com/checkerhub/checkerhub/internal/application/authz"
	"github.com/checkerhub/checkerhub/internal/application/booking"
	appChecker "github.com/checkerhub/checkerhub/internal/application/checker"
	"github.com/checkerhub/checkerhub/internal/application/messaging"
	appPayment "github.com/checkerhub/checkerhub/internal/application/payment"
	"github.com/checkerhub/checkerhub/internal/application/support"
	appUser "github.com/checkerhub/checkerhub/internal/application/user"
	"github.com/checkerhub/checkerhub/internal/infrastructure/sse"
)

// Services bundles the application services the handlers call.
type Services struct {
	Auth     *appAuth.Service
	Users    *appUser.Service
	Checkers *appChecker.Service
	Bookings *booking.Service
	Payments *appPayment.Service
	Support  *support.Service
	Messages *messaging.Service
	Admin    *admin.Service
	Authz    *authz.Authorizer
}

// Options configures transport concerns.
type Options struct {
	SessionCookieName   string
	SessionCookieSecure bool
	CORSAllowedOrigins  []string
	// ReceiptDir, when set, is served under /receipts/.
	ReceiptDir      string
	MaxReceiptBytes int64
	// HealthChecks are run by /healthz, keyed by dependency name.
	HealthChecks map[string]func(context.Context) error
	RateLimiter  RateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc      Services
	sseHub   *sse.Hub
	opts     Options
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewServer(svc Services, sseHub *sse.Hub, opts Options, logger zerolog.Logger) *Server {
	if opts.SessionCookieName == "" {
		opts.SessionCookieName = "checkerhub_session"
	}
	if opts.MaxReceiptBytes <= 0 {
		opts.MaxReceiptBytes = 10 << 20
	}
	return &Server{
		svc:      svc,
		sseHub:   sseHub,
		opts:     opts,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)

	origins := s.opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: len(s.opts.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.health)
	if s.opts.ReceiptDir != "" {
		r.Handle("/receipts/*", http.StripPrefix("/receipts", http.FileServer(http.Dir(s.opts.ReceiptDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimit("login", 20, time.Minute)).Post("/login", s.login)
			r.With(s.rateLimit("register", 10, time.Hour)).Post("/register", s.register)
			r.Post("/bootstrap", s.bootstrapAdmin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/checkers", func(r chi.Router) {
				r.Post("/", s.createChecker)
				r.Get("/", s.listCheckers)
				r.Get("/me", s.getMyChecker)
				r.Patch("/me", s.updateMyChecker)
				r.Get("/{checkerId}", s.getChecker)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", s.requestTest)
				r.Get("/", s.listConversations)
				r.Get("/{id}", s.getConversation)
				r.Delete("/{id}", s.hideConversation)
				r.Get("/{id}/transitions", s.listTransitions)
				r.Post("/{id}/accept", s.acceptConversation)
				r.Post("/{id}/decline", s.declineConversation)
				r.Post("/{id}/checkout", s.confirmCheckout)
				r.Post("/{id}/receipt", s.uploadReceipt)
				r.Post("/{id}/manual-payment", s.openManualPayment)
				r.Get("/{id}/messages", s.listMessages)
				r.With(s.rateLimit("messages", 60, time.Minute)).Post("/{id}/messages", s.sendMessage)
				r.Post("/{id}/messages/read", s.markRead)
				r.Get("/{id}/messages/unread", s.unreadCount)
			})

			r.Get("/stream", s.stream)

			r.Route("/users", func(r chi.Router) {
				r.With(s.requireAdmin).Post("/", s.createUser)
				r.With(s.requireAdmin).Get("/", s.listUsers)
				r.Get("/{userId}", s.getUser)
				r.With(s.requireAdmin).Patch("/{userId}", s.updateUser)
				r.Put("/{userId}/password", s.setUserPassword)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireOperator)
				r.Get("/conversations/lookup", s.adminLookup)
				r.Post("/conversations/activate", s.adminActivate)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	checks := make(map[string]string, len(s.opts.HealthChecks))
	status := http.StatusOK
	for name, check := range s.opts.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	body := map[string]interface{}{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// bind decodes a JSON body and runs its validate tags. It writes the 400
// response itself and reports whether the handler should continue.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(r, v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", validationMessage(verrs[0]))
			return false
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "uuid":
		return fe.Field() + " must be a uuid"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
