package core

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stripelink/internal/config"
	"stripelink/internal/types"
)

// Server assembles the middleware chain and routing for the API.
// Handlers register themselves through RouteRegistrars so the server
// stays ignorant of individual endpoints.
type Server struct {
	Logger    *slog.Logger
	Validator *Validator

	// Authenticator resolves bearer tokens on /v1 routes. Nil disables
	// authentication (tests).
	Authenticator Authenticator

	// RouteRegistrars are invoked against the authenticated /v1 router.
	RouteRegistrars []func(chi.Router)

	cfg *config.Config
}

// NewServer creates a Server with its validator initialized.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Logger:    logger,
		Validator: NewValidator(logger),
		cfg:       cfg,
	}
}

// Handler builds the full http.Handler: recovery outermost, then
// request-ID assignment and request logging, a public health endpoint,
// and the authenticated /v1 API group.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer(s.Logger))
	r.Use(RequestID)
	r.Use(RequestLogger(s.Logger))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(AuthMiddleware(s.Authenticator))
		for _, register := range s.RouteRegistrars {
			register(v1)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "resource not found", nil))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{
		"status":  "ok",
		"service": s.cfg.Service,
	}})
}
