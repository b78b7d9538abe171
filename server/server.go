// Package server composes the HTTP surface of the user-management API: the
// route table, the auth and CORS policies wrapped around it, and the
// handlers behind it.
package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/jrsteele09/go-users-service/internal/config"
	"github.com/jrsteele09/go-users-service/token"
	"github.com/jrsteele09/go-users-service/users"
)

type Server struct {
	config   config.Config
	users    users.Repo
	sessions *token.Codec
	validate *validator.Validate
	router   chi.Router
}

// newValidator builds the request validator. Email addresses only need to
// be plausible (a local part and a host around a single "@"); hosts without
// a dot, such as "u@d", are accepted, which validator's stock "email" rule
// would reject.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// RegisterValidation only errors on an empty tag or a nil func.
	_ = v.RegisterValidation("plausible_email", plausibleEmail)
	return v
}

func plausibleEmail(fl validator.FieldLevel) bool {
	email := fl.Field().String()
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 &&
		strings.Count(email, "@") == 1 &&
		!strings.ContainsAny(email, " \t")
}

func New(cfg config.Config, repo users.Repo) *Server {
	s := &Server{
		config:   cfg,
		users:    repo,
		sessions: token.NewCodec(cfg.SessionSecret, cfg.SessionLifetime),
		validate: newValidator(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes builds the request pipeline. Order is fixed: CorsPolicy sits
// outside AuthGate so CORS decoration applies to every response for a
// listed endpoint, auth rejections included; AuthGate runs before any
// handler.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(CorsPolicy(CorsEndpoints()))
	r.Use(AuthGate(AuthEndpoints(), s.sessions))

	r.Post("/setup", s.handleSetup)
	r.Post("/login", s.handleLogin)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/", s.handleListUsers)
		r.Get("/{id}", s.handleGetUser)
		r.Put("/{id}", s.handleUpdateUser)
		r.Delete("/{id}", s.handleDeleteUser)
	})

	return r
}

// AuthEndpoints lists every endpoint that requires a session token. /setup
// and /login stay off the list: they are how tokens are obtained.
func AuthEndpoints() Endpoints {
	return Endpoints{
		NewEndpoint("/users", http.MethodPost, http.MethodGet),
		NewEndpoint("/users/:id", http.MethodGet, http.MethodPut, http.MethodDelete),
	}
}

// CorsEndpoints lists every endpoint browsers may call cross-origin. /setup
// is deliberately absent: bootstrap is a same-origin operation.
func CorsEndpoints() Endpoints {
	return Endpoints{
		NewEndpoint("/login", http.MethodPost),
		NewEndpoint("/users", http.MethodPost, http.MethodGet),
		NewEndpoint("/users/:id", http.MethodGet, http.MethodPut, http.MethodDelete),
	}
}
