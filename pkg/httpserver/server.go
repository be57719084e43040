package httpserver

import (
	"context"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Rigellute/walk-the-world-frontend/pkg/config"
	"github.com/Rigellute/walk-the-world-frontend/pkg/email"
	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
	"github.com/Rigellute/walk-the-world-frontend/pkg/session"
	"github.com/Rigellute/walk-the-world-frontend/pkg/steps"
)

// StepsAPI is the remote steps service.
type StepsAPI interface {
	Total(ctx context.Context, bearer string) (steps.Record, error)
	Submit(ctx context.Context, bearer string, n int64) error
}

type Server struct {
	config         *config.Config
	router         chi.Router
	httpServer     *http.Server
	rateLimitStore *rateLimitStore
	sessions       *session.Manager
	provider       identity.Provider
	stepsAPI       StepsAPI
	emailSender    email.Sender
	pages          map[string]*template.Template
	errorTemplate  *template.Template
}

// New creates a server with per-IP rate limiting on form posts.
func New(config *config.Config, provider identity.Provider, stepsAPI StepsAPI, emailSender email.Sender) *Server {
	return newWithOptions(config, provider, stepsAPI, emailSender, true)
}

// NewWithoutRateLimiting creates a server without rate limiting, for
// serverless deployments where instances do not share limiter state.
func NewWithoutRateLimiting(config *config.Config, provider identity.Provider, stepsAPI StepsAPI, emailSender email.Sender) *Server {
	return newWithOptions(config, provider, stepsAPI, emailSender, false)
}

func newWithOptions(config *config.Config, provider identity.Provider, stepsAPI StepsAPI, emailSender email.Sender, withRateLimiting bool) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	var limiter *rateLimitStore
	if withRateLimiting && config.RateLimitPerMinute > 0 {
		limiter = newRateLimitStore()
	}

	sealer, err := session.NewSealer(sessionSecret(config))
	if err != nil {
		log.Fatalf("Failed to create session sealer: %v", err)
	}
	sessions := session.NewManager(
		sealer,
		session.NewStore(config.SessionTTL),
		provider,
		config.SessionTTL,
		config.CookieSecure,
	)

	s := &Server{
		config:         config,
		router:         r,
		rateLimitStore: limiter,
		sessions:       sessions,
		provider:       provider,
		stepsAPI:       stepsAPI,
		emailSender:    emailSender,
		pages:          parsePages(config.TemplatesDir),
		errorTemplate:  template.Must(template.ParseFiles(config.TemplatesDir + "/error.html")),
	}
	s.registerRoutes()

	return s
}

// sessionSecret returns the configured cookie secret, or a random one that
// signs everyone out when the process restarts.
func sessionSecret(config *config.Config) string {
	if config.SessionSecret != "" {
		return config.SessionSecret
	}
	secret, err := session.RandomSecret()
	if err != nil {
		log.Fatalf("Failed to generate session secret: %v", err)
	}
	log.Println("[DEBUG] SESSION_SECRET not set, sessions will not survive a restart")
	return secret
}

// Router returns the configured router with all routes and middleware.
func (s *Server) Router() chi.Router {
	return s.router
}

// IsListening checks if the server is listening on the configured address.
func (s *Server) IsListening() bool {
	if s.httpServer == nil {
		return false
	}
	conn, err := net.DialTimeout("tcp", s.config.HTTPAddress, 5*time.Second)
	if err != nil {
		return false
	}
	defer conn.Close()
	return true
}

func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.HTTPAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Close() error {
	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
		}
	}
	if s.rateLimitStore != nil {
		s.rateLimitStore.Stop()
	}
	s.sessions.Store().Stop()
	return err
}
