package httpserver

import (
	"log"
	"net/http"

	"golang.org/x/text/message"

	"github.com/Rigellute/walk-the-world-frontend/pkg/session"
)

// Capability is what a route requires of the resolved session.
type Capability int

const (
	AnySession Capability = iota
	RequireAuthenticated
)

func (c Capability) String() string {
	switch c {
	case RequireAuthenticated:
		return "authenticated"
	default:
		return "any"
	}
}

// Allows reports whether a request in state may reach a route requiring c.
func (c Capability) Allows(state session.State) bool {
	switch c {
	case RequireAuthenticated:
		return state.CanSubmitSteps()
	default:
		return true
	}
}

// Resolution is how much per-request state a route builds before its
// handler runs.
type Resolution int

const (
	// ResolveAll probes the session and consumes the flash.
	ResolveAll Resolution = iota
	// ResolveSession probes the session and leaves the flash for the next
	// page.
	ResolveSession
	// ResolveNone only picks the language. The identity provider is not
	// called.
	ResolveNone
)

// route is one entry of the route table. Handle receives the session
// resolved for the request.
type route struct {
	Method      string
	Pattern     string
	Requires    Capability
	Resolve     Resolution
	RateLimited bool
	Handle      func(w http.ResponseWriter, r *http.Request, props Props)
}

func (s *Server) routeTable() []route {
	return []route{
		{Method: http.MethodGet, Pattern: "/", Handle: s.HandleHome},
		{Method: http.MethodGet, Pattern: "/total", Resolve: ResolveSession, Handle: s.HandleTotal},
		{Method: http.MethodGet, Pattern: "/login", Handle: s.HandleLoginGet},
		{Method: http.MethodPost, Pattern: "/login", RateLimited: true, Handle: s.HandleLoginPost},
		{Method: http.MethodPost, Pattern: "/logout", Handle: s.HandleLogout},
		{Method: http.MethodGet, Pattern: "/signup", Handle: s.HandleSignupGet},
		{Method: http.MethodPost, Pattern: "/signup", RateLimited: true, Handle: s.HandleSignupPost},
		{Method: http.MethodPost, Pattern: "/request-access", RateLimited: true, Handle: s.HandleRequestAccess},
		{Method: http.MethodPost, Pattern: "/steps", Requires: RequireAuthenticated, RateLimited: true, Handle: s.HandleStepsPost},
		{Method: http.MethodPost, Pattern: "/validate/{form}", Resolve: ResolveNone, Handle: s.HandleValidate},
	}
}

// registerRoutes registers all routes on the router.
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.HandleHealthCheck)

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	for _, rt := range s.routeTable() {
		var h http.Handler = s.bind(rt)
		if rt.RateLimited && s.rateLimitStore != nil {
			h = rateLimitMiddleware(s.rateLimitStore, s.config.RateLimitPerMinute)(h)
		}
		s.router.Method(rt.Method, rt.Pattern, h)
	}

	s.router.NotFound(s.HandleNotFound)
	s.router.MethodNotAllowed(s.HandleNotFound)
}

// bind resolves the session once and enforces the route's capability
// before calling its handler.
func (s *Server) bind(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		props := s.resolveProps(w, r, rt.Resolve)
		if !rt.Requires.Allows(props.Session) {
			log.Printf("[DEBUG] %s %s: requires %s session, redirecting to login", rt.Method, rt.Pattern, rt.Requires)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		rt.Handle(w, r, props)
	}
}

func (s *Server) resolveProps(w http.ResponseWriter, r *http.Request, resolve Resolution) Props {
	lang := resolveLanguage(r)
	props := Props{
		Lang:          lang,
		Printer:       message.NewPrinter(lang),
		SignupEnabled: s.config.SignupEnabled,
	}
	if resolve == ResolveNone {
		return props
	}

	resolved := s.sessions.Resolve(r.Context(), w, r)
	props.Session = resolved.State
	props.SessionID = resolved.ID
	props.Tokens = resolved.Tokens
	if resolve == ResolveAll {
		props.Flash = s.readFlash(w, r)
	}
	return props
}

// HandleNotFound renders the 404 page for any unmatched path or method.
func (s *Server) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderNotFound(w, r, s.resolveProps(w, r, ResolveAll))
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request, props Props) {
	s.render(w, http.StatusNotFound, pageNotFound, newPage("Page not found", props, NotFoundPageData{Path: r.URL.Path}))
}

func (s *Server) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
