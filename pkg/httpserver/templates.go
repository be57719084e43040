package httpserver

import (
	"bytes"
	"html/template"
	"log"
	"net/http"
	"path/filepath"

	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
)

// Page names, each parsed together with base.html and total.html.
const (
	pageHome           = "home"
	pageLogin          = "login"
	pageSignup         = "signup"
	pageSignupDisabled = "signup_disabled"
	pageNotFound       = "not_found"
)

// TotalData is the aggregate stat shown on the home page and by GET /total.
type TotalData struct {
	Steps string
	AsOf  string
	Error string
	// Loaded is false while the stat is deferred to the browser.
	Loaded bool
}

// HomePageData holds the data needed to render the home page template.
type HomePageData struct {
	Total              TotalData
	DeferTotal         bool
	LoaderMinDisplayMS int64
	StepsForm          *forms.Form
	// MaxDailySteps is zero when there is no cap.
	MaxDailySteps      int64
}

// LoginPageData holds the data needed to render the login page template.
type LoginPageData struct {
	Form *forms.Form
}

// SignupPageData holds the data needed to render either signup step.
type SignupPageData struct {
	Form *forms.Form
	Step forms.SignupStep
}

// AwaitingConfirmation is used by the template to pick the step to show.
func (d SignupPageData) AwaitingConfirmation() bool {
	return d.Step == forms.AwaitingConfirmation
}

// SignupDisabledPageData holds the contact-the-admin view and its
// request-access form.
type SignupDisabledPageData struct {
	Form *forms.Form
	// CanRequestAccess is false when no admin address is configured.
	CanRequestAccess bool
}

// NotFoundPageData holds the data needed to render the 404 page.
type NotFoundPageData struct {
	Path string
}

// ErrorPageData holds the data needed to render the error page template.
type ErrorPageData struct {
	Title     string
	Message   string
	Details   string
	ErrorCode string
}

func parsePages(dir string) map[string]*template.Template {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageHome, pageLogin, pageSignup, pageSignupDisabled, pageNotFound} {
		pages[name] = template.Must(template.ParseFiles(
			filepath.Join(dir, "base.html"),
			filepath.Join(dir, "total.html"),
			filepath.Join(dir, name+".html"),
		))
	}
	return pages
}

// render executes the named page into a buffer so a template failure can
// still be reported with the error page.
func (s *Server) render(w http.ResponseWriter, statusCode int, name string, data any) {
	s.execute(w, statusCode, name, "base", data)
}

// renderFragment renders one named template of a page without the layout.
func (s *Server) renderFragment(w http.ResponseWriter, statusCode int, page, fragment string, data any) {
	s.execute(w, statusCode, page, fragment, data)
}

func (s *Server) execute(w http.ResponseWriter, statusCode int, page, name string, data any) {
	tmpl, ok := s.pages[page]
	if !ok {
		log.Printf("[ERROR] render: unknown page %q", page)
		s.renderError(w, http.StatusInternalServerError, "Internal Server Error", "An error occurred while rendering the page", "")
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[ERROR] render %s/%s: %v", page, name, err)
		s.renderError(w, http.StatusInternalServerError, "Internal Server Error", "An error occurred while rendering the page", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[ERROR] render %s/%s: write: %v", page, name, err)
	}
}

// renderError renders the standalone error page, falling back to plain text.
func (s *Server) renderError(w http.ResponseWriter, statusCode int, title, message, details string) {
	var buf bytes.Buffer
	err := s.errorTemplate.Execute(&buf, ErrorPageData{
		Title:     title,
		Message:   message,
		Details:   details,
		ErrorCode: http.StatusText(statusCode),
	})
	if err != nil {
		// Last resort: plain text error
		http.Error(w, "An error occurred while rendering the error page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	buf.WriteTo(w)
}
