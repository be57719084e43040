package httpserver

import (
	"log"
	"net/http"

	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
)

func (s *Server) HandleLoginGet(w http.ResponseWriter, r *http.Request, props Props) {
	s.render(w, http.StatusOK, pageLogin, newPage("Login", props, LoginPageData{Form: forms.New()}))
}

// HandleLoginPost signs the user in with the identity provider. Errors are
// shown inline and the email is kept.
func (s *Server) HandleLoginPost(w http.ResponseWriter, r *http.Request, props Props) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid Request", "The form could not be read.", err.Error())
		return
	}

	form := forms.FromValues(r.PostForm, forms.FieldEmail, forms.FieldPassword)
	form.TouchAll()
	form.Errors = forms.ValidateLogin(form.Values)
	if !form.Valid() {
		s.renderLogin(w, http.StatusBadRequest, props, form)
		return
	}

	tokens, err := s.provider.SignIn(r.Context(), form.Get(forms.FieldEmail), form.Get(forms.FieldPassword))
	if err != nil {
		log.Printf("[DEBUG] HandleLoginPost: sign in failed: %v", err)
		form.Error = identity.Message(err)
		statusCode := http.StatusUnauthorized
		if identity.IsCode(err, identity.CodeServiceUnavailable) {
			statusCode = http.StatusBadGateway
		}
		s.renderLogin(w, statusCode, props, form)
		return
	}

	if _, err := s.sessions.Authenticate(w, tokens); err != nil {
		log.Printf("[ERROR] HandleLoginPost: failed to create session: %v", err)
		s.renderError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create session.", "")
		return
	}
	log.Printf("[DEBUG] HandleLoginPost: signed in %s", tokens.Email())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, statusCode int, props Props, form *forms.Form) {
	form.Without(forms.FieldPassword)
	s.render(w, statusCode, pageLogin, newPage("Login", props, LoginPageData{Form: form}))
}

// HandleLogout signs the session out with the provider and forgets it
// locally. Provider errors are logged only.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request, props Props) {
	if !props.Tokens.IsZero() {
		if err := s.provider.SignOut(r.Context(), props.Tokens); err != nil {
			log.Printf("[ERROR] HandleLogout: sign out: %v", err)
		}
	}
	s.sessions.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
