package httpserver

import (
	"log"
	"net/http"

	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
)

// HandleSignupGet renders the first signup step, or the contact-the-admin
// view when self-service signup is off.
func (s *Server) HandleSignupGet(w http.ResponseWriter, r *http.Request, props Props) {
	if !s.config.SignupEnabled {
		s.renderSignupDisabled(w, http.StatusOK, props, forms.New())
		return
	}
	s.renderSignup(w, http.StatusOK, props, forms.New(), forms.CollectingCredentials)
}

// HandleSignupPost advances the two-step signup. The posted "step" field
// says which step the form was rendered for.
func (s *Server) HandleSignupPost(w http.ResponseWriter, r *http.Request, props Props) {
	if !s.config.SignupEnabled {
		s.renderSignupDisabled(w, http.StatusForbidden, props, forms.New())
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid Request", "The form could not be read.", err.Error())
		return
	}
	step, err := forms.ParseSignupStep(r.PostForm.Get("step"))
	if err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid Request", "Unknown signup step.", err.Error())
		return
	}

	switch step {
	case forms.AwaitingConfirmation:
		s.confirmSignup(w, r, props)
	default:
		s.startSignup(w, r, props)
	}
}

func (s *Server) startSignup(w http.ResponseWriter, r *http.Request, props Props) {
	form := forms.FromValues(r.PostForm, forms.FieldEmail, forms.FieldPassword, forms.FieldConfirmPassword)
	form.TouchAll()
	form.Errors = forms.ValidateSignup(form.Values, forms.CollectingCredentials)
	if !form.Valid() {
		s.renderSignup(w, http.StatusBadRequest, props, form, forms.CollectingCredentials)
		return
	}

	email := form.Get(forms.FieldEmail)
	password := form.Get(forms.FieldPassword)
	if err := s.provider.SignUp(r.Context(), identity.SignUpInput{Username: email, Password: password}); err != nil {
		log.Printf("[DEBUG] startSignup: sign up failed: %v", err)
		form.Error = identity.Message(err)
		s.renderSignup(w, signupFailureStatus(err), props, form, forms.CollectingCredentials)
		return
	}

	if err := s.sessions.BeginSignup(w, email, password); err != nil {
		log.Printf("[ERROR] startSignup: failed to store pending signup: %v", err)
		s.renderError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to continue signup.", "")
		return
	}
	log.Printf("[DEBUG] startSignup: awaiting confirmation for %s", email)

	next := forms.New()
	next.Values[forms.FieldEmail] = email
	next.Values[forms.FieldConfirmationCode] = ""
	s.renderSignup(w, http.StatusOK, props, next, forms.AwaitingConfirmation)
}

func (s *Server) confirmSignup(w http.ResponseWriter, r *http.Request, props Props) {
	pending, err := s.sessions.PendingSignup(r)
	if err != nil {
		form := forms.New()
		form.Error = err.Error()
		s.renderSignup(w, http.StatusBadRequest, props, form, forms.CollectingCredentials)
		return
	}

	form := forms.FromValues(r.PostForm, forms.FieldEmail, forms.FieldConfirmationCode)
	form.Values[forms.FieldEmail] = pending.Email
	form.TouchAll()
	form.Errors = forms.ValidateSignup(form.Values, forms.AwaitingConfirmation)
	if !form.Valid() {
		s.renderSignup(w, http.StatusBadRequest, props, form, forms.AwaitingConfirmation)
		return
	}

	if err := s.provider.ConfirmSignUp(r.Context(), pending.Email, form.Get(forms.FieldConfirmationCode)); err != nil {
		log.Printf("[DEBUG] confirmSignup: confirm failed: %v", err)
		form.Error = identity.Message(err)
		s.renderSignup(w, signupFailureStatus(err), props, form, forms.AwaitingConfirmation)
		return
	}

	tokens, err := s.provider.SignIn(r.Context(), pending.Email, pending.Password)
	s.sessions.FinishSignup(w)
	if err != nil {
		// The account exists now; only the automatic sign in failed.
		log.Printf("[ERROR] confirmSignup: sign in after confirmation: %v", err)
		s.writeFlash(w, Notice{Kind: NoticeInfo, Title: "Account created.", Message: "Please log in to add your steps."})
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if _, err := s.sessions.Authenticate(w, tokens); err != nil {
		log.Printf("[ERROR] confirmSignup: failed to create session: %v", err)
		s.renderError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create session.", "")
		return
	}

	s.writeFlash(w, Notice{
		Kind:    NoticeSuccess,
		Title:   "Account created.",
		Message: "We've created your account. You can now add your steps!",
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderSignup(w http.ResponseWriter, statusCode int, props Props, form *forms.Form, step forms.SignupStep) {
	form.Without(forms.FieldPassword, forms.FieldConfirmPassword)
	s.render(w, statusCode, pageSignup, newPage("Sign up", props, SignupPageData{Form: form, Step: step}))
}

func (s *Server) renderSignupDisabled(w http.ResponseWriter, statusCode int, props Props, form *forms.Form) {
	s.render(w, statusCode, pageSignupDisabled, newPage("Sign up", props, SignupDisabledPageData{
		Form:             form,
		CanRequestAccess: s.config.AdminEmail != "",
	}))
}

func signupFailureStatus(err error) int {
	if identity.IsCode(err, identity.CodeServiceUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusUnprocessableEntity
}
