package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
)

// ValidationResponse is returned by POST /validate/{form}. Only touched
// fields appear in Errors.
type ValidationResponse struct {
	Errors forms.Errors `json:"errors"`
}

// validateForm runs the validator for the named form over posted values.
// ok is false for an unknown form name.
func (s *Server) validateForm(name string, r *http.Request) (form *forms.Form, ok bool) {
	switch name {
	case "login":
		form = forms.FromValues(r.PostForm, forms.FieldEmail, forms.FieldPassword)
		form.Errors = forms.ValidateLogin(form.Values)
	case "signup":
		step, err := forms.ParseSignupStep(r.PostForm.Get("step"))
		if err != nil {
			return nil, false
		}
		if step == forms.AwaitingConfirmation {
			form = forms.FromValues(r.PostForm, forms.FieldEmail, forms.FieldConfirmationCode)
		} else {
			form = forms.FromValues(r.PostForm, forms.FieldEmail, forms.FieldPassword, forms.FieldConfirmPassword)
		}
		form.Errors = forms.ValidateSignup(form.Values, step)
	case "steps":
		form = forms.FromValues(r.PostForm, forms.FieldSteps)
		form.Errors = forms.ValidateSteps(form.Values, s.config.MaxDailySteps)
	case "access":
		form = forms.FromValues(r.PostForm, forms.FieldName, forms.FieldEmail, forms.FieldMessage)
		form.Errors = forms.ValidateAccessRequest(form.Values)
	default:
		return nil, false
	}
	return form, true
}

// HandleValidate validates a form as the user edits it. It is routed with
// ResolveNone, so nothing is sent to the identity provider or the steps
// API.
func (s *Server) HandleValidate(w http.ResponseWriter, r *http.Request, props Props) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form, ok := s.validateForm(chi.URLParam(r, "form"), r)
	if !ok {
		s.renderNotFound(w, r, props)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(ValidationResponse{Errors: form.VisibleErrors()})
}
