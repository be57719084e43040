package httpserver

import (
	"log"
	"net/http"

	"github.com/Rigellute/walk-the-world-frontend/pkg/email"
	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
)

// HandleRequestAccess emails the admin on behalf of someone who wants an
// account while self-service signup is off.
func (s *Server) HandleRequestAccess(w http.ResponseWriter, r *http.Request, props Props) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid Request", "The form could not be read.", err.Error())
		return
	}

	form := forms.FromValues(r.PostForm, forms.FieldName, forms.FieldEmail, forms.FieldMessage)
	form.TouchAll()
	form.Errors = forms.ValidateAccessRequest(form.Values)
	if !form.Valid() {
		s.renderSignupDisabled(w, http.StatusBadRequest, props, form)
		return
	}

	if s.config.AdminEmail == "" {
		form.Error = "Access requests are not available right now. Please contact the admin directly."
		s.renderSignupDisabled(w, http.StatusServiceUnavailable, props, form)
		return
	}

	msg := email.NewAccessRequestMessage(s.config.AdminEmail, email.AccessRequest{
		Name:  form.Get(forms.FieldName),
		Email: form.Get(forms.FieldEmail),
		Note:  form.Get(forms.FieldMessage),
	})
	if err := s.emailSender.Send(r.Context(), msg); err != nil {
		log.Printf("[ERROR] HandleRequestAccess: failed to send access request: %v", err)
		form.Error = "We couldn't send your request. Please try again later."
		s.renderSignupDisabled(w, http.StatusBadGateway, props, form)
		return
	}

	log.Printf("[DEBUG] HandleRequestAccess: access request sent for %s", form.Get(forms.FieldEmail))
	s.writeFlash(w, Notice{
		Kind:    NoticeSuccess,
		Title:   "Request sent",
		Message: "The admin will be in touch by email.",
	})
	http.Redirect(w, r, "/signup", http.StatusSeeOther)
}
