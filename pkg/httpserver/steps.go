package httpserver

import (
	"log"
	"net/http"
	"time"

	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
	"github.com/Rigellute/walk-the-world-frontend/pkg/steps"
)

// HandleStepsPost submits today's step count for the signed-in user.
func (s *Server) HandleStepsPost(w http.ResponseWriter, r *http.Request, props Props) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid Request", "The form could not be read.", err.Error())
		return
	}

	form := forms.FromValues(r.PostForm, forms.FieldSteps)
	form.TouchAll()
	form.Errors = forms.ValidateSteps(form.Values, s.config.MaxDailySteps)
	if !form.Valid() {
		s.renderHome(w, r, http.StatusBadRequest, props, form)
		return
	}
	n, _ := forms.ParseSteps(form.Get(forms.FieldSteps))

	store := s.sessions.Store()
	if !store.BeginSubmit(props.SessionID) {
		form.Error = "A submission is already in progress"
		s.renderHome(w, r, http.StatusConflict, props, form)
		return
	}
	defer store.EndSubmit(props.SessionID)

	if err := s.stepsAPI.Submit(r.Context(), props.Tokens.IDToken, n); err != nil {
		if steps.IsUnauthorized(err) {
			log.Printf("[DEBUG] HandleStepsPost: token rejected, signing out: %v", err)
			s.sessions.Clear(w, r)
			s.writeFlash(w, Notice{Kind: NoticeWarning, Title: "Session expired", Message: "Please log in again to add your steps."})
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		kind := steps.KindOf(err)
		log.Printf("[ERROR] HandleStepsPost: submit %d steps: %s: %v", n, kind, err)
		form.Error = steps.UserMessage(err)
		statusCode := http.StatusBadGateway
		if kind == steps.KindAlreadySubmitted {
			statusCode = http.StatusBadRequest
		}
		s.renderHome(w, r, statusCode, props, form)
		return
	}

	if _, ok := store.ApplySubmission(props.SessionID, n, time.Now()); !ok {
		log.Printf("[DEBUG] HandleStepsPost: no cached total, next render fetches")
	}
	s.writeFlash(w, Notice{Kind: NoticeSuccess, Title: "Steps added"})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
