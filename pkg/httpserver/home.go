package httpserver

import (
	"context"
	"log"
	"net/http"

	"golang.org/x/text/message"

	"github.com/Rigellute/walk-the-world-frontend/pkg/forms"
	"github.com/Rigellute/walk-the-world-frontend/pkg/steps"
)

func (s *Server) HandleHome(w http.ResponseWriter, r *http.Request, props Props) {
	s.renderHome(w, r, http.StatusOK, props, forms.New())
}

// HandleTotal renders only the aggregate stat, for the browser to swap in
// after the loader.
func (s *Server) HandleTotal(w http.ResponseWriter, r *http.Request, props Props) {
	s.renderFragment(w, http.StatusOK, pageHome, "total", s.loadTotal(r.Context(), props))
}

// renderHome renders the home page with stepsForm as the submission form
// state. The form is only shown to an authenticated session.
func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, statusCode int, props Props, stepsForm *forms.Form) {
	data := HomePageData{
		DeferTotal:         s.config.LoaderMinDisplay > 0,
		LoaderMinDisplayMS: s.config.LoaderMinDisplay.Milliseconds(),
		StepsForm:          stepsForm,
		MaxDailySteps:      s.config.MaxDailySteps,
	}
	if !data.DeferTotal {
		data.Total = s.loadTotal(r.Context(), props)
	}
	s.render(w, statusCode, pageHome, newPage("Walk the World", props, data))
}

// loadTotal returns the optimistic total left by a submission if there is
// one, and otherwise fetches it from the steps API.
func (s *Server) loadTotal(ctx context.Context, props Props) TotalData {
	store := s.sessions.Store()
	if props.SessionID != "" {
		if record, ok := store.TakeOptimistic(props.SessionID); ok {
			return newTotalData(props.Printer, record)
		}
	}

	record, err := s.stepsAPI.Total(ctx, props.Tokens.IDToken)
	if err != nil {
		log.Printf("[ERROR] loadTotal: %v", err)
		return TotalData{Loaded: true, Error: steps.UserMessage(err)}
	}
	if props.SessionID != "" {
		store.SetRecord(props.SessionID, record)
	}
	return newTotalData(props.Printer, record)
}

func newTotalData(p *message.Printer, record steps.Record) TotalData {
	return TotalData{
		Steps:  formatSteps(p, record.Steps),
		AsOf:   formatAsOf(record.CalculatedAt),
		Loaded: true,
	}
}
