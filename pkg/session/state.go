// Package session resolves who is making a request. Each request starts in
// the probing state, makes one call to the identity provider, and ends
// resolved as authenticated or not.
package session

import (
	"context"
	"errors"
	"log"

	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
)

// State is the session as views see it. It is passed around by value.
type State struct {
	IsAuthenticated  bool
	IsAuthenticating bool
	Email            string
	// Alert is a probe failure other than "no current session", shown as a
	// page banner.
	Alert string
}

// CanSubmitSteps reports whether the steps form may be rendered.
func (s State) CanSubmitSteps() bool {
	return !s.IsAuthenticating && s.IsAuthenticated
}

// Probe asks the provider once for the current session. IsAuthenticating is
// true while the call is outstanding and false on every return path.
func Probe(ctx context.Context, provider identity.Provider, tokens identity.Tokens) (state State, sess identity.Session) {
	state.IsAuthenticating = true
	defer func() {
		state.IsAuthenticating = false
	}()

	current, err := provider.CurrentSession(ctx, tokens)
	switch {
	case err == nil:
		state.IsAuthenticated = true
		state.Email = current.User.Email
		sess = current
	case errors.Is(err, identity.ErrNoCurrentSession):
	default:
		log.Printf("[ERROR] session probe: %v", err)
		state.Alert = identity.Message(err)
	}
	return state, sess
}
