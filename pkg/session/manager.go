package session

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
)

const (
	CookieName        = "walks_session"
	RefreshCookieName = "walks_refresh"
	PendingCookieName = "signup_pending"
)

// sessionCookie is the sealed payload of CookieName. The refresh token is
// kept in its own cookie since all three tokens together exceed the size
// browsers accept for one cookie.
type sessionCookie struct {
	ID          string    `json:"sid"`
	AccessToken string    `json:"at"`
	IDToken     string    `json:"it"`
	ExpiresAt   time.Time `json:"exp"`
	IssuedAt    time.Time `json:"iat"`
}

type refreshCookie struct {
	ID           string `json:"sid"`
	RefreshToken string `json:"rt"`
}

// Resolved is the outcome of resolving one request.
type Resolved struct {
	State State
	// ID is the session cookie's ID when it names a live session.
	ID     string
	Tokens identity.Tokens
}

// Manager keeps sessions in sealed cookies and resolves them against the
// identity provider. Handlers change the session only through
// Authenticate and Clear.
type Manager struct {
	sealer   *Sealer
	cache    *Store
	provider identity.Provider
	secure   bool
	ttl      time.Duration
}

// NewManager creates a manager. secure sets the Secure flag on cookies.
func NewManager(sealer *Sealer, cache *Store, provider identity.Provider, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		sealer:   sealer,
		cache:    cache,
		provider: provider,
		secure:   secure,
		ttl:      ttl,
	}
}

// Store exposes the per-session totals cache.
func (m *Manager) Store() *Store {
	return m.cache
}

// Resolve probes the identity provider with the tokens sealed in the
// request's session cookies. A missing, tampered or stale cookie probes
// with no tokens, which resolves to unauthenticated without an alert.
// Refreshed tokens are written back to the cookies.
func (m *Manager) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) Resolved {
	id, tokens, ok := m.readSession(r)

	state, sess := Probe(ctx, m.provider, tokens)
	if !state.IsAuthenticated {
		if ok && state.Alert == "" {
			// The provider no longer recognises these tokens.
			m.cache.Delete(id)
			m.expireSessionCookies(w)
			id = ""
		}
		return Resolved{State: state, ID: id}
	}
	if ok && !sameTokens(sess.Tokens, tokens) {
		if err := m.writeSession(w, id, sess.Tokens); err != nil {
			log.Printf("[ERROR] session: failed to store refreshed tokens: %v", err)
		}
	}
	return Resolved{State: state, ID: id, Tokens: sess.Tokens}
}

// Authenticate starts a signed-in session and sets its cookies.
func (m *Manager) Authenticate(w http.ResponseWriter, tokens identity.Tokens) (string, error) {
	id, err := generateRandomString(32)
	if err != nil {
		return "", err
	}
	if err := m.writeSession(w, id, tokens); err != nil {
		return "", err
	}
	return id, nil
}

// Clear forgets the request's session and expires its cookies. It returns
// the tokens that were held so the caller can sign them out.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) identity.Tokens {
	id, tokens, ok := m.readSession(r)
	if ok {
		m.cache.Delete(id)
	}
	m.expireSessionCookies(w)
	return tokens
}

func (m *Manager) readSession(r *http.Request) (string, identity.Tokens, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", identity.Tokens{}, false
	}
	var sc sessionCookie
	if err := m.sealer.Open(CookieName, cookie.Value, &sc); err != nil {
		log.Printf("[DEBUG] session: ignoring unreadable cookie: %v", err)
		return "", identity.Tokens{}, false
	}
	if sc.ID == "" || time.Since(sc.IssuedAt) > m.ttl {
		return "", identity.Tokens{}, false
	}

	tokens := identity.Tokens{
		AccessToken: sc.AccessToken,
		IDToken:     sc.IDToken,
		ExpiresAt:   sc.ExpiresAt,
	}
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		var rc refreshCookie
		if err := m.sealer.Open(RefreshCookieName, cookie.Value, &rc); err == nil && rc.ID == sc.ID {
			tokens.RefreshToken = rc.RefreshToken
		}
	}
	return sc.ID, tokens, true
}

func (m *Manager) writeSession(w http.ResponseWriter, id string, tokens identity.Tokens) error {
	sealed, err := m.sealer.Seal(CookieName, sessionCookie{
		ID:          id,
		AccessToken: tokens.AccessToken,
		IDToken:     tokens.IDToken,
		ExpiresAt:   tokens.ExpiresAt,
		IssuedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	refresh, err := m.sealer.Seal(RefreshCookieName, refreshCookie{ID: id, RefreshToken: tokens.RefreshToken})
	if err != nil {
		return err
	}
	maxAge := int(m.ttl.Seconds())
	http.SetCookie(w, m.cookie(CookieName, sealed, "/", maxAge))
	http.SetCookie(w, m.cookie(RefreshCookieName, refresh, "/", maxAge))
	return nil
}

// sameTokens compares expiry by instant, since a cookie round trip drops
// the monotonic clock reading.
func sameTokens(a, b identity.Tokens) bool {
	return a.AccessToken == b.AccessToken &&
		a.IDToken == b.IDToken &&
		a.RefreshToken == b.RefreshToken &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}

func (m *Manager) expireSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(CookieName, "", "/", -1))
	http.SetCookie(w, m.cookie(RefreshCookieName, "", "/", -1))
}

// ErrNoPendingSignup is returned when the confirmation step has no stored
// credentials to finish with.
var ErrNoPendingSignup = errors.New("signup session expired, please start again")

// BeginSignup seals the first-step credentials into the pending cookie.
func (m *Manager) BeginSignup(w http.ResponseWriter, email, password string) error {
	sealed, err := m.sealer.Seal(PendingCookieName, PendingSignup{
		Email:     email,
		Password:  password,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(PendingCookieName, sealed, "/signup", int(PendingSignupTTL.Seconds())))
	return nil
}

// PendingSignup returns the credentials stored by BeginSignup.
func (m *Manager) PendingSignup(r *http.Request) (PendingSignup, error) {
	cookie, err := r.Cookie(PendingCookieName)
	if err != nil || cookie.Value == "" {
		return PendingSignup{}, ErrNoPendingSignup
	}
	var p PendingSignup
	if err := m.sealer.Open(PendingCookieName, cookie.Value, &p); err != nil {
		log.Printf("[DEBUG] session: ignoring unreadable pending signup: %v", err)
		return PendingSignup{}, ErrNoPendingSignup
	}
	if p.Email == "" || p.expired(time.Now()) {
		return PendingSignup{}, ErrNoPendingSignup
	}
	return p, nil
}

// FinishSignup expires the pending cookie.
func (m *Manager) FinishSignup(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(PendingCookieName, "", "/signup", -1))
}

func (m *Manager) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
