// Package identity is the boundary to the hosted identity provider. It
// covers the five calls the web front end needs: probe the current session,
// sign in, sign out, sign up and confirm a signup.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/Rigellute/walk-the-world-frontend/pkg/jwt"
)

// ErrNoCurrentSession is returned by CurrentSession when the browser has no
// usable session. It is the expected outcome for anonymous visitors.
var ErrNoCurrentSession = errors.New("no current user")

// Error codes shared by every Provider. They follow the hosted provider's
// exception names so messages and codes line up across backends.
const (
	CodeNotAuthorized      = "NotAuthorizedException"
	CodeUserNotConfirmed   = "UserNotConfirmedException"
	CodeUserNotFound       = "UserNotFoundException"
	CodeUsernameExists     = "UsernameExistsException"
	CodeInvalidPassword    = "InvalidPasswordException"
	CodeInvalidParameter   = "InvalidParameterException"
	CodeCodeMismatch       = "CodeMismatchException"
	CodeExpiredCode        = "ExpiredCodeException"
	CodeTooManyRequests    = "TooManyRequestsException"
	CodeUnsupportedFlow    = "UnsupportedChallenge"
	CodeServiceUnavailable = "ServiceUnavailable"
)

// Tokens are the credentials issued on sign-in.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// expirySkew refreshes tokens slightly before they actually expire.
const expirySkew = 30 * time.Second

// IsZero reports whether no tokens are held.
func (t Tokens) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Expired reports whether the access token should be refreshed at now.
func (t Tokens) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-expirySkew))
}

// Email reads the email claim from the ID token. The token is not verified;
// it came straight from the provider.
func (t Tokens) Email() string {
	if t.IDToken == "" {
		return ""
	}
	claims, err := jwt.ParseUnverified(t.IDToken)
	if err != nil {
		return ""
	}
	return claims.Email
}

type User struct {
	Subject string
	Email   string
}

// Session is the result of a successful probe. Tokens may differ from the
// ones passed in when the provider refreshed them.
type Session struct {
	User   User
	Tokens Tokens
}

type SignUpInput struct {
	Username string
	Password string
}

// Provider is implemented by CognitoProvider and MemoryProvider.
type Provider interface {
	CurrentSession(ctx context.Context, tokens Tokens) (Session, error)
	SignIn(ctx context.Context, email, password string) (Tokens, error)
	SignOut(ctx context.Context, tokens Tokens) error
	SignUp(ctx context.Context, input SignUpInput) error
	ConfirmSignUp(ctx context.Context, email, code string) error
}

// Error is a provider failure with a message fit for display.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Message returns the human readable text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var providerErr *Error
	if errors.As(err, &providerErr) && providerErr.Message != "" {
		return providerErr.Message
	}
	return err.Error()
}

// IsCode reports whether err is a provider Error with the given code.
func IsCode(err error, code string) bool {
	var providerErr *Error
	return errors.As(err, &providerErr) && providerErr.Code == code
}
