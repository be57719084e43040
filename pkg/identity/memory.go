package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rigellute/walk-the-world-frontend/pkg/email"
	"github.com/Rigellute/walk-the-world-frontend/pkg/jwt"
)

const (
	memoryIssuer   = "walks-memory-identity"
	memoryClientID = "walks-web"
)

type memoryUser struct {
	subject      string
	email        string
	passwordHash string
	confirmed    bool
	code         string
	codeExpires  time.Time
}

// MemoryProvider is an in-process identity backend for local development
// and tests. Users live in memory; confirmation codes go out through an
// email.Sender.
type MemoryProvider struct {
	mu       sync.Mutex
	users    map[string]*memoryUser
	refresh  map[string]string    // refresh token -> email
	revoked  map[string]time.Time // access token jti -> expiry
	tokens   *jwt.Generator
	sender   email.Sender
	tokenTTL time.Duration
	codeTTL  time.Duration
	params   PasswordParams
}

type MemoryOption func(*MemoryProvider)

// WithTokenTTL sets the lifetime of issued ID and access tokens.
func WithTokenTTL(ttl time.Duration) MemoryOption {
	return func(p *MemoryProvider) { p.tokenTTL = ttl }
}

// WithPasswordParams overrides the argon2id cost settings.
func WithPasswordParams(params PasswordParams) MemoryOption {
	return func(p *MemoryProvider) { p.params = params }
}

// NewMemoryProvider creates an empty in-memory backend.
func NewMemoryProvider(sender email.Sender, opts ...MemoryOption) (*MemoryProvider, error) {
	gen, err := jwt.NewEphemeralGenerator(memoryIssuer, "memory-1")
	if err != nil {
		return nil, fmt.Errorf("memory identity: %w", err)
	}
	p := &MemoryProvider{
		users:    make(map[string]*memoryUser),
		refresh:  make(map[string]string),
		revoked:  make(map[string]time.Time),
		tokens:   gen,
		sender:   sender,
		tokenTTL: time.Hour,
		codeTTL:  24 * time.Hour,
		params:   DefaultPasswordParams,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// AddUser registers an already confirmed user.
func (p *MemoryProvider) AddUser(emailAddr, password string) error {
	hash, err := HashPassword(password, p.params)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := normalizeEmail(emailAddr)
	if _, exists := p.users[key]; exists {
		return newError(CodeUsernameExists, "An account with the given email already exists.")
	}
	p.users[key] = &memoryUser{
		subject:      uuid.New().String(),
		email:        emailAddr,
		passwordHash: hash,
		confirmed:    true,
	}
	return nil
}

func (p *MemoryProvider) CurrentSession(ctx context.Context, tokens Tokens) (Session, error) {
	if tokens.IsZero() {
		return Session{}, ErrNoCurrentSession
	}

	claims, err := p.tokens.ValidateToken(tokens.AccessToken, jwt.TokenUseAccess)
	if err != nil {
		// Expired or unreadable access tokens fall back to the refresh token.
		return p.refreshSession(tokens.RefreshToken)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, revoked := p.revoked[claims.ID]; revoked {
		return Session{}, ErrNoCurrentSession
	}
	user := p.userBySubjectLocked(claims.Subject)
	if user == nil {
		return Session{}, ErrNoCurrentSession
	}
	return Session{
		User:   User{Subject: user.subject, Email: user.email},
		Tokens: tokens,
	}, nil
}

func (p *MemoryProvider) refreshSession(refreshToken string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key, ok := p.refresh[refreshToken]
	if !ok {
		return Session{}, ErrNoCurrentSession
	}
	user := p.users[key]
	if user == nil {
		delete(p.refresh, refreshToken)
		return Session{}, ErrNoCurrentSession
	}
	tokens, err := p.issueLocked(user, refreshToken)
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:   User{Subject: user.subject, Email: user.email},
		Tokens: tokens,
	}, nil
}

func (p *MemoryProvider) SignIn(ctx context.Context, emailAddr, password string) (Tokens, error) {
	p.mu.Lock()
	user := p.users[normalizeEmail(emailAddr)]
	p.mu.Unlock()

	if user == nil {
		return Tokens{}, newError(CodeNotAuthorized, "Incorrect username or password.")
	}
	ok, err := VerifyPassword(password, user.passwordHash)
	if err != nil {
		return Tokens{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return Tokens{}, newError(CodeNotAuthorized, "Incorrect username or password.")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !user.confirmed {
		return Tokens{}, newError(CodeUserNotConfirmed, "User is not confirmed.")
	}
	return p.issueLocked(user, "")
}

// issueLocked mints new tokens. An empty refreshToken starts a new refresh
// chain. p.mu must be held.
func (p *MemoryProvider) issueLocked(user *memoryUser, refreshToken string) (Tokens, error) {
	idToken, err := p.tokens.GenerateIDToken(user.subject, user.email, memoryClientID, p.tokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	accessToken, _, err := p.tokens.GenerateAccessToken(user.subject, memoryClientID, p.tokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	if refreshToken == "" {
		refreshToken = uuid.New().String()
		p.refresh[refreshToken] = normalizeEmail(user.email)
	}
	return Tokens{
		AccessToken:  accessToken,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(p.tokenTTL),
	}, nil
}

// SignOut revokes the access token and every refresh token of the user.
func (p *MemoryProvider) SignOut(ctx context.Context, tokens Tokens) error {
	claims, err := jwt.ParseUnverified(tokens.AccessToken)
	if err != nil {
		return newError(CodeNotAuthorized, "Invalid Access Token")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneRevokedLocked(time.Now())
	if claims.ExpiresAt != nil {
		p.revoked[claims.ID] = claims.ExpiresAt.Time
	}
	user := p.userBySubjectLocked(claims.Subject)
	if user == nil {
		return nil
	}
	key := normalizeEmail(user.email)
	for rt, owner := range p.refresh {
		if owner == key {
			delete(p.refresh, rt)
		}
	}
	return nil
}

func (p *MemoryProvider) SignUp(ctx context.Context, input SignUpInput) error {
	if input.Username == "" {
		return newError(CodeInvalidParameter, "Username cannot be empty")
	}
	if err := checkPasswordPolicy(input.Password); err != nil {
		return err
	}
	hash, err := HashPassword(input.Password, p.params)
	if err != nil {
		return err
	}
	code, err := confirmationCode()
	if err != nil {
		return err
	}

	key := normalizeEmail(input.Username)
	p.mu.Lock()
	if existing, ok := p.users[key]; ok && existing.confirmed {
		p.mu.Unlock()
		return newError(CodeUsernameExists, "An account with the given email already exists.")
	}
	p.users[key] = &memoryUser{
		subject:      uuid.New().String(),
		email:        input.Username,
		passwordHash: hash,
		code:         code,
		codeExpires:  time.Now().Add(p.codeTTL),
	}
	p.mu.Unlock()

	if err := p.sender.Send(ctx, email.NewConfirmationCodeMessage(input.Username, code)); err != nil {
		return fmt.Errorf("send confirmation code: %w", err)
	}
	return nil
}

func (p *MemoryProvider) ConfirmSignUp(ctx context.Context, emailAddr, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.users[normalizeEmail(emailAddr)]
	switch {
	case user == nil:
		return newError(CodeUserNotFound, "Username/client id combination not found.")
	case user.confirmed:
		return newError(CodeNotAuthorized, "User cannot be confirmed. Current status is CONFIRMED")
	case time.Now().After(user.codeExpires):
		return newError(CodeExpiredCode, "Invalid code provided, please request a code again.")
	case strings.TrimSpace(code) != user.code:
		return newError(CodeCodeMismatch, "Invalid verification code provided, please try again.")
	}
	user.confirmed = true
	user.code = ""
	return nil
}

func (p *MemoryProvider) userBySubjectLocked(subject string) *memoryUser {
	for _, u := range p.users {
		if u.subject == subject {
			return u
		}
	}
	return nil
}

func (p *MemoryProvider) pruneRevokedLocked(now time.Time) {
	for jti, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, jti)
		}
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// confirmationCode returns a random six digit code.
func confirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
