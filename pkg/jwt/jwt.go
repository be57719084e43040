package jwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token uses, matching the token_use claim of the hosted identity provider.
const (
	TokenUseID     = "id"
	TokenUseAccess = "access"
)

var ErrWrongTokenUse = errors.New("unexpected token_use")

// Generator issues and validates ES256 tokens shaped like the identity
// provider's ID and access tokens.
type Generator struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	issuer     string
	keyID      string
}

// Claims is the union of the ID and access token claims we read.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	TokenUse      string `json:"token_use"`
	ClientID      string `json:"client_id,omitempty"`
}

// NewGenerator creates a generator from a PEM-encoded ECDSA private key.
func NewGenerator(privateKeyPEM, issuer, keyID string) (*Generator, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing private key")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}

	return newGenerator(privateKey, issuer, keyID), nil
}

// NewEphemeralGenerator creates a generator with a freshly generated P-256
// key. Tokens it issues do not survive a restart.
func NewEphemeralGenerator(issuer, keyID string) (*Generator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return newGenerator(privateKey, issuer, keyID), nil
}

func newGenerator(privateKey *ecdsa.PrivateKey, issuer, keyID string) *Generator {
	return &Generator{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		keyID:      keyID,
	}
}

// GenerateIDToken creates a signed ID token carrying the user's email.
func (g *Generator) GenerateIDToken(subject, email, clientID string, expiresIn time.Duration) (string, error) {
	token, _, err := g.sign(Claims{
		RegisteredClaims: g.registered(subject, clientID, expiresIn),
		Email:            email,
		EmailVerified:    true,
		TokenUse:         TokenUseID,
	})
	return token, err
}

// GenerateAccessToken creates a signed access token and returns its jti.
func (g *Generator) GenerateAccessToken(subject, clientID string, expiresIn time.Duration) (token string, jti string, err error) {
	return g.sign(Claims{
		RegisteredClaims: g.registered(subject, "", expiresIn),
		TokenUse:         TokenUseAccess,
		ClientID:         clientID,
	})
}

func (g *Generator) registered(subject, audience string, expiresIn time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    g.issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return claims
}

func (g *Generator) sign(claims Claims) (string, string, error) {
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	jwtToken.Header["kid"] = g.keyID

	signedToken, err := jwtToken.SignedString(g.privateKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, claims.ID, nil
}

// ValidateToken verifies the signature, expiry and issuer of a token and
// that its token_use matches tokenUse.
func (g *Generator) ValidateToken(tokenString, tokenUse string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodES256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.publicKey, nil
	}, jwt.WithIssuer(g.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.TokenUse != tokenUse {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongTokenUse, tokenUse, claims.TokenUse)
	}
	return claims, nil
}

// ParseUnverified decodes a token's claims without checking its signature.
// Only use it on tokens received directly from the identity provider over
// TLS.
func ParseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}
