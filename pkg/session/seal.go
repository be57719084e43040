package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxCookieSize is the largest cookie value browsers reliably keep.
const maxCookieSize = 4000

var ErrCookieTooLarge = errors.New("sealed cookie exceeds browser size limit")

// Sealer encrypts and authenticates cookie payloads with AES-GCM, so any
// instance holding the same secret can read a cookie written by another.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256 key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// RandomSecret returns a secret that only lives as long as the process.
func RandomSecret() (string, error) {
	return generateRandomString(32)
}

// Seal encodes v as JSON and encrypts it. The cookie name is bound as
// additional data so one cookie cannot be replayed as another.
func (s *Sealer) Seal(name string, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	payload := s.aead.Seal(nonce, nonce, plaintext, []byte(name))
	sealed := base64.RawURLEncoding.EncodeToString(payload)
	if len(sealed) > maxCookieSize {
		return "", fmt.Errorf("%s: %w", name, ErrCookieTooLarge)
	}
	return sealed, nil
}

// Open decrypts a value written by Seal under the same name into v.
func (s *Sealer) Open(name, sealed string, v any) error {
	payload, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return fmt.Errorf("%s: sealed value is too short", name)
	}
	plaintext, err := s.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], []byte(name))
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", name, err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
