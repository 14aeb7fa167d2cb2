package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken returns a random 32-byte token, hex encoded.
func GenerateToken() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// HashToken returns the bcrypt hash stored in auth.token_hash.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// Verifier checks bearer tokens against one bcrypt hash. Tokens that passed
// once are remembered, so bcrypt runs once per distinct token.
type Verifier struct {
	hash []byte

	mu       sync.RWMutex
	accepted map[string]struct{}
}

// NewVerifier creates a verifier for hash. An empty hash returns nil, which
// accepts everything.
func NewVerifier(hash string) (*Verifier, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return &Verifier{hash: []byte(hash), accepted: make(map[string]struct{})}, nil
}

// Verify reports whether token matches. A nil Verifier accepts any token.
func (v *Verifier) Verify(token string) error {
	if v == nil {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}

	v.mu.RLock()
	_, ok := v.accepted[token]
	v.mu.RUnlock()
	if ok {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	v.mu.Lock()
	v.accepted[token] = struct{}{}
	v.mu.Unlock()
	return nil
}
