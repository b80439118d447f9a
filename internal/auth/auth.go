// Package auth provides identities that can produce short-lived bearer
// credentials on demand.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoIdentity indicates no principal is signed in.
	ErrNoIdentity = errors.New("auth: no identity")

	// ErrCredentialExpired indicates the only available credential has expired.
	ErrCredentialExpired = errors.New("auth: credential expired")
)

// Identity is an authenticated principal. Token is called once per remote
// call; implementations must not assume callers cache the result.
type Identity interface {
	// Subject returns the stable principal id.
	Subject() string

	// Token returns a bearer credential valid for at least the next request.
	Token(ctx context.Context) (string, error)
}

// StaticIdentity serves a pre-issued credential, typically pasted from a
// browser session. If the credential is a JWT its expiry is honoured.
type StaticIdentity struct {
	subject string
	token   string
	now     func() time.Time
}

// NewStaticIdentity wraps a pre-issued token. The subject is read from the
// token's claims when it is a JWT and fallback is used otherwise.
func NewStaticIdentity(token, fallback string) *StaticIdentity {
	token = strings.TrimSpace(token)
	subject := fallback
	if claims, err := unverifiedClaims(token); err == nil && claims.Subject != "" {
		subject = claims.Subject
	}
	return &StaticIdentity{subject: subject, token: token, now: time.Now}
}

func (s *StaticIdentity) Subject() string { return s.subject }

func (s *StaticIdentity) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.token == "" {
		return "", ErrNoIdentity
	}
	if exp, ok := ExpiresAt(s.token); ok && !s.now().Before(exp) {
		return "", ErrCredentialExpired
	}
	return s.token, nil
}

// HMACIdentity mints HS256 tokens locally. It is meant for development
// servers that share a signing secret with the client.
type HMACIdentity struct {
	subject string
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
}

// NewHMACIdentity creates a minting identity. ttl <= 0 defaults to an hour.
func NewHMACIdentity(subject string, secret []byte, ttl time.Duration) *HMACIdentity {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &HMACIdentity{
		subject: subject,
		secret:  secret,
		issuer:  "notakto-cli",
		ttl:     ttl,
		now:     time.Now,
	}
}

func (h *HMACIdentity) Subject() string { return h.subject }

func (h *HMACIdentity) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(h.secret) == 0 {
		return "", fmt.Errorf("auth: signing secret not configured")
	}

	now := h.now()
	claims := jwt.RegisteredClaims{
		Subject:   h.subject,
		Issuer:    h.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ExpiresAt reports the exp claim of a JWT without verifying its signature.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := unverifiedClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func unverifiedClaims(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
