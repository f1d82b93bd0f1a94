// Package auth turns HS256 bearer tokens into caller metadata.
package auth

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/roach88/objgate/internal/ir"
)

// Claims are the token claims understood by objgate. The subject is the
// user; roles become ir.Meta.Roles.
type Claims struct {
	gojwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Verifier validates tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the time used to check expiry.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: empty jwt secret")
	}
	v := &Verifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Meta validates token and returns the caller it identifies. Invalid,
// expired or subject-less tokens are PermissionDenied.
func (v *Verifier) Meta(token string) (ir.Meta, error) {
	claims := &Claims{}
	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return ir.Meta{}, ir.PermissionDenied("invalid token: %v", err)
	}
	if claims.Subject == "" {
		return ir.Meta{}, ir.PermissionDenied("invalid token: missing subject")
	}
	return ir.Meta{User: claims.Subject, Roles: claims.Roles}, nil
}

// Issue signs a token for meta valid for ttl. A zero ttl never expires.
func (v *Verifier) Issue(meta ir.Meta, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:  meta.User,
			IssuedAt: gojwt.NewNumericDate(now),
		},
		Roles: meta.Roles,
	}
	if ttl > 0 {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
