package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned when the bearer token is not a parseable JWT. Opaque tokens are
// legal; callers treat this as "no claims known".
var ErrNotJWT = errors.New("token is not a jwt")

// Claims are the registered claims the client cares about.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carries an exp claim.
func (c Claims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Expired reports whether the exp claim is at or before now.
func (c Claims) Expired(now time.Time) bool {
	return c.HasExpiry() && !now.Before(c.ExpiresAt)
}

// Inspect parses token without verifying its signature.
func Inspect(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return Claims{}, ErrNotJWT
	}

	var registered jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &registered); err != nil {
		return Claims{}, errors.Join(ErrNotJWT, err)
	}

	out := Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time.UTC()
	}
	if registered.IssuedAt != nil {
		out.IssuedAt = registered.IssuedAt.Time.UTC()
	}
	return out, nil
}
