package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrMalformedToken is returned when the API hands back something that is
// not a JWT.
var ErrMalformedToken = errors.New("auth: malformed token")

// ParseToken turns the raw JWT returned by the login endpoint into an
// oauth2.Token.
//
// The signature is not checked: the console never holds the API's signing
// key and only needs the expiry so it can drop a stale session before the
// API rejects it. An absent exp claim yields a token that never expires.
func ParseToken(raw string) (*oauth2.Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	tok := &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: reading exp: %w", ErrMalformedToken, err)
	}
	if exp != nil {
		tok.Expiry = exp.Time
	}

	return tok, nil
}

// Expired reports whether tok is past its expiry at now. Tokens without an
// expiry never expire.
func Expired(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.AccessToken == "" {
		return true
	}
	return !tok.Expiry.IsZero() && !now.Before(tok.Expiry)
}
