package supabase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the metadata we read from an access token. Signatures are
// not checked: the auth service validates its own tokens on every call.
type tokenClaims struct {
	Subject   string
	SessionID string
	ExpiresAt time.Time
}

func readTokenClaims(raw string) (tokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return tokenClaims{}, fmt.Errorf("read access token: %w", err)
	}

	out := tokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if sid, ok := claims["session_id"].(string); ok {
		out.SessionID = sid
	}
	return out, nil
}
