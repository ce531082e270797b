package supabase

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-real-secret"))
	require.NoError(t, err)
	return raw
}

func TestReadTokenClaimsIgnoresSignature(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := signedTestToken(t, jwt.MapClaims{
		"sub":        "user-1",
		"exp":        exp.Unix(),
		"session_id": "sess-1",
	})

	claims, err := readTokenClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.True(t, exp.Equal(claims.ExpiresAt))

	_, err = readTokenClaims("garbage")
	assert.Error(t, err)
}

func TestSessionExpiryFallsBackToToken(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := &sessionResponse{AccessToken: signedTestToken(t, jwt.MapClaims{"sub": "u", "exp": exp.Unix()})}

	session := resp.session(time.Now())
	require.NotNil(t, session)
	assert.True(t, exp.Equal(session.ExpiresAt))
	assert.Nil(t, session.Identity)

	resp = &sessionResponse{AccessToken: "x", ExpiresAt: exp.Unix(), ExpiresIn: 10}
	assert.True(t, exp.Equal(resp.session(time.Now()).ExpiresAt))

	assert.Nil(t, (&sessionResponse{}).session(time.Now()))
}

func TestPKCEPair(t *testing.T) {
	first, err := newPKCEPair()
	require.NoError(t, err)
	second, err := newPKCEPair()
	require.NoError(t, err)

	assert.NotEqual(t, first.Verifier, second.Verifier)
	assert.Len(t, first.Verifier, 64)
	assert.Equal(t, s256Challenge(first.Verifier), first.Challenge)
	assert.NotContains(t, first.Verifier, "=")
}

func TestS256ChallengeMatchesRFC7636(t *testing.T) {
	// Appendix B of RFC 7636.
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		s256Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)
}
