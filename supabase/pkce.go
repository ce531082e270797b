package supabase

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	pkceMethod = "s256"
	// 48 random bytes encode to a 64 character verifier, inside the 43..128
	// range RFC 7636 allows.
	pkceVerifierBytes = 48
)

// pkcePair is the proof key for one code flow. The verifier stays in the
// browser session, the challenge travels with the request that starts the
// flow.
type pkcePair struct {
	Verifier  string
	Challenge string
}

func newPKCEPair() (pkcePair, error) {
	buf := make([]byte, pkceVerifierBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return pkcePair{}, fmt.Errorf("pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return pkcePair{Verifier: verifier, Challenge: s256Challenge(verifier)}, nil
}

// s256Challenge is BASE64URL(SHA256(verifier)) without padding.
func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
