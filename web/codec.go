package web

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-storefront"
	"golang.org/x/crypto/hkdf"
)

const minSecretLength = 32

var (
	ErrInvalidCookie = goerrors.New("invalid session cookie", goerrors.CategoryAuth).
		WithTextCode("SESSION_COOKIE_INVALID").
		WithCode(goerrors.CodeUnauthorized)
	ErrCookieExpired = goerrors.New("session cookie expired", goerrors.CategoryAuth).
		WithTextCode("SESSION_COOKIE_EXPIRED").
		WithCode(goerrors.CodeUnauthorized)
)

// cookiePayload is what the session cookie carries between requests.
type cookiePayload struct {
	Session   *storefront.Session `json:"s,omitempty"`
	Items     map[string]string   `json:"i,omitempty"`
	Remember  bool                `json:"rm,omitempty"`
	IssuedAt  int64               `json:"iat"`
	ExpiresAt int64               `json:"exp"`
}

func (p *cookiePayload) empty() bool {
	return p == nil || (p.Session == nil && len(p.Items) == 0)
}

// Codec seals cookie payloads with AES-GCM and signs them with HMAC-SHA256.
// Both keys are derived from one secret.
type Codec struct {
	encryptionKey []byte
	hmacKey       []byte
	now           func() time.Time
}

// NewCodec derives the cookie keys from secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("web: session secret must be at least %d characters", minSecretLength)
	}

	encryptionKey, err := deriveKey(secret, "storefront-session-encryption")
	if err != nil {
		return nil, err
	}
	hmacKey, err := deriveKey(secret, "storefront-session-signature")
	if err != nil {
		return nil, err
	}

	return &Codec{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		now:           time.Now,
	}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("web: derive %s key: %w", info, err)
	}
	return key, nil
}

// Encode encrypts and signs the payload, valid for ttl.
func (c *Codec) Encode(payload *cookiePayload, ttl time.Duration) (string, error) {
	if payload == nil {
		return "", ErrInvalidCookie
	}

	now := c.now()
	payload.IssuedAt = now.Unix()
	payload.ExpiresAt = now.Add(ttl).Unix()

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write(ciphertext)
	signature := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(append(signature, ciphertext...)), nil
}

// Decode verifies and decrypts a cookie value.
func (c *Codec) Decode(value string) (*cookiePayload, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidCookie
	}

	if len(data) < sha256.Size {
		return nil, ErrInvalidCookie
	}

	signature := data[:sha256.Size]
	ciphertext := data[sha256.Size:]

	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write(ciphertext)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return nil, ErrInvalidCookie
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCookie
	}

	nonce, encrypted := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, ErrInvalidCookie
	}

	var payload cookiePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrInvalidCookie
	}

	if c.now().Unix() > payload.ExpiresAt {
		return nil, ErrCookieExpired
	}

	return &payload, nil
}

func (c *Codec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
