package supabase

import (
	"time"

	"github.com/goliatone/go-storefront"
)

// Provider is an OAuth provider name understood by the auth service.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// IsSupported reports whether the storefront offers this provider.
func (p Provider) IsSupported() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// User is the user record returned by the auth service.
type User struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	ConfirmedAt      *time.Time     `json:"confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	Identities       []UserIdentity `json:"identities"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// UserIdentity links a user to a sign-in provider.
type UserIdentity struct {
	ID           string         `json:"id"`
	IdentityID   string         `json:"identity_id,omitempty"`
	UserID       string         `json:"user_id"`
	Provider     string         `json:"provider"`
	IdentityData map[string]any `json:"identity_data,omitempty"`
}

// Identity converts the wire user into the storefront identity.
func (u *User) Identity() *storefront.Identity {
	if u == nil {
		return nil
	}

	meta := storefront.Metadata{}
	for k, v := range u.UserMetadata {
		meta[k] = v
	}

	provider, _ := u.AppMetadata["provider"].(string)

	display := meta.FullName()
	if display == "" {
		display = meta.String("name")
	}

	return &storefront.Identity{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    display,
		Provider:       provider,
		EmailConfirmed: u.confirmed(),
		Metadata:       meta,
	}
}

func (u *User) confirmed() bool {
	return isSet(u.EmailConfirmedAt) || isSet(u.ConfirmedAt)
}

func isSet(t *time.Time) bool {
	return t != nil && !t.IsZero()
}

// SignUpParams is the sign up request.
type SignUpParams struct {
	Email           string
	Password        string
	Data            map[string]any
	EmailRedirectTo string
}

// SignUpResult is the sign up response. Session is nil when the service
// requires an email confirmation before issuing one.
type SignUpResult struct {
	User    *User
	Session *storefront.Session
}

// Created reports whether the service returned a user record.
func (r *SignUpResult) Created() bool {
	return r != nil && r.User != nil
}

// NeedsEmailConfirmation documents the contract with the auth service for
// sign ups that did not produce a usable session:
//   - a user with an empty identities list is an obfuscated record for an
//     email that is already registered; the service sends a confirmation or
//     nothing, never a session;
//   - a user without a session and without a confirmation timestamp is a new
//     account waiting on the confirmation email.
func (r *SignUpResult) NeedsEmailConfirmation() bool {
	if !r.Created() {
		return false
	}
	if len(r.User.Identities) == 0 {
		return true
	}
	return r.Session == nil && !r.User.confirmed()
}

// UserAttributes are the fields accepted by UpdateUser.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ResendType selects which email to resend.
type ResendType string

const (
	ResendSignup      ResendType = "signup"
	ResendEmailChange ResendType = "email_change"
)

// ResendParams is the resend request.
type ResendParams struct {
	Type       ResendType
	Email      string
	RedirectTo string
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

func (r *sessionResponse) session(now time.Time) *storefront.Session {
	if r == nil || r.AccessToken == "" {
		return nil
	}

	expiresAt := time.Time{}
	switch {
	case r.ExpiresAt > 0:
		expiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	default:
		if claims, err := readTokenClaims(r.AccessToken); err == nil {
			expiresAt = claims.ExpiresAt
		}
	}

	return &storefront.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    expiresAt,
		Identity:     r.User.Identity(),
	}
}
