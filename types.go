package storefront

import (
	"context"
	"strings"
	"time"
)

// Logger is the logging contract used across the storefront packages.
// Arguments after msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Metadata holds the user metadata bag managed by the auth service.
type Metadata map[string]any

// String returns the value stored under key when it is a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// FirstName returns the first_name entry
func (m Metadata) FirstName() string { return m.String("first_name") }

// LastName returns the last_name entry
func (m Metadata) LastName() string { return m.String("last_name") }

// FullName returns full_name, falling back to first and last name.
func (m Metadata) FullName() string {
	if name := strings.TrimSpace(m.String("full_name")); name != "" {
		return name
	}
	return strings.TrimSpace(m.FirstName() + " " + m.LastName())
}

// Identity is the signed-in principal.
type Identity struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	DisplayName    string   `json:"display_name,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	EmailConfirmed bool     `json:"email_confirmed,omitempty"`
	Metadata       Metadata `json:"metadata,omitempty"`
}

// Name returns the best human readable name for the identity.
func (i *Identity) Name() string {
	if i == nil {
		return ""
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if name := i.Metadata.FullName(); name != "" {
		return name
	}
	return i.Email
}

// Session is the credential pair issued by the auth service.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     *Identity `json:"identity,omitempty"`
}

// ExpiresWithin reports whether the session expires before now+margin.
// A zero ExpiresAt never expires.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// CurrentIdentity returns the session identity or nil.
func (s *Session) CurrentIdentity() *Identity {
	if s == nil {
		return nil
	}
	return s.Identity
}

// SessionEvent names a session change notification.
type SessionEvent string

const (
	EventInitialSession   SessionEvent = "INITIAL_SESSION"
	EventSignedIn         SessionEvent = "SIGNED_IN"
	EventSignedOut        SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed   SessionEvent = "TOKEN_REFRESHED"
	EventUserUpdated      SessionEvent = "USER_UPDATED"
	EventPasswordRecovery SessionEvent = "PASSWORD_RECOVERY"
)

// SessionChangeFunc receives session change notifications. session is nil
// after a sign out.
type SessionChangeFunc func(event SessionEvent, session *Session)

// SessionSource is the part of the session client the auth state needs.
type SessionSource interface {
	GetSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn SessionChangeFunc) (unsubscribe func())
	SignOut(ctx context.Context) error
}
