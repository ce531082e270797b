package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-storefront"
	"github.com/supabase-community/auth-go/types"
)

const (
	itemFlowType = "flow-type"
	flowRecovery = "recovery"
)

// Auth is the session client for one browser session. Every method returns
// either its payload or a *goerrors.Error tagged with a storefront.Kind.
//
// mu guards the store. emitMu is held from a store write until its event has
// been delivered, so subscribers see events in the order the store changed.
// Subscribers must not call back into Auth synchronously.
type Auth struct {
	client *Client
	store  SessionStore
	events *broker
	mu     sync.Mutex
	emitMu sync.Mutex
}

// commit applies change to the store and delivers event before any other
// store change can be announced.
func (a *Auth) commit(event storefront.SessionEvent, session *storefront.Session, change func() error) error {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	err := change()
	a.mu.Unlock()
	if err != nil {
		return storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
	}

	a.events.emit(event, session)
	return nil
}

// OnSessionChange registers fn for session change notifications.
func (a *Auth) OnSessionChange(fn storefront.SessionChangeFunc) func() {
	return a.events.subscribe(fn)
}

// GetSession returns the current session, refreshing it when it is about to
// expire. A nil session with a nil error means nobody is signed in.
func (a *Auth) GetSession(ctx context.Context) (*storefront.Session, error) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	session, event, err := a.loadSession(ctx)
	if event != "" {
		a.events.emit(event, session)
	}
	return session, err
}

// loadSession reads and, when needed, refreshes the stored session. A
// non-empty event reports the change it made to the store.
func (a *Auth) loadSession(ctx context.Context) (*storefront.Session, storefront.SessionEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, err := a.store.Load()
	if err != nil {
		a.client.logger.Warn("discarding unreadable session", "error", err)
		_ = a.store.Clear()
		return nil, "", nil
	}
	if session == nil {
		return nil, "", nil
	}
	if !session.ExpiresWithin(a.client.now(), a.client.cfg.RefreshMargin) {
		return session, "", nil
	}

	if session.RefreshToken == "" {
		if err := a.store.Clear(); err != nil {
			return nil, "", storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
		}
		return nil, storefront.EventSignedOut, nil
	}

	refreshed, err := a.refresh(ctx, session.RefreshToken)
	if err != nil {
		if storefront.IsKind(err, storefront.KindNetwork) {
			return nil, "", err
		}
		a.client.logger.Info("refresh token rejected, clearing session", "error", err)
		if cErr := a.store.Clear(); cErr != nil {
			return nil, "", storefront.WrapError(cErr, storefront.KindUnknown, storefront.GenericErrorMessage)
		}
		return nil, storefront.EventSignedOut, nil
	}

	if err := a.store.Save(refreshed); err != nil {
		return nil, "", storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
	}
	return refreshed, storefront.EventTokenRefreshed, nil
}

func (a *Auth) refresh(ctx context.Context, refreshToken string) (*storefront.Session, error) {
	out, err := a.client.token(ctx, "refresh_token", types.TokenRequest{
		GrantType:    grantRefresh,
		RefreshToken: refreshToken,
	})
	if err != nil {
		return nil, err
	}
	return a.sessionFrom(out)
}

func (a *Auth) sessionFrom(out *sessionResponse) (*storefront.Session, error) {
	session := out.session(a.client.now())
	if session == nil {
		return nil, storefront.NewError(storefront.KindUnknown, msgUnexpectedResponse)
	}
	return session, nil
}

// signedIn stores session and announces event.
func (a *Auth) signedIn(session *storefront.Session, event storefront.SessionEvent) error {
	return a.commit(event, session, func() error {
		if err := a.store.Save(session); err != nil {
			return err
		}
		_ = a.store.RemoveItem(itemPendingEmail)
		return nil
	})
}

// SignInWithPassword exchanges email and password for a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*storefront.Session, error) {
	out, err := a.client.token(ctx, "signin_password", types.TokenRequest{
		GrantType: grantPassword,
		Email:     strings.TrimSpace(email),
		Password:  password,
	})
	if err != nil {
		return nil, err
	}

	session, err := a.sessionFrom(out)
	if err != nil {
		return nil, err
	}

	if err := a.signedIn(session, storefront.EventSignedIn); err != nil {
		return nil, err
	}
	return session, nil
}

// SignUp registers a new account. The service answers with a session when
// email confirmation is disabled, with a bare user record otherwise.
func (a *Auth) SignUp(ctx context.Context, params SignUpParams) (*SignUpResult, error) {
	challenge, err := a.beginCodeFlow("")
	if err != nil {
		return nil, err
	}

	// auth-go has no way to pass redirect_to or the PKCE challenge on sign
	// up, so this call goes straight to the endpoint.
	query := url.Values{}
	if params.EmailRedirectTo != "" {
		query.Set("redirect_to", params.EmailRedirectTo)
	}

	body := map[string]any{
		"email":                 strings.TrimSpace(params.Email),
		"password":              params.Password,
		"code_challenge":        challenge,
		"code_challenge_method": pkceMethod,
	}
	if len(params.Data) > 0 {
		body["data"] = params.Data
	}

	var raw json.RawMessage
	err = a.client.do(ctx, request{
		operation: "signup",
		method:    http.MethodPost,
		path:      "/auth/v1/signup",
		query:     query,
		body:      body,
	}, &raw)
	if err != nil {
		return nil, err
	}

	result, err := decodeSignUp(raw, a.client)
	if err != nil {
		return nil, err
	}

	if result.Session != nil {
		if err := a.signedIn(result.Session, storefront.EventSignedIn); err != nil {
			return nil, err
		}
		return result, nil
	}

	if result.Created() {
		if err := a.store.SetItem(itemPendingEmail, strings.TrimSpace(params.Email)); err != nil {
			a.client.logger.Warn("failed to remember pending email", "error", err)
		}
	}
	return result, nil
}

func decodeSignUp(raw json.RawMessage, c *Client) (*SignUpResult, error) {
	result := &SignUpResult{}
	if len(raw) == 0 {
		return result, nil
	}

	var withSession sessionResponse
	if err := json.Unmarshal(raw, &withSession); err != nil {
		return nil, storefront.WrapError(err, storefront.KindUnknown, msgUnexpectedResponse)
	}
	if withSession.AccessToken != "" {
		result.Session = withSession.session(c.now())
		result.User = withSession.User
		return result, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, storefront.WrapError(err, storefront.KindUnknown, msgUnexpectedResponse)
	}
	if user.ID != "" {
		result.User = &user
	}
	return result, nil
}

// beginCodeFlow stores a fresh PKCE verifier and returns its challenge.
func (a *Auth) beginCodeFlow(flowType string) (string, error) {
	pair, err := newPKCEPair()
	if err != nil {
		return "", storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
	}
	if err := a.store.SetItem(itemCodeVerifier, pair.Verifier); err != nil {
		return "", storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
	}
	if flowType == "" {
		_ = a.store.RemoveItem(itemFlowType)
	} else if err := a.store.SetItem(itemFlowType, flowType); err != nil {
		return "", storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
	}
	return pair.Challenge, nil
}

// SignInWithOAuth returns the provider authorization URL the browser should
// be sent to. The redirect carries a PKCE code back to redirectTo.
func (a *Auth) SignInWithOAuth(ctx context.Context, provider Provider, redirectTo string) (string, error) {
	if !provider.IsSupported() {
		return "", storefront.NewError(storefront.KindValidation, "Unsupported sign in provider")
	}

	challenge, err := a.beginCodeFlow("")
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("provider", string(provider))
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", pkceMethod)

	a.client.logger.Debug("oauth authorize url issued", "provider", provider)
	return a.client.baseURL + "/auth/v1/authorize?" + query.Encode(), nil
}

// ExchangeCodeForSession completes a PKCE flow started by this browser.
func (a *Auth) ExchangeCodeForSession(ctx context.Context, code string) (*storefront.Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, storefront.NewError(storefront.KindValidation, "Missing authorization code")
	}

	verifier, ok := a.store.GetItem(itemCodeVerifier)
	if !ok || verifier == "" {
		return nil, storefront.NewError(storefront.KindValidation, "Sign in link is invalid or was opened in a different browser")
	}
	flowType, _ := a.store.GetItem(itemFlowType)

	out, err := a.client.token(ctx, "exchange_code", types.TokenRequest{
		GrantType:    grantPKCE,
		Code:         code,
		CodeVerifier: verifier,
	})
	if err != nil {
		return nil, err
	}

	_ = a.store.RemoveItem(itemCodeVerifier)
	_ = a.store.RemoveItem(itemFlowType)

	session, err := a.sessionFrom(out)
	if err != nil {
		return nil, err
	}

	event := storefront.EventSignedIn
	if flowType == flowRecovery {
		event = storefront.EventPasswordRecovery
	}

	if err := a.signedIn(session, event); err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut revokes the session remotely and clears it locally. A session the
// service no longer knows about counts as signed out.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	session, _ := a.store.Load()
	a.mu.Unlock()

	if session != nil && session.AccessToken != "" {
		if err := a.client.logout(ctx, session.AccessToken); err != nil && !alreadySignedOut(err) {
			return err
		}
	}

	return a.commit(storefront.EventSignedOut, nil, a.store.Clear)
}

func alreadySignedOut(err error) bool {
	switch storefront.StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// ResetPasswordForEmail asks the service to mail a recovery link that lands
// on redirectTo with a PKCE code.
func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	challenge, err := a.beginCodeFlow(flowRecovery)
	if err != nil {
		return err
	}

	// Recovery links need redirect_to and the PKCE challenge, neither of
	// which auth-go's recover request carries.
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	return a.client.do(ctx, request{
		operation: "recover",
		method:    http.MethodPost,
		path:      "/auth/v1/recover",
		query:     query,
		body: map[string]string{
			"email":                 strings.TrimSpace(email),
			"code_challenge":        challenge,
			"code_challenge_method": pkceMethod,
		},
	}, nil)
}

// UpdateUser changes attributes of the signed in user.
func (a *Auth) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	session, err := a.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, storefront.NewError(storefront.KindUnauthorized, "Auth session missing!")
	}

	var user User
	err = a.client.do(ctx, request{
		operation: "update_user",
		method:    http.MethodPut,
		path:      "/auth/v1/user",
		body:      attrs,
		token:     session.AccessToken,
	}, &user)
	if err != nil {
		return nil, err
	}

	updated := *session
	if identity := user.Identity(); identity != nil && identity.ID != "" {
		updated.Identity = identity
	}

	err = a.commit(storefront.EventUserUpdated, &updated, func() error {
		return a.store.Save(&updated)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Resend sends the sign up confirmation (or email change) message again.
// auth-go does not cover the resend endpoint.
func (a *Auth) Resend(ctx context.Context, params ResendParams) error {
	email := strings.TrimSpace(params.Email)
	if email == "" {
		return storefront.NewError(storefront.KindValidation, "Email is required")
	}
	kind := params.Type
	if kind == "" {
		kind = ResendSignup
	}

	query := url.Values{}
	if params.RedirectTo != "" {
		query.Set("redirect_to", params.RedirectTo)
	}

	return a.client.do(ctx, request{
		operation: "resend",
		method:    http.MethodPost,
		path:      "/auth/v1/resend",
		query:     query,
		body: map[string]string{
			"type":  string(kind),
			"email": email,
		},
	}, nil)
}

// PendingEmail is the address of a sign up still waiting on confirmation.
func (a *Auth) PendingEmail() string {
	email, _ := a.store.GetItem(itemPendingEmail)
	return email
}

var _ storefront.SessionSource = (*Auth)(nil)
