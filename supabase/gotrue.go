package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/goliatone/go-storefront"
	gotrue "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

// Grant types accepted by the token endpoint.
const (
	grantPassword = "password"
	grantRefresh  = "refresh_token"
	grantPKCE     = "pkce"
)

// exchange is the transport under one auth-go call. It binds the call to
// ctx, fills in the gateway headers and keeps the last failed response so
// the error can be normalized the same way as calls made through do.
type exchange struct {
	ctx     context.Context
	base    http.RoundTripper
	anonKey string

	status int
	body   []byte
	err    error
}

func (x *exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(x.ctx)
	if req.Header.Get("apikey") == "" {
		req.Header.Set("apikey", x.anonKey)
	}
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+x.anonKey)
	}

	resp, err := x.base.RoundTrip(req)
	if err != nil {
		x.err = err
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if err != nil {
		x.err = err
		return nil, err
	}
	x.status = resp.StatusCode
	x.body = raw
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp, nil
}

// viaGoTrue runs call against an auth-go client bound to ctx. token, when set,
// authenticates the call as the signed in user.
func (c *Client) viaGoTrue(ctx context.Context, operation, token string, call func(api gotrue.Client) error) (err error) {
	start := c.now()
	defer func() {
		c.observer.ObserveRequest(operation, kindOfFailure(err), c.now().Sub(start))
	}()

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	x := &exchange{ctx: ctx, base: base, anonKey: c.cfg.AnonKey}

	api := gotrue.New("", c.cfg.AnonKey).
		WithCustomAuthURL(c.baseURL + "/auth/v1").
		WithClient(http.Client{Transport: x, Timeout: c.httpClient.Timeout})
	if token != "" {
		api = api.WithToken(token)
	}

	cErr := call(api)
	if cErr == nil {
		return nil
	}

	switch {
	case x.err != nil:
		c.logger.Warn("auth service request failed", "operation", operation, "error", x.err)
		return storefront.WrapError(x.err, storefront.KindNetwork, networkMessage(x.err))
	case x.status != 0:
		nErr := normalizeError(x.status, x.body)
		c.logger.Debug("auth service rejected request",
			"operation", operation,
			"status", x.status,
			"kind", storefront.KindOf(nErr),
			"code", errorCode(nErr.Metadata),
		)
		return nErr
	default:
		return storefront.WrapError(cErr, storefront.KindUnknown, msgUnexpectedResponse)
	}
}

// token runs a grant on the token endpoint and converts the reply.
func (c *Client) token(ctx context.Context, operation string, req types.TokenRequest) (*sessionResponse, error) {
	var out *types.TokenResponse
	err := c.viaGoTrue(ctx, operation, "", func(api gotrue.Client) error {
		var tErr error
		out, tErr = api.Token(req)
		return tErr
	})
	if err != nil {
		return nil, err
	}

	var session sessionResponse
	if err := reshape(out, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// logout revokes the session that owns accessToken.
func (c *Client) logout(ctx context.Context, accessToken string) error {
	return c.viaGoTrue(ctx, "signout", accessToken, func(api gotrue.Client) error {
		return api.Logout()
	})
}

// reshape moves an auth-go payload into the local wire types. Both sides
// carry the service's JSON tags.
func reshape(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return storefront.WrapError(err, storefront.KindUnknown, msgUnexpectedResponse)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return storefront.WrapError(err, storefront.KindUnknown, msgUnexpectedResponse)
	}
	return nil
}
