package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-storefront"
)

const (
	maxResponseBytes      = 1 << 20
	msgUnexpectedResponse = "Unexpected response from the authentication service"
)

// codes reported with a 400 status that mean the credentials were rejected
var unauthorizedCodes = map[string]struct{}{
	"invalid_credentials":     {},
	"invalid_grant":           {},
	"bad_jwt":                 {},
	"session_not_found":       {},
	"refresh_token_not_found": {},
}

// Client is the process wide handle to the auth service. It is safe for
// concurrent use and never mutated after New returns.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     storefront.Logger
	observer   Observer
	now        func() time.Time
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := cfg.baseURL()
	if base == "" {
		return nil, fmt.Errorf("supabase: project URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("supabase: invalid project URL: %w", err)
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, fmt.Errorf("supabase: anon key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = defaultRefreshMargin
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     storefront.NopLogger(),
		observer:   noopObserver{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Auth returns a handle bound to one browser session.
func (c *Client) Auth(store SessionStore) *Auth {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Auth{client: c, store: store, events: &broker{}}
}

type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	token     string
}

// do sends req and decodes a 2xx body into out when out is not nil. Every
// failure comes back as a *goerrors.Error tagged with a storefront.Kind.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	start := c.now()
	defer func() {
		c.observer.ObserveRequest(req.operation, kindOfFailure(err), c.now().Sub(start))
	}()

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		raw, mErr := json.Marshal(req.body)
		if mErr != nil {
			return storefront.WrapError(mErr, storefront.KindUnknown, storefront.GenericErrorMessage)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return storefront.WrapError(err, storefront.KindUnknown, storefront.GenericErrorMessage)
	}

	token := req.token
	if token == "" {
		token = c.cfg.AnonKey
	}
	httpReq.Header.Set("apikey", c.cfg.AnonKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("auth service request failed", "operation", req.operation, "error", err)
		return storefront.WrapError(err, storefront.KindNetwork, networkMessage(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return storefront.WrapError(err, storefront.KindNetwork, networkMessage(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		nErr := normalizeError(resp.StatusCode, raw)
		c.logger.Debug("auth service rejected request",
			"operation", req.operation,
			"status", resp.StatusCode,
			"kind", storefront.KindOf(nErr),
			"code", errorCode(nErr.Metadata),
		)
		return nErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return storefront.WrapError(err, storefront.KindUnknown, msgUnexpectedResponse)
	}
	return nil
}

func kindOfFailure(err error) storefront.Kind {
	if err == nil {
		return ""
	}
	return storefront.KindOf(err)
}

func networkMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The authentication service did not respond in time"
	}
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled"
	}
	return "Unable to reach the authentication service"
}

// normalizeError maps an error response to a tagged error. The HTTP status
// is the error code and the decoded body is kept as metadata.
func normalizeError(status int, raw []byte) *goerrors.Error {
	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			payload = map[string]any{}
			if text := strings.TrimSpace(string(raw)); text != "" {
				payload["message"] = text
			}
		}
	}

	kind := kindForStatus(status, errorCode(payload))
	nErr := storefront.NewError(kind, storefront.MessageFromPayload(payload)).WithCode(status)
	if len(payload) > 0 {
		nErr = nErr.WithMetadata(payload)
	}
	return nErr
}

func errorCode(payload map[string]any) string {
	for _, key := range []string{"error_code", "code", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func kindForStatus(status int, code string) storefront.Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if _, ok := unauthorizedCodes[code]; ok {
			return storefront.KindUnauthorized
		}
		return storefront.KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return storefront.KindUnauthorized
	case status == http.StatusTooManyRequests:
		return storefront.KindRateLimited
	case status >= 500:
		return storefront.KindNetwork
	default:
		return storefront.KindUnknown
	}
}
