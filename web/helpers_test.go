package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storefront/flow"
	"github.com/goliatone/go-storefront/storage"
	"github.com/goliatone/go-storefront/supabase"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testSiteURL  = "https://gallery.example.com"
	testEmail    = "ana@example.com"
	testPassword = "Secret123"

	testUserID    = "6f1c2a9e-3d4b-4c5a-9e8f-7a6b5c4d3e2f"
	newUserID     = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	testIdentity  = "1b2c3d4e-5f60-4a1b-9c2d-3e4f5a6b7c8d"
	newIdentityID = "2c3d4e5f-6071-4b2c-8d3e-4f5a6b7c8d9e"
)

// fakeGoTrue answers the auth endpoints the storefront calls.
type fakeGoTrue struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeGoTrue) seen(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.paths {
		if p == path {
			return true
		}
	}
	return false
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	body := map[string]any{}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	switch r.URL.Path {
	case "/auth/v1/token":
		if r.URL.Query().Get("grant_type") == "password" &&
			(body["email"] != testEmail || body["password"] != testPassword) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, sessionBody())
	case "/auth/v1/signup":
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         newUserID,
			"email":      body["email"],
			"identities": []any{map[string]any{"id": newIdentityID, "user_id": newUserID, "provider": "email"}},
		})
	case "/auth/v1/recover", "/auth/v1/resend":
		writeJSON(w, http.StatusOK, map[string]any{})
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": "not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sessionBody() map[string]any {
	return map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"token_type":    "bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":                 testUserID,
			"email":              testEmail,
			"email_confirmed_at": "2024-01-01T00:00:00Z",
			"app_metadata":       map[string]any{"provider": "email"},
			"user_metadata":      map[string]any{"first_name": "Ana", "last_name": "Li"},
			"identities":         []any{map[string]any{"id": testIdentity, "user_id": testUserID, "provider": "email"}},
		},
	}
}

type testEnv struct {
	app     *fiber.App
	ctl     *Controller
	store   *storage.Storage
	gotrue  *fakeGoTrue
	authURL string
}

func newTestEnv(t *testing.T, cfg AppConfig, opts ...ControllerOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	gotrue := &fakeGoTrue{}
	srv := httptest.NewServer(gotrue)
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{URL: srv.URL, AnonKey: "anon-key"})
	require.NoError(t, err)

	svc, err := flow.NewService(testSiteURL)
	require.NoError(t, err)

	codec, err := NewCodec(testSecret)
	require.NoError(t, err)

	store, err := storage.Open(ctx, storage.Options{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	base := []ControllerOption{
		WithFlows(svc),
		WithSessionClient(client),
		WithCookie(codec, CookieOptions{}),
		WithCatalog(store.DB()),
		WithPinger(store.DB()),
	}
	ctl := NewController(append(base, opts...)...)

	return &testEnv{
		app:     NewServer(ctl, cfg).WrappedRouter(),
		ctl:     ctl,
		store:   store,
		gotrue:  gotrue,
		authURL: srv.URL,
	}
}

// newRouterServer returns a bare fiber backed router for handler tests.
func newRouterServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{DisableStartupMessage: true})
	})
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, target string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(t, req)
}

func (e *testEnv) post(t *testing.T, target string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(t, req)
}

// signIn posts valid credentials and returns the session cookie.
func (e *testEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	resp := e.post(t, "/signin", url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	c := cookieNamed(resp, "sf_session")
	require.NotNil(t, c, "sign in sets the session cookie")
	return c
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
