package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresLongSecret(t *testing.T) {
	_, err := NewCodec("short")
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	in := &cookiePayload{
		Session: &storefront.Session{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Identity:     &storefront.Identity{ID: "user-1", Email: testEmail},
		},
		Items:    map[string]string{"code-verifier": "v"},
		Remember: true,
	}
	value, err := codec.Encode(in, time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, value, "access", "the payload is encrypted")

	out, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "refresh", out.Session.RefreshToken)
	assert.Equal(t, testEmail, out.Session.Identity.Email)
	assert.Equal(t, "v", out.Items["code-verifier"])
	assert.True(t, out.Remember)
}

func TestCodecRejectsTamperingAndForeignKeys(t *testing.T) {
	codec := newTestCodec(t)
	value, err := codec.Encode(&cookiePayload{Items: map[string]string{"k": "v"}}, time.Hour)
	require.NoError(t, err)

	tampered := []byte(value)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}
	_, err = codec.Decode(string(tampered))
	assert.ErrorIs(t, err, ErrInvalidCookie)

	other, err := NewCodec(strings.Repeat("z", 40))
	require.NoError(t, err)
	_, err = other.Decode(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = codec.Decode("not base64 !")
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCodecRejectsExpiredCookie(t *testing.T) {
	codec := newTestCodec(t)
	issued := time.Unix(1_700_000_000, 0)
	codec.now = func() time.Time { return issued }

	value, err := codec.Encode(&cookiePayload{Items: map[string]string{"k": "v"}}, time.Minute)
	require.NoError(t, err)

	codec.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, ErrCookieExpired)
}

func TestCookieStoreDiscardsUnreadableCookie(t *testing.T) {
	store := NewCookieStore(newTestCodec(t), CookieOptions{}, "garbage")

	session, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.True(t, store.dirty, "the broken cookie is cleared on flush")
}

func TestCookieStoreItemsAndSession(t *testing.T) {
	store := NewCookieStore(newTestCodec(t), CookieOptions{}, "")

	require.NoError(t, store.SetItem("pending-email", testEmail))
	v, ok := store.GetItem("pending-email")
	assert.True(t, ok)
	assert.Equal(t, testEmail, v)

	require.NoError(t, store.Save(&storefront.Session{AccessToken: "a"}))
	loaded, err := store.Load()
	require.NoError(t, err)
	loaded.AccessToken = "changed"

	again, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", again.AccessToken, "Load returns a copy")

	require.NoError(t, store.RemoveItem("pending-email"))
	assert.Empty(t, store.Items())

	require.NoError(t, store.Clear())
	cleared, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cleared)
}

func TestCookieStoreFlushRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	opts := CookieOptions{Name: "sess", TTL: time.Hour, RememberTTL: 48 * time.Hour}

	srv := newRouterServer()
	srv.Router().Get("/write", func(ctx router.Context) error {
		store := NewCookieStore(codec, opts, ctx.Cookies(opts.Name))
		if err := store.Save(&storefront.Session{AccessToken: "a", RefreshToken: "r"}); err != nil {
			return err
		}
		store.Remember(true)
		if err := store.Flush(ctx); err != nil {
			return err
		}
		return ctx.SendString("ok")
	})
	srv.Router().Get("/read", func(ctx router.Context) error {
		store := NewCookieStore(codec, opts, ctx.Cookies(opts.Name))
		session, err := store.Load()
		if err != nil || session == nil {
			return ctx.Status(http.StatusNotFound).SendString("")
		}
		if err := store.Clear(); err != nil {
			return err
		}
		if err := store.Flush(ctx); err != nil {
			return err
		}
		return ctx.SendString(session.RefreshToken)
	})
	app := srv.WrappedRouter()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/write", nil))
	require.NoError(t, err)
	cookie := cookieNamed(resp, "sess")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), cookie.Expires, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.AddCookie(cookie)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "r", readBody(t, resp))

	deleted := cookieNamed(resp, "sess")
	require.NotNil(t, deleted)
	assert.Empty(t, deleted.Value)
	assert.True(t, deleted.Expires.Before(time.Now()))
}

func TestCookieStoreFlushSkipsUntouchedStore(t *testing.T) {
	srv := newRouterServer()
	srv.Router().Get("/", func(ctx router.Context) error {
		if err := NewCookieStore(newTestCodec(t), CookieOptions{}, "").Flush(ctx); err != nil {
			return err
		}
		return ctx.SendString("")
	})

	resp, err := srv.WrappedRouter().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, resp.Cookies())
}
