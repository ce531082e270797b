package web

import (
	"maps"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storefront"
)

// CookieOptions describe the session cookie.
type CookieOptions struct {
	Name        string
	Secure      bool
	TTL         time.Duration
	RememberTTL time.Duration
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Name == "" {
		o.Name = "sf_session"
	}
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if o.RememberTTL <= 0 {
		o.RememberTTL = 30 * 24 * time.Hour
	}
	return o
}

// CookieStore keeps one browser session in an encrypted cookie. It is
// loaded when the request starts and written back by Flush.
type CookieStore struct {
	mu      sync.Mutex
	codec   *Codec
	opts    CookieOptions
	payload cookiePayload
	dirty   bool
	present bool
}

// NewCookieStore decodes raw, the incoming cookie value. An unreadable or
// expired cookie starts an empty store that clears the cookie on Flush.
func NewCookieStore(codec *Codec, opts CookieOptions, raw string) *CookieStore {
	s := &CookieStore{codec: codec, opts: opts.withDefaults(), present: raw != ""}
	if raw == "" {
		return s
	}
	payload, err := codec.Decode(raw)
	if err != nil {
		s.dirty = true
		return s
	}
	s.payload = *payload
	return s
}

func (s *CookieStore) Load() (*storefront.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload.Session == nil {
		return nil, nil
	}
	cp := *s.payload.Session
	return &cp, nil
}

func (s *CookieStore) Save(session *storefront.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.payload.Session = nil
	} else {
		cp := *session
		s.payload.Session = &cp
	}
	s.dirty = true
	return nil
}

func (s *CookieStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload.Session = nil
	s.payload.Remember = false
	s.dirty = true
	return nil
}

func (s *CookieStore) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.payload.Items[key]
	return v, ok
}

func (s *CookieStore) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload.Items == nil {
		s.payload.Items = map[string]string{}
	}
	s.payload.Items[key] = value
	s.dirty = true
	return nil
}

func (s *CookieStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payload.Items[key]; !ok {
		return nil
	}
	delete(s.payload.Items, key)
	s.dirty = true
	return nil
}

// Remember switches the cookie to the extended lifetime.
func (s *CookieStore) Remember(remember bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload.Remember != remember {
		s.payload.Remember = remember
		s.dirty = true
	}
}

// Items returns a copy of the auxiliary items.
func (s *CookieStore) Items() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.payload.Items)
}

// Flush writes the cookie when the store changed. An empty store deletes
// the cookie.
func (s *CookieStore) Flush(ctx router.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	s.dirty = false

	if s.payload.empty() {
		if s.present {
			s.cookieDel(ctx)
		}
		return nil
	}

	ttl := s.opts.TTL
	if s.payload.Remember {
		ttl = s.opts.RememberTTL
	}

	payload := s.payload
	value, err := s.codec.Encode(&payload, ttl)
	if err != nil {
		return err
	}
	s.setCookie(ctx, value, ttl)
	return nil
}

func (s *CookieStore) setCookie(ctx router.Context, value string, ttl time.Duration) {
	ctx.Cookie(&router.Cookie{
		Name:     s.opts.Name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   s.opts.Secure,
		SameSite: "Lax",
	})
}

func (s *CookieStore) cookieDel(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     s.opts.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.opts.Secure,
		SameSite: "Lax",
	})
}
