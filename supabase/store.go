package supabase

import (
	"sync"

	"github.com/goliatone/go-storefront"
)

const (
	itemCodeVerifier = "code-verifier"
	itemPendingEmail = "pending-email"
)

// SessionStore persists one browser session plus a few auxiliary items
// (PKCE verifier, pending sign up email).
type SessionStore interface {
	Load() (*storefront.Session, error)
	Save(session *storefront.Session) error
	Clear() error
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// MemoryStore is an in-process SessionStore.
type MemoryStore struct {
	mu      sync.Mutex
	session *storefront.Session
	items   map[string]string
}

// NewMemoryStore returns an empty store, optionally seeded with a session.
func NewMemoryStore(session ...*storefront.Session) *MemoryStore {
	s := &MemoryStore{items: map[string]string{}}
	if len(session) > 0 {
		s.session = session[0]
	}
	return s
}

func (m *MemoryStore) Load() (*storefront.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStore) Save(session *storefront.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session == nil {
		m.session = nil
		return nil
	}
	cp := *session
	m.session = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *MemoryStore) GetItem(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryStore) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStore) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
