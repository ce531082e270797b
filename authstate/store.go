// Package authstate keeps the current identity for one browser session and
// makes it available to everything rendering that request.
package authstate

import (
	"context"
	"sync"

	"github.com/goliatone/go-storefront"
)

// State is the observable auth state.
type State struct {
	Identity  *storefront.Identity
	IsLoading bool
}

// SignedIn reports whether an identity is present.
func (s State) SignedIn() bool {
	return s.Identity != nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger storefront.Logger) Option {
	return func(s *Store) {
		s.logger = storefront.NormalizeLogger(logger)
	}
}

type observer struct {
	id int
	fn func(State)
}

// Store tracks the identity reported by a session source.
type Store struct {
	source storefront.SessionSource
	logger storefront.Logger

	mu        sync.Mutex
	state     State
	version   uint64
	observers []observer
	nextID    int
	started   bool
	closed    bool

	unsubscribe func()
	cancel      context.CancelFunc
	ready       chan struct{}
	closeOnce   sync.Once
}

// New returns a store in the loading state with no identity.
func New(source storefront.SessionSource, opts ...Option) *Store {
	s := &Store{
		source: source,
		logger: storefront.NopLogger(),
		state:  State{IsLoading: true},
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start subscribes to session changes and issues the initial session
// request in the background. Calling Start more than once is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	unsubscribe := s.source.OnSessionChange(s.handleChange)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		cancel()
		close(s.ready)
		return
	}
	s.unsubscribe = unsubscribe
	seen := s.version
	s.mu.Unlock()

	go s.loadInitial(ctx, seen)
}

func (s *Store) loadInitial(ctx context.Context, seen uint64) {
	defer close(s.ready)

	session, err := s.source.GetSession(ctx)
	if err != nil {
		s.logger.Warn("initial session request failed", "error", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// a notification delivered meanwhile is newer than this result
	if s.version != seen {
		s.mu.Unlock()
		return
	}
	s.version++
	s.state = State{Identity: session.CurrentIdentity(), IsLoading: false}
	state, observers := s.state, s.snapshot()
	s.mu.Unlock()

	notify(observers, state)
}

func (s *Store) handleChange(event storefront.SessionEvent, session *storefront.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.version++
	s.state = State{Identity: session.CurrentIdentity(), IsLoading: false}
	state, observers := s.state, s.snapshot()
	s.mu.Unlock()

	s.logger.Debug("session changed", "event", event, "signed_in", state.SignedIn())
	notify(observers, state)
}

func (s *Store) snapshot() []observer {
	out := make([]observer, len(s.observers))
	copy(out, s.observers)
	return out
}

func notify(observers []observer, state State) {
	for _, o := range observers {
		o.fn(state)
	}
}

// Ready is closed once the initial session request settles.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the initial request settles or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the current identity or nil.
func (s *Store) Identity() *storefront.Identity {
	return s.State().Identity
}

// Subscribe registers fn for every state change.
func (s *Store) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// SignOut asks the source to end the session. Failures are logged and
// swallowed; the identity is cleared by the resulting notification only.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.source.SignOut(ctx); err != nil {
		s.logger.Error("sign out failed", "error", err)
	}
}

// Close cancels the source subscription and drops every observer.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsubscribe, cancel := s.unsubscribe, s.cancel
		started := s.started
		s.observers = nil
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
		if !started {
			close(s.ready)
		}
	})
}
