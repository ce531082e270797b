package authstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu          sync.Mutex
	subscribers map[int]storefront.SessionChangeFunc
	next        int
	release     chan struct{}
	session     *storefront.Session
	sessionErr  error
	signOutErr  error
	signOuts    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subscribers: map[int]storefront.SessionChangeFunc{}}
}

func (f *fakeSource) GetSession(ctx context.Context) (*storefront.Session, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.session, f.sessionErr
}

func (f *fakeSource) OnSessionChange(fn storefront.SessionChangeFunc) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeSource) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	return f.signOutErr
}

func (f *fakeSource) emit(event storefront.SessionEvent, session *storefront.Session) {
	f.mu.Lock()
	subs := make([]storefront.SessionChangeFunc, 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(event, session)
	}
}

func (f *fakeSource) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func sessionFor(id string) *storefront.Session {
	return &storefront.Session{AccessToken: "token-" + id, Identity: &storefront.Identity{ID: id, Email: id + "@example.com"}}
}

func waitReady(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestNewStoreStartsLoading(t *testing.T) {
	s := New(newFakeSource())
	defer s.Close()

	state := s.State()
	assert.True(t, state.IsLoading)
	assert.Nil(t, state.Identity)
	assert.False(t, state.SignedIn())
}

func TestInitialSessionPopulatesIdentity(t *testing.T) {
	src := newFakeSource()
	src.session = sessionFor("u1")

	s := New(src)
	defer s.Close()
	s.Start(context.Background())
	waitReady(t, s)

	state := s.State()
	assert.False(t, state.IsLoading)
	require.NotNil(t, state.Identity)
	assert.Equal(t, "u1", state.Identity.ID)
}

func TestInitialSessionErrorLeavesAnonymous(t *testing.T) {
	src := newFakeSource()
	src.sessionErr = storefront.NewError(storefront.KindNetwork, "down")

	s := New(src)
	defer s.Close()
	s.Start(context.Background())
	waitReady(t, s)

	assert.False(t, s.State().IsLoading)
	assert.Nil(t, s.Identity())
}

func TestNotificationReplacesIdentity(t *testing.T) {
	src := newFakeSource()
	s := New(src)
	defer s.Close()
	s.Start(context.Background())
	waitReady(t, s)

	src.emit(storefront.EventSignedIn, sessionFor("u1"))
	assert.Equal(t, "u1", s.Identity().ID)

	src.emit(storefront.EventSignedIn, &storefront.Session{Identity: &storefront.Identity{ID: "u2"}})
	assert.Equal(t, "u2", s.Identity().ID)
	assert.Empty(t, s.Identity().Email, "identity is replaced, not merged")

	src.emit(storefront.EventSignedOut, nil)
	assert.Nil(t, s.Identity())
}

func TestInitialResultDoesNotOverrideNewerNotification(t *testing.T) {
	src := newFakeSource()
	src.release = make(chan struct{})
	src.session = sessionFor("stale")

	s := New(src)
	defer s.Close()
	s.Start(context.Background())

	src.emit(storefront.EventSignedIn, sessionFor("fresh"))
	close(src.release)
	waitReady(t, s)

	require.NotNil(t, s.Identity())
	assert.Equal(t, "fresh", s.Identity().ID)
}

func TestSubscribeObservesChanges(t *testing.T) {
	src := newFakeSource()
	s := New(src)
	defer s.Close()
	s.Start(context.Background())
	waitReady(t, s)

	var seen []string
	unsubscribe := s.Subscribe(func(state State) {
		if state.Identity == nil {
			seen = append(seen, "")
			return
		}
		seen = append(seen, state.Identity.ID)
	})

	src.emit(storefront.EventSignedIn, sessionFor("u1"))
	src.emit(storefront.EventSignedOut, nil)
	unsubscribe()
	src.emit(storefront.EventSignedIn, sessionFor("u2"))

	assert.Equal(t, []string{"u1", ""}, seen)
}

func TestSignOutSwallowsFailure(t *testing.T) {
	src := newFakeSource()
	src.signOutErr = errors.New("network down")

	s := New(src)
	defer s.Close()
	s.Start(context.Background())
	waitReady(t, s)
	src.emit(storefront.EventSignedIn, sessionFor("u1"))

	s.SignOut(context.Background())
	assert.Equal(t, 1, src.signOuts)
	assert.NotNil(t, s.Identity(), "identity clears only through a notification")
}

func TestCloseStopsCallbacks(t *testing.T) {
	src := newFakeSource()
	s := New(src)
	s.Start(context.Background())
	waitReady(t, s)

	calls := 0
	s.Subscribe(func(State) { calls++ })
	assert.Equal(t, 1, src.subscriberCount())

	s.Close()
	s.Close()

	assert.Zero(t, src.subscriberCount())
	src.emit(storefront.EventSignedIn, sessionFor("u1"))
	assert.Zero(t, calls)
	assert.Nil(t, s.Identity())
}

func TestCloseBeforeStartReleasesWaiters(t *testing.T) {
	s := New(newFakeSource())
	s.Close()
	s.Start(context.Background())

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready channel was not closed")
	}
}

func TestCloseCancelsPendingInitialRequest(t *testing.T) {
	src := newFakeSource()
	src.release = make(chan struct{})

	s := New(src)
	s.Start(context.Background())
	s.Close()

	waitReady(t, s)
	assert.True(t, s.State().IsLoading)
}
