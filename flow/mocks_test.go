package flow

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/supabase"
	"github.com/stretchr/testify/mock"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) GetSession(ctx context.Context) (*storefront.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*storefront.Session)
	return s, args.Error(1)
}

func (m *mockAuth) SignInWithPassword(ctx context.Context, email, password string) (*storefront.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*storefront.Session)
	return s, args.Error(1)
}

func (m *mockAuth) SignUp(ctx context.Context, params supabase.SignUpParams) (*supabase.SignUpResult, error) {
	args := m.Called(ctx, params)
	r, _ := args.Get(0).(*supabase.SignUpResult)
	return r, args.Error(1)
}

func (m *mockAuth) SignInWithOAuth(ctx context.Context, provider supabase.Provider, redirectTo string) (string, error) {
	args := m.Called(ctx, provider, redirectTo)
	return args.String(0), args.Error(1)
}

func (m *mockAuth) ExchangeCodeForSession(ctx context.Context, code string) (*storefront.Session, error) {
	args := m.Called(ctx, code)
	s, _ := args.Get(0).(*storefront.Session)
	return s, args.Error(1)
}

func (m *mockAuth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return m.Called(ctx, email, redirectTo).Error(0)
}

func (m *mockAuth) UpdateUser(ctx context.Context, attrs supabase.UserAttributes) (*supabase.User, error) {
	args := m.Called(ctx, attrs)
	u, _ := args.Get(0).(*supabase.User)
	return u, args.Error(1)
}

func (m *mockAuth) Resend(ctx context.Context, params supabase.ResendParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *mockAuth) PendingEmail() string {
	return m.Called().String(0)
}

type recordingSink struct {
	mu     sync.Mutex
	events []storefront.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event storefront.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []storefront.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storefront.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type observation struct {
	flow  Name
	state State
}

type recordingRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingRecorder) ObserveFlow(flow Name, state State, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{flow: flow, state: state})
}
