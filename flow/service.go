// Package flow orchestrates the auth pages: validate the form, call the
// session client, and turn the result into an Outcome the page can render.
package flow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/supabase"
)

const (
	MsgSignUpFailed       = "Failed to create user account"
	MsgPasswordUpdated    = "Password updated successfully"
	MsgVerificationResent = "Verification email has been resent"
)

// ErrNoKnownEmail is returned by the resend flow when neither the session
// nor a pending sign up knows the address.
var ErrNoKnownEmail = storefront.NewError(storefront.KindValidation, "No email found. Please try signing up again.").
	WithCode(goerrors.CodeBadRequest)

// Auth is the session client surface used by the flows.
type Auth interface {
	GetSession(ctx context.Context) (*storefront.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*storefront.Session, error)
	SignUp(ctx context.Context, params supabase.SignUpParams) (*supabase.SignUpResult, error)
	SignInWithOAuth(ctx context.Context, provider supabase.Provider, redirectTo string) (string, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*storefront.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, attrs supabase.UserAttributes) (*supabase.User, error)
	Resend(ctx context.Context, params supabase.ResendParams) error
	PendingEmail() string
}

// Recorder receives one observation per finished flow step.
type Recorder interface {
	ObserveFlow(flow Name, state State, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFlow(Name, State, time.Duration) {}

// Routes are the local paths the flows redirect to.
type Routes struct {
	Home          string
	SignIn        string
	VerifyEmail   string
	Callback      string
	ResetPassword string
}

// DefaultRoutes match the storefront router.
func DefaultRoutes() Routes {
	return Routes{
		Home:          "/",
		SignIn:        "/signin",
		VerifyEmail:   "/verify-email",
		Callback:      "/auth/callback",
		ResetPassword: "/reset-password",
	}
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger storefront.Logger) Option {
	return func(s *Service) {
		s.logger = storefront.NormalizeLogger(logger)
	}
}

// WithActivitySink sets the audit sink.
func WithActivitySink(sink storefront.ActivitySink) Option {
	return func(s *Service) {
		s.sink = storefront.NormalizeActivitySink(sink)
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithRoutes overrides the redirect targets.
func WithRoutes(r Routes) Option {
	return func(s *Service) {
		s.routes = r
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDebug dumps every outcome to the logger.
func WithDebug(debug bool) Option {
	return func(s *Service) {
		s.debug = debug
	}
}

// Service holds the process wide flow configuration.
type Service struct {
	siteURL  string
	routes   Routes
	logger   storefront.Logger
	sink     storefront.ActivitySink
	recorder Recorder
	now      func() time.Time
	debug    bool
}

// NewService builds a Service. siteURL is the public origin used for email
// and OAuth redirect links.
func NewService(siteURL string, opts ...Option) (*Service, error) {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("flow: site URL must be absolute, got %q", siteURL)
	}

	s := &Service{
		siteURL:  siteURL,
		routes:   DefaultRoutes(),
		logger:   storefront.NopLogger(),
		sink:     storefront.NormalizeActivitySink(nil),
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Routes returns the configured redirect targets.
func (s *Service) Routes() Routes {
	return s.routes
}

// Controller binds the service to one browser's session client. Each
// Controller owns its own Machine.
func (s *Service) Controller(auth Auth) *Controller {
	return &Controller{svc: s, auth: auth, machine: NewMachine()}
}

func (s *Service) absolute(path string) string {
	return s.siteURL + path
}

func (s *Service) callbackURL(next string) string {
	u := s.absolute(s.routes.Callback)
	if next != "" {
		u += "?" + url.Values{"next": {next}}.Encode()
	}
	return u
}

func (s *Service) record(ctx context.Context, eventType storefront.ActivityEventType, identity *storefront.Identity, email string, meta map[string]any) {
	event := storefront.ActivityEvent{
		EventType:  eventType,
		Email:      email,
		Metadata:   meta,
		OccurredAt: s.now(),
	}
	if identity != nil {
		event.UserID = identity.ID
		if event.Email == "" {
			event.Email = identity.Email
		}
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink failed", "event", eventType, "error", err)
	}
}

func (s *Service) dump(out Outcome) {
	if !s.debug {
		return
	}
	s.logger.Debug("flow outcome", "flow", out.Flow, "outcome", print.MaybePrettyJSON(out))
}

// WithQuery appends key=value to a local path.
func WithQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + url.Values{key: {value}}.Encode()
}

// SafeNext returns next when it is a local absolute path, fallback otherwise.
func SafeNext(next, fallback string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
