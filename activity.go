package storefront

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess        ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure        ActivityEventType = "auth.signin.failure"
	ActivityEventSignUp               ActivityEventType = "auth.signup"
	ActivityEventSignUpFailure        ActivityEventType = "auth.signup.failure"
	ActivityEventOAuthStarted         ActivityEventType = "auth.oauth.started"
	ActivityEventOAuthCallback        ActivityEventType = "auth.oauth.callback"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordUpdated      ActivityEventType = "auth.password.updated"
	ActivityEventVerificationResent   ActivityEventType = "auth.verification.resent"
	ActivityEventSignedOut            ActivityEventType = "auth.signout"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

// NormalizeActivitySink returns a no-op sink for nil.
func NormalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LogActivitySink writes every event to logger at info level.
func LogActivitySink(logger Logger) ActivitySink {
	logger = NormalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Info("activity",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"email", event.Email,
			"metadata", event.Metadata,
			"occurred_at", event.OccurredAt,
		)
		return nil
	})
}
