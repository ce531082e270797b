package flow

import (
	"github.com/goliatone/go-storefront/forms"
)

// Name identifies a page flow in logs, metrics and activity events.
type Name string

const (
	FlowSignIn             Name = "signin"
	FlowSignUp             Name = "signup"
	FlowResetRequest       Name = "reset_request"
	FlowPasswordUpdate     Name = "password_update"
	FlowResendVerification Name = "resend_verification"
	FlowOAuth              Name = "oauth"
	FlowCallback           Name = "callback"
)

// PanelCheckEmail replaces the reset form after a request was accepted.
const PanelCheckEmail = "check-email"

// Outcome is what a page renders after a flow step.
type Outcome struct {
	Flow        Name              `json:"flow"`
	State       State             `json:"state"`
	Redirect    string            `json:"redirect,omitempty"`
	Refresh     bool              `json:"refresh,omitempty"`
	Panel       string            `json:"panel,omitempty"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
	FieldErrors forms.FieldErrors `json:"field_errors,omitempty"`
	Loading     bool              `json:"loading"`
	Cause       error             `json:"-"`
}

// Failed reports whether the flow ended with a message for the error region
// or with field errors.
func (o Outcome) Failed() bool {
	return o.Error != "" || len(o.FieldErrors) > 0
}
