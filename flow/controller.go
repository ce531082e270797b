package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/forms"
	"github.com/goliatone/go-storefront/supabase"
)

// Controller runs the page flows for one browser session.
type Controller struct {
	svc     *Service
	auth    Auth
	machine *Machine
}

// State returns the machine state.
func (c *Controller) State() State {
	return c.machine.State()
}

// Machine exposes the underlying machine.
func (c *Controller) Machine() *Machine {
	return c.machine
}

type stepResult struct {
	out Outcome
	// keepSubmitting leaves the machine in submitting, used while the
	// browser is handed to an external provider
	keepSubmitting bool
}

type step func(ctx context.Context) (stepResult, error)

// submit validates, enters submitting, runs fn and settles the machine.
// Loading is false on every return path, panics included.
func (c *Controller) submit(ctx context.Context, name Name, validate func() error, fn step) (out Outcome) {
	start := c.svc.now()

	if validate != nil {
		if err := validate(); err != nil {
			out = Outcome{Flow: name, State: c.machine.State(), FieldErrors: forms.Of(err), Cause: err}
			c.finish(out, start)
			return out
		}
	}

	if err := c.machine.Begin(); err != nil {
		c.svc.logger.Debug("submission rejected", "flow", name, "error", err)
		return Outcome{Flow: name, State: c.machine.State(), Cause: err}
	}

	defer func() {
		if r := recover(); r != nil {
			c.svc.logger.Error("flow panicked", "flow", name, "panic", r)
			_ = c.machine.Fail()
			cause := storefront.WrapError(fmt.Errorf("panic: %v", r), storefront.KindUnknown, storefront.GenericErrorMessage)
			out = Outcome{Flow: name, State: StateFailed, Error: storefront.GenericErrorMessage, Cause: cause}
		}
		out.Loading = false
		c.finish(out, start)
	}()

	res, err := fn(ctx)
	out = res.out
	out.Flow = name

	if err != nil {
		_ = c.machine.Fail()
		out.State = StateFailed
		out.Error = storefront.Describe(err)
		out.Cause = err
		c.svc.logger.Info("flow failed", "flow", name, "kind", storefront.KindOf(err), "error", out.Error)
		return out
	}

	if !res.keepSubmitting {
		_ = c.machine.Succeed()
	}
	out.State = c.machine.State()
	return out
}

func (c *Controller) finish(out Outcome, start time.Time) {
	c.svc.recorder.ObserveFlow(out.Flow, out.State, c.svc.now().Sub(start))
	c.svc.dump(out)
}

// SignIn exchanges the form credentials for a session.
func (c *Controller) SignIn(ctx context.Context, f forms.SignInForm) Outcome {
	return c.submit(ctx, FlowSignIn, f.Validate, func(ctx context.Context) (stepResult, error) {
		session, err := c.auth.SignInWithPassword(ctx, f.Email, f.Password)
		if err != nil {
			c.svc.record(ctx, storefront.ActivityEventSignInFailure, nil, f.Email, map[string]any{
				"kind": string(storefront.KindOf(err)),
			})
			return stepResult{}, err
		}
		c.svc.record(ctx, storefront.ActivityEventSignInSuccess, session.CurrentIdentity(), f.Email, map[string]any{
			"remember_me": f.RememberMe,
		})
		return stepResult{out: Outcome{Redirect: c.svc.routes.Home, Refresh: true}}, nil
	})
}

// SignUp registers the account described by the form.
func (c *Controller) SignUp(ctx context.Context, f forms.SignUpForm) Outcome {
	return c.submit(ctx, FlowSignUp, f.Validate, func(ctx context.Context) (stepResult, error) {
		result, err := c.auth.SignUp(ctx, supabase.SignUpParams{
			Email:           strings.TrimSpace(f.Email),
			Password:        f.Password,
			Data:            f.Metadata(),
			EmailRedirectTo: c.svc.callbackURL(""),
		})
		if err != nil {
			c.svc.record(ctx, storefront.ActivityEventSignUpFailure, nil, f.Email, map[string]any{
				"kind": string(storefront.KindOf(err)),
			})
			return stepResult{}, err
		}

		switch {
		case result.NeedsEmailConfirmation():
			c.svc.record(ctx, storefront.ActivityEventSignUp, result.User.Identity(), f.Email, map[string]any{
				"confirmation": "pending",
			})
			return stepResult{out: Outcome{Redirect: c.svc.routes.VerifyEmail}}, nil
		case result.Created():
			c.svc.record(ctx, storefront.ActivityEventSignUp, result.User.Identity(), f.Email, map[string]any{
				"confirmation": "not_required",
			})
			return stepResult{out: Outcome{Redirect: c.svc.routes.Callback}}, nil
		default:
			return stepResult{}, storefront.NewError(storefront.KindUnknown, MsgSignUpFailed)
		}
	})
}

// RequestPasswordReset asks for a recovery email.
func (c *Controller) RequestPasswordReset(ctx context.Context, f forms.ForgotPasswordForm) Outcome {
	return c.submit(ctx, FlowResetRequest, f.Validate, func(ctx context.Context) (stepResult, error) {
		redirectTo := c.svc.callbackURL(c.svc.routes.ResetPassword)
		if err := c.auth.ResetPasswordForEmail(ctx, f.Email, redirectTo); err != nil {
			return stepResult{}, err
		}
		c.svc.record(ctx, storefront.ActivityEventPasswordResetRequest, nil, f.Email, nil)
		return stepResult{out: Outcome{Panel: PanelCheckEmail}}, nil
	})
}

// TryAnotherEmail leaves the check-email panel for a blank reset form.
func (c *Controller) TryAnotherEmail() Outcome {
	if err := c.machine.Reset(); err != nil {
		c.svc.logger.Debug("reset ignored", "error", err)
	}
	return Outcome{Flow: FlowResetRequest, State: c.machine.State()}
}

// UpdatePassword sets a new password for the signed in user.
func (c *Controller) UpdatePassword(ctx context.Context, f forms.ResetPasswordForm) Outcome {
	return c.submit(ctx, FlowPasswordUpdate, f.Validate, func(ctx context.Context) (stepResult, error) {
		user, err := c.auth.UpdateUser(ctx, supabase.UserAttributes{Password: f.Password})
		if err != nil {
			return stepResult{}, err
		}
		c.svc.record(ctx, storefront.ActivityEventPasswordUpdated, user.Identity(), "", nil)
		return stepResult{out: Outcome{
			Redirect: WithQuery(c.svc.routes.SignIn, "message", MsgPasswordUpdated),
		}}, nil
	})
}

// ResendVerification sends the confirmation email again, to the session
// address or to the address of the pending sign up.
func (c *Controller) ResendVerification(ctx context.Context) Outcome {
	return c.submit(ctx, FlowResendVerification, nil, func(ctx context.Context) (stepResult, error) {
		email := c.knownEmail(ctx)
		if email == "" {
			return stepResult{}, ErrNoKnownEmail
		}

		err := c.auth.Resend(ctx, supabase.ResendParams{
			Type:       supabase.ResendSignup,
			Email:      email,
			RedirectTo: c.svc.callbackURL(""),
		})
		if err != nil {
			return stepResult{}, err
		}
		c.svc.record(ctx, storefront.ActivityEventVerificationResent, nil, email, nil)
		return stepResult{out: Outcome{Message: MsgVerificationResent}}, nil
	})
}

// KnownEmail returns the address the verify page should show.
func (c *Controller) KnownEmail(ctx context.Context) string {
	return c.knownEmail(ctx)
}

func (c *Controller) knownEmail(ctx context.Context) string {
	session, err := c.auth.GetSession(ctx)
	if err != nil {
		c.svc.logger.Warn("session lookup failed", "error", err)
	}
	if identity := session.CurrentIdentity(); identity != nil && identity.Email != "" {
		return identity.Email
	}
	return c.auth.PendingEmail()
}

// SignInWithOAuth hands the browser to the provider. The machine stays in
// submitting until the callback lands on a new request.
func (c *Controller) SignInWithOAuth(ctx context.Context, provider string) Outcome {
	p := supabase.Provider(strings.ToLower(strings.TrimSpace(provider)))
	return c.submit(ctx, FlowOAuth, nil, func(ctx context.Context) (stepResult, error) {
		target, err := c.auth.SignInWithOAuth(ctx, p, c.svc.callbackURL(""))
		if err != nil {
			return stepResult{}, err
		}
		c.svc.record(ctx, storefront.ActivityEventOAuthStarted, nil, "", map[string]any{
			"provider": string(p),
		})
		return stepResult{out: Outcome{Redirect: target}, keepSubmitting: true}, nil
	})
}

// CallbackParams are the query parameters of the auth callback.
type CallbackParams struct {
	Code             string `query:"code"`
	Error            string `query:"error"`
	ErrorDescription string `query:"error_description"`
	Next             string `query:"next"`
}

// Callback completes an OAuth, confirmation or recovery redirect.
func (c *Controller) Callback(ctx context.Context, p CallbackParams) Outcome {
	return c.submit(ctx, FlowCallback, nil, func(ctx context.Context) (stepResult, error) {
		if strings.TrimSpace(p.Error) != "" {
			desc := strings.TrimSpace(p.ErrorDescription)
			if desc == "" {
				desc = strings.TrimSpace(p.Error)
			}
			return stepResult{out: Outcome{Redirect: WithQuery(c.svc.routes.SignIn, "error", desc)}},
				storefront.NewError(storefront.KindUnauthorized, desc)
		}

		next := SafeNext(p.Next, c.svc.routes.Home)
		if p.Code == "" {
			return stepResult{out: Outcome{Redirect: next}}, nil
		}

		session, err := c.auth.ExchangeCodeForSession(ctx, p.Code)
		if err != nil {
			msg := storefront.Describe(err)
			return stepResult{out: Outcome{Redirect: WithQuery(c.svc.routes.SignIn, "error", msg)}}, err
		}

		identity := session.CurrentIdentity()
		provider := ""
		if identity != nil {
			provider = identity.Provider
		}
		c.svc.record(ctx, storefront.ActivityEventOAuthCallback, identity, "", map[string]any{
			"provider": provider,
			"next":     next,
		})
		return stepResult{out: Outcome{Redirect: next, Refresh: true}}, nil
	})
}
