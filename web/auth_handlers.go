package web

import (
	"net/http"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/goliatone/go-storefront/flow"
	"github.com/goliatone/go-storefront/forms"
)

const (
	actionRetry     = "retry"
	msgUnreadable   = "Failed to parse form"
	msgSignInToView = "Please sign in to view your account"
	msgSignedOut    = "You have been signed out"
)

func (a *Controller) bindError(ctx router.Context, view, title string, record any, err error) error {
	a.Logger.Warn("parse form payload", "path", ctx.Path(), "error", err)
	return a.renderFailure(ctx, view, title, router.StatusBadRequest, router.ViewContext{
		"record": record,
		"error":  msgUnreadable,
	})
}

// redirect sends the browser on with 303 after a POST and 302 otherwise.
func redirect(ctx router.Context, to string) error {
	status := http.StatusFound
	if ctx.Method() == http.MethodPost {
		status = router.StatusSeeOther
	}
	return ctx.Redirect(to, status)
}

func (a *Controller) SignInShow(ctx router.Context) error {
	if a.identity(ctx) != nil {
		return redirect(ctx, a.Routes.Home)
	}
	return a.render(ctx, a.Views.SignIn, "Sign In", router.ViewContext{
		"record":  forms.SignInForm{},
		"message": a.sanitizer.Banner(ctx.Query("message", "")),
		"error":   a.sanitizer.Banner(ctx.Query("error", "")),
	})
}

func (a *Controller) SignInPost(ctx router.Context) error {
	payload := new(forms.SignInForm)
	if err := ctx.Bind(payload); err != nil {
		return a.bindError(ctx, a.Views.SignIn, "Sign In", payload, err)
	}

	rs := a.session(ctx)
	out := a.flowsFor(ctx).SignIn(ctx.Context(), *payload)
	if out.Failed() {
		payload.Password = ""
		data := outcomeData(out)
		data["record"] = payload
		return a.renderFailure(ctx, a.Views.SignIn, "Sign In", statusFor(out), data)
	}

	rs.store.Remember(payload.RememberMe)
	return redirect(ctx, a.popRedirect(ctx, out.Redirect))
}

func (a *Controller) SignUpShow(ctx router.Context) error {
	if a.identity(ctx) != nil {
		return redirect(ctx, a.Routes.Home)
	}
	return a.render(ctx, a.Views.SignUp, "Create Account", router.ViewContext{
		"record": forms.SignUpForm{},
	})
}

func (a *Controller) SignUpPost(ctx router.Context) error {
	payload := new(forms.SignUpForm)
	if err := ctx.Bind(payload); err != nil {
		return a.bindError(ctx, a.Views.SignUp, "Create Account", payload, err)
	}

	out := a.flowsFor(ctx).SignUp(ctx.Context(), *payload)
	if out.Failed() {
		payload.Password, payload.ConfirmPassword = "", ""
		data := outcomeData(out)
		data["record"] = payload
		return a.renderFailure(ctx, a.Views.SignUp, "Create Account", statusFor(out), data)
	}
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": out.Message,
	}).Redirect(out.Redirect, router.StatusSeeOther)
}

// OAuthPost sends the browser to the provider consent page.
func (a *Controller) OAuthPost(ctx router.Context) error {
	out := a.flowsFor(ctx).SignInWithOAuth(ctx.Context(), ctx.Param("provider"))
	if out.Failed() {
		return redirect(ctx, flow.WithQuery(a.Routes.SignIn, "error", out.Error))
	}
	return redirect(ctx, out.Redirect)
}

func (a *Controller) ForgotPasswordShow(ctx router.Context) error {
	return a.render(ctx, a.Views.ForgotPassword, "Reset Password", router.ViewContext{
		"record": forms.ForgotPasswordForm{},
	})
}

// ForgotPasswordPost requests the recovery email, or returns to a blank form
// when the visitor wants to try another address.
func (a *Controller) ForgotPasswordPost(ctx router.Context) error {
	ctl := a.flowsFor(ctx)
	if ctx.FormValue("action") == actionRetry {
		out := ctl.TryAnotherEmail()
		data := outcomeData(out)
		data["record"] = forms.ForgotPasswordForm{}
		return a.render(ctx, a.Views.ForgotPassword, "Reset Password", data)
	}

	payload := new(forms.ForgotPasswordForm)
	if err := ctx.Bind(payload); err != nil {
		return a.bindError(ctx, a.Views.ForgotPassword, "Reset Password", payload, err)
	}

	out := ctl.RequestPasswordReset(ctx.Context(), *payload)
	data := outcomeData(out)
	data["record"] = payload
	if out.Failed() {
		return a.renderFailure(ctx, a.Views.ForgotPassword, "Reset Password", statusFor(out), data)
	}
	return a.render(ctx, a.Views.ForgotPassword, "Reset Password", data)
}

func (a *Controller) ResetPasswordShow(ctx router.Context) error {
	return a.render(ctx, a.Views.ResetPassword, "Set New Password", router.ViewContext{
		"error": a.sanitizer.Banner(ctx.Query("error", "")),
	})
}

func (a *Controller) ResetPasswordPost(ctx router.Context) error {
	payload := new(forms.ResetPasswordForm)
	if err := ctx.Bind(payload); err != nil {
		return a.bindError(ctx, a.Views.ResetPassword, "Set New Password", nil, err)
	}

	out := a.flowsFor(ctx).UpdatePassword(ctx.Context(), *payload)
	if out.Failed() {
		return a.renderFailure(ctx, a.Views.ResetPassword, "Set New Password", statusFor(out), outcomeData(out))
	}
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": out.Message,
	}).Redirect(out.Redirect, router.StatusSeeOther)
}

func (a *Controller) VerifyEmailShow(ctx router.Context) error {
	return a.render(ctx, a.Views.VerifyEmail, "Verify Email", router.ViewContext{
		"email": a.flowsFor(ctx).KnownEmail(ctx.Context()),
	})
}

func (a *Controller) VerifyEmailPost(ctx router.Context) error {
	ctl := a.flowsFor(ctx)
	out := ctl.ResendVerification(ctx.Context())
	data := outcomeData(out)
	data["email"] = ctl.KnownEmail(ctx.Context())
	if out.Failed() {
		return a.renderFailure(ctx, a.Views.VerifyEmail, "Verify Email", statusFor(out), data)
	}
	return a.render(ctx, a.Views.VerifyEmail, "Verify Email", data)
}

// CallbackGet completes OAuth, email confirmation and recovery links.
func (a *Controller) CallbackGet(ctx router.Context) error {
	params := new(flow.CallbackParams)
	if err := ctx.BindQuery(params); err != nil {
		a.Logger.Warn("parse callback query", "error", err)
		return redirect(ctx, flow.WithQuery(a.Routes.SignIn, "error", msgUnreadable))
	}

	out := a.flowsFor(ctx).Callback(ctx.Context(), *params)
	if out.Failed() {
		a.Logger.Info("auth callback failed", "error", out.Error)
	}
	if out.Redirect == "" {
		return redirect(ctx, flow.WithQuery(a.Routes.SignIn, "error", out.Error))
	}
	return redirect(ctx, out.Redirect)
}

// SignOutPost ends the session. Failures are logged by the auth state.
func (a *Controller) SignOutPost(ctx router.Context) error {
	a.session(ctx).state.SignOut(ctx.Context())
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": msgSignedOut,
	}).Redirect(a.Routes.Home, router.StatusSeeOther)
}
