// Package web serves the storefront pages through go-router on fiber.
package web

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/authstate"
	"github.com/goliatone/go-storefront/catalog"
	"github.com/goliatone/go-storefront/flow"
	"github.com/goliatone/go-storefront/supabase"
	"github.com/uptrace/bun"
)

const (
	localsSession  = "storefront.session"
	csrfContextKey = "csrf"
	redirectCookie = "sf_redirect"
)

// SessionClient hands out a session client bound to one cookie store.
type SessionClient interface {
	Auth(store supabase.SessionStore) *supabase.Auth
}

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Routes struct {
	Home           string
	Collection     string
	SignIn         string
	SignUp         string
	OAuth          string
	ForgotPassword string
	ResetPassword  string
	VerifyEmail    string
	Callback       string
	SignOut        string
	Account        string
	Metrics        string
	Health         string
}

type Views struct {
	Layout         string
	Home           string
	Collection     string
	SignIn         string
	SignUp         string
	ForgotPassword string
	ResetPassword  string
	VerifyEmail    string
	Account        string
	Error          string
}

// Controller owns the storefront routes.
type Controller struct {
	Debug        bool
	Logger       storefront.Logger
	Routes       *Routes
	Views        *Views
	ErrorHandler router.ErrorHandler

	flows       *flow.Service
	client      SessionClient
	codec       *Codec
	cookie      CookieOptions
	paintings   *catalog.Paintings
	orders      *catalog.Orders
	profiles    *catalog.Profiles
	pinger      Pinger
	limiter     *Limiter
	metrics     http.Handler
	sanitizer   *sanitizer
	phoneRegion string
	waitTimeout time.Duration
}

type ControllerOption func(*Controller) *Controller

// WithFlows sets the page flow service.
func WithFlows(svc *flow.Service) ControllerOption {
	return func(c *Controller) *Controller {
		c.flows = svc
		return c
	}
}

// WithSessionClient sets the auth service client.
func WithSessionClient(client SessionClient) ControllerOption {
	return func(c *Controller) *Controller {
		c.client = client
		return c
	}
}

// WithCookie sets the session cookie codec and attributes.
func WithCookie(codec *Codec, opts CookieOptions) ControllerOption {
	return func(c *Controller) *Controller {
		c.codec = codec
		c.cookie = opts.withDefaults()
		return c
	}
}

// WithCatalog wires the catalog repositories to db.
func WithCatalog(db *bun.DB) ControllerOption {
	return func(c *Controller) *Controller {
		c.paintings = catalog.NewPaintings(db)
		c.orders = catalog.NewOrders(db)
		c.profiles = catalog.NewProfiles(db)
		return c
	}
}

// WithPinger sets the health check target.
func WithPinger(p Pinger) ControllerOption {
	return func(c *Controller) *Controller {
		c.pinger = p
		return c
	}
}

// WithLimiter rate limits the auth form posts.
func WithLimiter(l *Limiter) ControllerOption {
	return func(c *Controller) *Controller {
		c.limiter = l
		return c
	}
}

// WithMetricsHandler exposes h on the metrics route.
func WithMetricsHandler(h http.Handler) ControllerOption {
	return func(c *Controller) *Controller {
		c.metrics = h
		return c
	}
}

// WithLogger sets the logger.
func WithLogger(logger storefront.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = storefront.NormalizeLogger(logger)
		return c
	}
}

// WithDebug dumps view data to the debug log.
func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// WithPhoneRegion sets the default region for profile phone numbers.
func WithPhoneRegion(region string) ControllerOption {
	return func(c *Controller) *Controller {
		c.phoneRegion = region
		return c
	}
}

// NewController builds the controller. It panics when a required
// collaborator is missing.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: storefront.NopLogger(),
		Routes: &Routes{
			Home:           "/",
			Collection:     "/collection",
			SignIn:         "/signin",
			SignUp:         "/signup",
			OAuth:          "/oauth/:provider",
			ForgotPassword: "/forgot-password",
			ResetPassword:  "/reset-password",
			VerifyEmail:    "/verify-email",
			Callback:       "/auth/callback",
			SignOut:        "/signout",
			Account:        "/account",
			Metrics:        "/metrics",
			Health:         "/healthz",
		},
		Views: &Views{
			Layout:         "layouts/main",
			Home:           "home",
			Collection:     "collection",
			SignIn:         "auth/signin",
			SignUp:         "auth/signup",
			ForgotPassword: "auth/forgot_password",
			ResetPassword:  "auth/reset_password",
			VerifyEmail:    "auth/verify_email",
			Account:        "account",
			Error:          "errors/error",
		},
		sanitizer:   newSanitizer(),
		phoneRegion: "US",
		waitTimeout: 15 * time.Second,
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	if c.flows == nil {
		panic("web: missing flow service in controller")
	}
	if c.client == nil {
		panic("web: missing session client in controller")
	}
	if c.codec == nil {
		panic("web: missing cookie codec in controller")
	}
	if c.paintings == nil {
		panic("web: missing catalog in controller")
	}

	return c
}

// Register mounts the page routes. Health skips the session middleware,
// auth form posts are rate limited.
func (a *Controller) Register(r RouteRegistrar) {
	session := a.Session()

	r.Get(a.Routes.Health, a.Health).SetName("health.get")

	r.Get(a.Routes.Home, a.HomeShow, session).SetName("home.get")
	r.Get(a.Routes.Collection, a.CollectionShow, session).SetName("collection.get")

	r.Get(a.Routes.SignIn, a.SignInShow, session).SetName("sign-in.get")
	r.Post(a.Routes.SignIn, a.SignInPost, a.limit(a.Routes.SignIn), session).SetName("sign-in.post")

	r.Get(a.Routes.SignUp, a.SignUpShow, session).SetName("sign-up.get")
	r.Post(a.Routes.SignUp, a.SignUpPost, a.limit(a.Routes.SignUp), session).SetName("sign-up.post")

	r.Post(a.Routes.OAuth, a.OAuthPost, a.limit(a.Routes.OAuth), session).SetName("oauth.post")

	r.Get(a.Routes.ForgotPassword, a.ForgotPasswordShow, session).SetName("pwd-forgot.get")
	r.Post(a.Routes.ForgotPassword, a.ForgotPasswordPost, a.limit(a.Routes.ForgotPassword), session).SetName("pwd-forgot.post")

	r.Get(a.Routes.ResetPassword, a.ResetPasswordShow, session).SetName("pwd-reset.get")
	r.Post(a.Routes.ResetPassword, a.ResetPasswordPost, a.limit(a.Routes.ResetPassword), session).SetName("pwd-reset.post")

	r.Get(a.Routes.VerifyEmail, a.VerifyEmailShow, session).SetName("verify-email.get")
	r.Post(a.Routes.VerifyEmail, a.VerifyEmailPost, a.limit(a.Routes.VerifyEmail), session).SetName("verify-email.post")

	r.Get(a.Routes.Callback, a.CallbackGet, session).SetName("auth-callback.get")
	r.Post(a.Routes.SignOut, a.SignOutPost, session).SetName("sign-out.post")

	r.Get(a.Routes.Account, a.AccountShow, session).SetName("account.get")
	r.Post(a.Routes.Account, a.AccountPost, session).SetName("account.post")
}

func (a *Controller) limit(route string) router.MiddlewareFunc {
	if a.limiter == nil {
		return func(next router.HandlerFunc) router.HandlerFunc { return next }
	}
	return a.limiter.Middleware(route, func(ctx router.Context) error {
		return a.renderBare(ctx, fiber.StatusTooManyRequests, MsgTooManyRequests)
	})
}

// requestSession is the per request session state.
type requestSession struct {
	store *CookieStore
	auth  *supabase.Auth
	state *authstate.Store
}

// Session builds the cookie store, session client and auth state for the
// request, and writes the cookie back once the handler returns.
func (a *Controller) Session() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			store := NewCookieStore(a.codec, a.cookie, ctx.Cookies(a.cookie.Name))
			auth := a.client.Auth(store)
			state := authstate.New(auth, authstate.WithLogger(a.Logger))

			std := ctx.Context()
			state.Start(std)
			defer state.Close()

			ctx.SetContext(authstate.WithStore(std, state))
			ctx.Locals(localsSession, &requestSession{store: store, auth: auth, state: state})

			err := next(ctx)

			// a refresh started by the initial load must land in the cookie
			a.wait(std, state)
			if ferr := store.Flush(ctx); ferr != nil {
				a.Logger.Error("session cookie write failed", "error", ferr)
			}
			return err
		}
	}
}

func (a *Controller) wait(ctx context.Context, state *authstate.Store) {
	ctx, cancel := context.WithTimeout(ctx, a.waitTimeout)
	defer cancel()
	if err := state.Wait(ctx); err != nil {
		a.Logger.Warn("auth state not ready", "error", err)
	}
}

func (a *Controller) session(ctx router.Context) *requestSession {
	rs, _ := ctx.Locals(localsSession).(*requestSession)
	if rs == nil {
		panic("web: handler mounted without the session middleware")
	}
	return rs
}

func (a *Controller) flowsFor(ctx router.Context) *flow.Controller {
	return a.flows.Controller(a.session(ctx).auth)
}

// identity waits for the initial session and returns the signed in
// identity or nil.
func (a *Controller) identity(ctx router.Context) *storefront.Identity {
	store, err := authstate.FromContext(ctx.Context())
	if err != nil {
		a.Logger.Error("identity lookup", "error", err)
		return nil
	}
	a.wait(ctx.Context(), store)
	return store.Identity()
}

func (a *Controller) baseView(ctx router.Context, title string) router.ViewContext {
	bind := TemplateHelpers()
	bind["title"] = PageTitle(title)
	bind["site_name"] = SiteName
	bind["description"] = SiteDescription
	bind["routes"] = a.Routes
	bind["csrf_token"] = ctx.Locals(csrfContextKey)
	return bind
}

func (a *Controller) render(ctx router.Context, view, title string, data router.ViewContext) error {
	bind := a.baseView(ctx, title)
	if _, ok := data[TemplateUserKey]; !ok {
		bind[TemplateUserKey] = a.identity(ctx)
	}
	maps.Copy(bind, data)

	if a.Debug {
		a.Logger.Debug("render", "view", view, "data", print.MaybePrettyJSON(data))
	}

	return ctx.Render(view, bind, a.Views.Layout)
}

// renderFailure re-renders view with the outcome's errors and records the
// failure as an error flash.
func (a *Controller) renderFailure(ctx router.Context, view, title string, status int, data router.ViewContext) error {
	message, _ := data["error"].(string)
	flash.WithError(ctx, router.ViewContext{
		"error_message":  message,
		"system_message": title,
	})
	ctx.Status(status)
	return a.render(ctx, view, title, data)
}

// renderBare renders the error page without touching the session, which
// may not exist when it runs.
func (a *Controller) renderBare(ctx router.Context, status int, message string) error {
	bind := a.baseView(ctx, "Error")
	bind["status"] = status
	bind["message"] = message
	return ctx.Status(status).Render(a.Views.Error, bind, a.Views.Layout)
}

// defaultErrHandler renders handler failures on the error page. The status
// comes from the go-errors code when the error carries one.
func (a *Controller) defaultErrHandler(ctx router.Context, err error) error {
	status := fiber.StatusInternalServerError
	message := storefront.GenericErrorMessage

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code >= 400 && richErr.Code < 500 {
		status = richErr.Code
		message = storefront.Describe(richErr)
	}

	a.Logger.Error("request failed", "path", ctx.Path(), "status", status, "error", err)
	return a.renderBare(ctx, status, message)
}

// fiberErrHandler handles errors raised below the router, such as CSRF
// rejections and unknown routes.
func (a *Controller) fiberErrHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := storefront.GenericErrorMessage

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}

	a.Logger.Error("request failed", "path", c.Path(), "status", status, "error", err)

	bind := TemplateHelpers()
	bind["title"] = PageTitle("Error")
	bind["site_name"] = SiteName
	bind["description"] = SiteDescription
	bind["routes"] = a.Routes
	bind["status"] = status
	bind["message"] = message

	c.Status(status)
	if rerr := c.Render(a.Views.Error, map[string]any(bind), a.Views.Layout); rerr != nil {
		return c.SendString(message)
	}
	return nil
}

// statusFor maps a failed outcome to a response status.
func statusFor(out flow.Outcome) int {
	if len(out.FieldErrors) > 0 {
		return fiber.StatusUnprocessableEntity
	}
	if out.Error == "" {
		return fiber.StatusOK
	}
	switch storefront.KindOf(out.Cause) {
	case storefront.KindValidation:
		return fiber.StatusUnprocessableEntity
	case storefront.KindUnauthorized:
		return fiber.StatusUnauthorized
	case storefront.KindRateLimited:
		return fiber.StatusTooManyRequests
	case storefront.KindNetwork:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func outcomeData(out flow.Outcome) router.ViewContext {
	return router.ViewContext{
		"errors":  out.FieldErrors,
		"error":   out.Error,
		"message": out.Message,
		"loading": out.Loading,
		"panel":   out.Panel,
	}
}

// setRedirect remembers the page an anonymous visitor was sent away from.
func (a *Controller) setRedirect(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     redirectCookie,
		Value:    ctx.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: "Lax",
	})
}

// popRedirect returns the remembered page, or def, and clears it.
func (a *Controller) popRedirect(ctx router.Context, def string) string {
	r := ctx.Cookies(redirectCookie)
	if r == "" {
		return def
	}
	ctx.Cookie(&router.Cookie{
		Name:     redirectCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: "Lax",
	})
	return flow.SafeNext(r, def)
}
