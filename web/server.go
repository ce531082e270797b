package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/google/uuid"
)

// AppConfig selects the app wide middleware.
type AppConfig struct {
	Development  bool
	CSRF         bool
	CookieSecure bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer builds the fiber backed router and mounts the controller.
// Framework middleware and the metrics endpoint sit on the fiber app, the
// pages are router handlers.
func NewServer(ctl *Controller, cfg AppConfig) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               SiteName,
			Views:                 NewEngine(),
			ErrorHandler:          ctl.fiberErrHandler,
			ReadTimeout:           cfg.ReadTimeout,
			WriteTimeout:          cfg.WriteTimeout,
			PassLocalsToViews:     true,
			DisableStartupMessage: true,
		}))

		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Development}))
		app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

		if cfg.Development {
			app.Use(logger.New(logger.Config{
				Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			}))
		}

		if ctl.metrics != nil {
			app.Get(ctl.Routes.Metrics, adaptor.HTTPHandler(ctl.metrics))
		}

		if cfg.CSRF {
			app.Use(csrf.New(csrf.Config{
				KeyLookup:      "form:_csrf",
				CookieName:     "sf_csrf",
				CookieSameSite: "Lax",
				CookieSecure:   cfg.CookieSecure,
				CookieHTTPOnly: true,
				Expiration:     2 * time.Hour,
				ContextKey:     csrfContextKey,
				KeyGenerator:   uuid.NewString,
				ErrorHandler: func(c *fiber.Ctx, err error) error {
					ctl.Logger.Warn("csrf check failed", "path", c.Path(), "error", err)
					return fiber.NewError(fiber.StatusForbidden, "Your form expired. Please reload the page and try again.")
				},
			}))
		}
		return app
	})

	srv.Router().Use(mflash.New(mflash.ConfigDefault))
	ctl.Register(srv.Router())
	return srv
}
