package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/config"
	"github.com/goliatone/go-storefront/flow"
	"github.com/goliatone/go-storefront/metrics"
	"github.com/goliatone/go-storefront/storage"
	"github.com/goliatone/go-storefront/supabase"
	"github.com/goliatone/go-storefront/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

type App struct {
	config    *config.Config
	logger    storefront.Logger
	storage   *storage.Storage
	registry  *prometheus.Registry
	collector *metrics.Collector
	client    *supabase.Client
	flows     *flow.Service
	limiter   *web.Limiter
	srv       router.Server[*fiber.App]
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storefront:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, zl, err := storefront.NewLogger(cfg.GetLogLevel(), cfg.IsDevelopment())
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	if cfg.GetDebug() {
		fmt.Println(print.MaybePrettyJSON(cfg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{config: cfg, logger: logger}

	if err := WithPersistence(ctx, app); err != nil {
		return err
	}
	defer app.storage.Close()

	WithMetrics(app)

	if err := WithAuth(app); err != nil {
		return err
	}

	if err := WithHTTPServer(app); err != nil {
		return err
	}
	defer app.limiter.Stop()

	return Serve(ctx, app)
}

func WithPersistence(ctx context.Context, app *App) error {
	st, err := storage.Open(ctx, storage.Options{
		DSN:    app.config.GetDatabaseDSN(),
		Logger: app.logger,
		Debug:  app.config.GetDebug(),
	})
	if err != nil {
		return err
	}
	app.storage = st

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if app.config.GetSeed() {
		n, err := st.Seed(ctx)
		if err != nil {
			return err
		}
		app.logger.Info("catalog seeded", "paintings", n)
	}
	return nil
}

func WithMetrics(app *App) {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.collector = metrics.NewCollector(app.registry)
}

func WithAuth(app *App) error {
	client, err := supabase.New(supabase.Config{
		URL:           app.config.GetSupabaseURL(),
		AnonKey:       app.config.GetSupabaseAnonKey(),
		Timeout:       app.config.GetSupabaseTimeout(),
		RefreshMargin: app.config.GetSupabaseRefreshMargin(),
	},
		supabase.WithLogger(app.logger),
		supabase.WithObserver(app.collector),
	)
	if err != nil {
		return err
	}
	app.client = client

	flows, err := flow.NewService(app.config.GetSiteURL(),
		flow.WithLogger(app.logger),
		flow.WithRecorder(app.collector),
		flow.WithActivitySink(storefront.LogActivitySink(app.logger)),
		flow.WithDebug(app.config.GetDebug()),
	)
	if err != nil {
		return err
	}
	app.flows = flows
	return nil
}

func WithHTTPServer(app *App) error {
	codec, err := web.NewCodec(app.config.GetSessionSecret())
	if err != nil {
		return err
	}

	app.limiter = web.NewLimiter(web.LimiterConfig{
		Rate:      rate.Limit(app.config.GetRateLimit()),
		Burst:     app.config.GetRateBurst(),
		OnLimited: app.collector.RateLimited,
	})

	ctl := web.NewController(
		web.WithLogger(app.logger),
		web.WithDebug(app.config.GetDebug()),
		web.WithFlows(app.flows),
		web.WithSessionClient(app.client),
		web.WithCookie(codec, web.CookieOptions{
			Name:        app.config.GetCookieName(),
			Secure:      app.config.GetCookieSecure(),
			TTL:         app.config.GetSessionTTL(),
			RememberTTL: app.config.GetRememberTTL(),
		}),
		web.WithCatalog(app.storage.DB()),
		web.WithPinger(app.storage.DB()),
		web.WithLimiter(app.limiter),
		web.WithPhoneRegion(app.config.GetPhoneRegion()),
		web.WithMetricsHandler(metrics.Handler(app.registry)),
	)

	app.srv = web.NewServer(ctl, web.AppConfig{
		Development:  app.config.IsDevelopment(),
		CSRF:         app.config.GetCSRF(),
		CookieSecure: app.config.GetCookieSecure(),
		ReadTimeout:  app.config.GetReadTimeout(),
		WriteTimeout: app.config.GetWriteTimeout(),
	})
	return nil
}

// Serve blocks until ctx is cancelled or the listener fails.
func Serve(ctx context.Context, app *App) error {
	errc := make(chan error, 1)
	go func() {
		app.logger.Info("storefront listening", "addr", app.config.GetAddr())
		errc <- app.srv.Serve(app.config.GetAddr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.GetShutdownTimeout())
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
