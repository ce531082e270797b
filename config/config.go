// Package config loads the storefront configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const minSessionSecret = 32

// Config is the process configuration.
type Config struct {
	SupabaseURL           string        `env:"SUPABASE_URL,required,notEmpty"`
	SupabaseAnonKey       string        `env:"SUPABASE_ANON_KEY,required,notEmpty" json:"-"`
	SupabaseTimeout       time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"10s"`
	SupabaseRefreshMargin time.Duration `env:"SUPABASE_REFRESH_MARGIN" envDefault:"30s"`

	SiteURL         string        `env:"STOREFRONT_SITE_URL,required,notEmpty"`
	Addr            string        `env:"STOREFRONT_ADDR" envDefault:":8080"`
	Environment     string        `env:"STOREFRONT_ENV" envDefault:"production"`
	LogLevel        string        `env:"STOREFRONT_LOG_LEVEL" envDefault:"info"`
	Debug           bool          `env:"STOREFRONT_DEBUG" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"STOREFRONT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadTimeout     time.Duration `env:"STOREFRONT_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"STOREFRONT_WRITE_TIMEOUT" envDefault:"30s"`

	SessionSecret string        `env:"STOREFRONT_SESSION_SECRET,required,notEmpty" json:"-"`
	CookieName    string        `env:"STOREFRONT_COOKIE_NAME" envDefault:"sf_session"`
	CookieSecure  bool          `env:"STOREFRONT_COOKIE_SECURE" envDefault:"true"`
	SessionTTL    time.Duration `env:"STOREFRONT_SESSION_TTL" envDefault:"24h"`
	RememberTTL   time.Duration `env:"STOREFRONT_REMEMBER_TTL" envDefault:"720h"`
	CSRF          bool          `env:"STOREFRONT_CSRF" envDefault:"true"`

	RateLimit float64 `env:"STOREFRONT_RATE_LIMIT" envDefault:"1"`
	RateBurst int     `env:"STOREFRONT_RATE_BURST" envDefault:"5"`

	DatabaseDSN string `env:"STOREFRONT_DATABASE_DSN" envDefault:"file:storefront.db?cache=shared"`
	Seed        bool   `env:"STOREFRONT_SEED" envDefault:"false"`

	PhoneRegion string `env:"STOREFRONT_PHONE_REGION" envDefault:"US"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"SUPABASE_URL":        c.SupabaseURL,
		"STOREFRONT_SITE_URL": c.SiteURL,
	} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: %s must be an absolute URL", name)
		}
	}
	if len(c.SessionSecret) < minSessionSecret {
		return fmt.Errorf("config: STOREFRONT_SESSION_SECRET must be at least %d characters", minSessionSecret)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("config: read and write timeouts must not be negative")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("config: rate limit and burst must be positive")
	}
	return nil
}

func (c Config) GetSupabaseURL() string {
	return strings.TrimRight(c.SupabaseURL, "/")
}

func (c Config) GetSupabaseAnonKey() string {
	return c.SupabaseAnonKey
}

func (c Config) GetSupabaseTimeout() time.Duration {
	return c.SupabaseTimeout
}

func (c Config) GetSupabaseRefreshMargin() time.Duration {
	return c.SupabaseRefreshMargin
}

func (c Config) GetSiteURL() string {
	return strings.TrimRight(c.SiteURL, "/")
}

func (c Config) GetAddr() string {
	return c.Addr
}

// IsDevelopment reports whether STOREFRONT_ENV is development.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development") || strings.EqualFold(c.Environment, "dev")
}

func (c Config) GetLogLevel() string {
	return c.LogLevel
}

func (c Config) GetDebug() bool {
	return c.Debug
}

func (c Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout
}

func (c Config) GetReadTimeout() time.Duration {
	return c.ReadTimeout
}

func (c Config) GetWriteTimeout() time.Duration {
	return c.WriteTimeout
}

func (c Config) GetSessionSecret() string {
	return c.SessionSecret
}

func (c Config) GetCookieName() string {
	return c.CookieName
}

func (c Config) GetCookieSecure() bool {
	return c.CookieSecure
}

func (c Config) GetSessionTTL() time.Duration {
	return c.SessionTTL
}

func (c Config) GetRememberTTL() time.Duration {
	return c.RememberTTL
}

func (c Config) GetCSRF() bool {
	return c.CSRF
}

func (c Config) GetRateLimit() float64 {
	return c.RateLimit
}

func (c Config) GetRateBurst() int {
	return c.RateBurst
}

func (c Config) GetDatabaseDSN() string {
	return c.DatabaseDSN
}

func (c Config) GetSeed() bool {
	return c.Seed
}

func (c Config) GetPhoneRegion() string {
	return strings.ToUpper(c.PhoneRegion)
}
