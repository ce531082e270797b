package supabase

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-storefront"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRefreshMargin = 30 * time.Second
)

// Config holds the connection settings for the hosted auth service.
type Config struct {
	// URL is the project endpoint, e.g. https://xyz.supabase.co
	URL string
	// AnonKey is the public API key sent with every request.
	AnonKey string
	// Timeout bounds every request. Default: 10s.
	Timeout time.Duration
	// RefreshMargin refreshes sessions expiring within this window. Default: 30s.
	RefreshMargin time.Duration
}

func (c Config) baseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.URL), "/")
}

// Observer receives timing for every remote call. kind is empty on success.
type Observer interface {
	ObserveRequest(operation string, kind storefront.Kind, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, storefront.Kind, time.Duration) {}

// Option customizes the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger storefront.Logger) Option {
	return func(c *Client) {
		c.logger = storefront.NormalizeLogger(logger)
	}
}

// WithObserver sets the request observer, used for metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
