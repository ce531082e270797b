package web

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

// MsgTooManyRequests is shown when a client exceeds the auth rate limit.
const MsgTooManyRequests = "Too many requests. Please try again later."

// LimiterConfig configures the per client auth limiter.
type LimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
	// OnLimited is called with the route of every rejected request.
	OnLimited func(route string)
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	if c.Rate <= 0 {
		c.Rate = rate.Limit(1)
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.OnLimited == nil {
		c.OnLimited = func(string) {}
	}
	return c
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter is a token bucket per client IP. Idle buckets are swept in the
// background until Stop.
type Limiter struct {
	config  LimiterConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
	stopCh  chan struct{}
	stop    sync.Once
}

// NewLimiter starts a limiter and its cleanup loop.
func NewLimiter(config LimiterConfig) *Limiter {
	l := &Limiter{
		config:  config.withDefaults(),
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup loop.
func (l *Limiter) Stop() {
	l.stop.Do(func() { close(l.stopCh) })
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.config.Rate, l.config.Burst)}
		l.clients[key] = cl
	}
	cl.lastAccess = l.now()
	l.mu.Unlock()

	return cl.limiter.Allow()
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects requests over the limit with 429. onLimited renders
// the rejection; the default sends the plain message.
func (l *Limiter) Middleware(route string, onLimited router.HandlerFunc) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if l.Allow(ctx.IP()) {
				return next(ctx)
			}

			l.config.OnLimited(route)
			ctx.SetHeader("Retry-After", strconv.Itoa(l.retryAfter()))
			ctx.Status(http.StatusTooManyRequests)
			if onLimited != nil {
				return onLimited(ctx)
			}
			return ctx.SendString(MsgTooManyRequests)
		}
	}
}

// retryAfter is the number of seconds until one token is refilled.
func (l *Limiter) retryAfter() int {
	secs := int(math.Ceil(1.0 / float64(l.config.Rate)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle for more than two cleanup intervals.
func (l *Limiter) cleanup() {
	ttl := l.config.CleanupInterval * 2
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, cl := range l.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(l.clients, key)
		}
	}
}
