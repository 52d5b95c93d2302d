package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/BradenHooton/donorguard/internal/services"
	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Window            time.Duration
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints (5 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 5,
		Window:            time.Minute,
	}
}

// AlertDispatcher receives alerts raised by middleware
type AlertDispatcher interface {
	DispatchAsync(alerts ...services.PendingAlert)
}

// RateLimitByIP limits requests per client IP. Rejections raise at most one
// rate_limit_exceeded alert per IP and window. alerts may be nil.
func RateLimitByIP(config RateLimitConfig, alerts AlertDispatcher, clock services.Clock) func(next http.Handler) http.Handler {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	limiter := &limitAlerter{alerts: alerts, clock: clock, window: config.Window, last: make(map[string]time.Time)}

	return httprate.Limit(
		config.RequestsPerMinute,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			limiter.raise(clientIP(r), r.URL.Path)
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

type limitAlerter struct {
	alerts AlertDispatcher
	clock  services.Clock
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func (l *limitAlerter) raise(ip, route string) {
	if l.alerts == nil {
		return
	}
	now := l.clock.Now()

	l.mu.Lock()
	if seen, ok := l.last[ip]; ok && now.Sub(seen) < l.window {
		l.mu.Unlock()
		return
	}
	l.last[ip] = now
	for k, seen := range l.last {
		if now.Sub(seen) >= l.window {
			delete(l.last, k)
		}
	}
	l.mu.Unlock()

	l.alerts.DispatchAsync(services.NewRateLimitExceededAlert(ip, route, now))
}
