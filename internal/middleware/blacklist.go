package middleware

import (
	"context"
	"log/slog"
	"net/http"

	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
)

// IPBlacklistChecker reports whether an address is actively blacklisted
type IPBlacklistChecker interface {
	IsIPBlacklisted(ctx context.Context, ip string) (bool, error)
}

// BlacklistGuard rejects requests from blacklisted IPs with 403. Lookup
// errors let the request through; the login pipeline runs its own check.
func BlacklistGuard(checker IPBlacklistChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			blacklisted, err := checker.IsIPBlacklisted(r.Context(), ip)
			if err != nil {
				logger.Warn("blacklist guard lookup failed", slog.String("client_ip", ip), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if blacklisted {
				pkghttp.WriteForbidden(w, "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
