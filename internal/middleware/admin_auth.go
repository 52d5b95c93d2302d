package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	pkghttp "github.com/BradenHooton/donorguard/pkg/http"
)

// AdminKeyHeader carries the admin API key
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey authenticates admin routes against the configured id to key
// map. The key may be sent in X-Admin-Key or as a Bearer token.
func RequireAdminKey(keys map[string]string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminKeyHeader)
			if presented == "" {
				if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
					presented = strings.TrimSpace(token)
				}
			}
			if presented == "" {
				pkghttp.WriteUnauthorized(w, "Missing admin credentials")
				return
			}

			adminID, ok := matchAdminKey(keys, presented)
			if !ok {
				logger.Warn("admin key rejected",
					slog.String("client_ip", clientIP(r)),
					slog.String("path", r.URL.Path))
				pkghttp.WriteUnauthorized(w, "Invalid admin credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminIDKey, adminID)))
		})
	}
}

// matchAdminKey compares against every key so timing does not reveal which one matched.
func matchAdminKey(keys map[string]string, presented string) (string, bool) {
	var matched string
	for id, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			matched = id
		}
	}
	return matched, matched != ""
}

// AdminIDFromContext returns the authenticated admin id, or "" outside admin routes.
func AdminIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(adminIDKey).(string)
	return id
}
