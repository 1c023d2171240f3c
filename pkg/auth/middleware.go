package auth

import (
	"log/slog"
	"net/http"
)

// Middleware creates HTTP middleware from a Chain. It checks the bypass
// list, runs authentication, and injects the identity into the request
// context.
func Middleware(chain *Chain, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				http.Error(w, `{"success":false,"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				http.Error(w, `{"success":false,"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				http.Error(w, `{"success":false,"error":"internal authentication error"}`, http.StatusInternalServerError)
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}
