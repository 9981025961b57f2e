package middleware

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/cadmium/internal/auth"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
)

// CSRFProtection validates the X-CSRF-Token header on state-changing requests made
// with a session. The token is the one issued with the session at login.
// Anonymous requests carry no ambient credentials and pass through.
func CSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			session := auth.GetSessionFromContext(r)
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			csrfToken := r.Header.Get(auth.CSRFHeader)
			if csrfToken == "" {
				logger.Warn("CSRF token missing in request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("account_id", session.AccountID))
				pkghttp.WriteForbidden(w, "CSRF token missing")
				return
			}

			if !auth.ValidCSRFToken(session, csrfToken) {
				logger.Warn("CSRF token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("account_id", session.AccountID))
				pkghttp.WriteForbidden(w, "CSRF token invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
