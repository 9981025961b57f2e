package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/BradenHooton/cadmium/internal/services"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/go-chi/chi/v5/middleware"
)

// AdminGuard is the guard service as seen by the HTTP layer
type AdminGuard interface {
	Check(ctx context.Context, req services.GuardRequest) services.GuardDecision
	RecordFailedLogin(ctx context.Context, ip, path, handle string)
}

// AdminGuardConfig configures the privileged path middleware
type AdminGuardConfig struct {
	PathPrefix string // normalised, e.g. "/admin-x/"
	IPConfig   *pkghttp.IPConfig
	RetryAfter time.Duration // advertised on 429
	// DetectFromResponse classifies failed logins from the login response instead of
	// waiting for the handler's explicit failure event
	DetectFromResponse bool
	// Session resolves the caller once the guard has let the request through.
	// Defaults to the session already in the request context.
	Session func(*http.Request) *models.Session
}

// AdminGuardMiddleware enforces lockouts and the request-rate ceiling on every path
// under the privileged prefix. Other paths pass through untouched. It is meant to run
// before session loading, so blocked clients cost no session or account lookups.
func AdminGuardMiddleware(guard AdminGuard, config AdminGuardConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	resolve := config.Session
	if resolve == nil {
		resolve = auth.GetSessionFromContext
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, config.PathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			ip := pkghttp.ExtractClientIP(r, config.IPConfig)
			req := services.GuardRequest{IP: ip, Path: r.URL.Path}

			switch guard.Check(r.Context(), req) {
			case services.GuardBlocked:
				pkghttp.WriteForbidden(w, "Access temporarily blocked due to multiple failed login attempts")
				return
			case services.GuardRateLimited:
				if config.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(config.RetryAfter.Seconds())))
				}
				pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later")
				return
			case services.GuardUnavailable:
				pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
				return
			}

			var principal string
			if session := resolve(r); session != nil {
				principal = session.Username
				attrs := []any{
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
					slog.String("username", session.Username),
				}
				if session.CanManage() {
					logger.Info("privileged path access by staff", attrs...)
				} else {
					logger.Warn("privileged path access by non-staff account", attrs...)
				}
			}

			if !config.DetectFromResponse {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			if IsFailedLoginResponse(r, wrapped.Status(), wrapped.Header().Get("Location"), config.PathPrefix) {
				guard.RecordFailedLogin(context.WithoutCancel(r.Context()), ip, r.URL.Path, principal)
			}
		})
	}
}

// IsFailedLoginResponse classifies a finished privileged login request: a POST to
// <prefix>login/ answered with 401, or redirected back to a login page.
func IsFailedLoginResponse(r *http.Request, status int, location, prefix string) bool {
	if r.Method != http.MethodPost || r.URL.Path != prefix+"login/" {
		return false
	}
	if status == http.StatusUnauthorized {
		return true
	}
	return status >= 300 && status < 400 && strings.Contains(location, "/login/")
}
