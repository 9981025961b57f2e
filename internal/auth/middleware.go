package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/cadmium/internal/models"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing the session in context
	SessionContextKey contextKey = "session"
)

// ChangePasswordPath is where a principal with a pending forced change is sent
const ChangePasswordPath = "/change-password"

// LoadSession resolves the session cookie, if any, and injects the session into context.
// Requests without a valid session continue anonymously.
func LoadSession(sm *SessionManager, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := GetSessionCookie(r)
			if err != nil || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sm.Load(r.Context(), token)
			if err != nil {
				// The cookie survives store outages; only a dead session clears it
				if errors.Is(err, models.ErrSessionExpired) || errors.Is(err, models.ErrUnauthorized) {
					ClearSessionCookie(w, cookies)
				} else {
					logger.Error("failed to load session", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := sm.Touch(r.Context(), session); err != nil {
				logger.Warn("failed to refresh session activity", slog.String("session_id", session.ID), slog.Any("error", err))
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// SessionResolver loads the request's session on demand for middleware that runs
// ahead of LoadSession. Activity is not refreshed and any failure reads as anonymous.
func SessionResolver(sm *SessionManager) func(*http.Request) *models.Session {
	return func(r *http.Request) *models.Session {
		if session := GetSessionFromContext(r); session != nil {
			return session
		}
		token, err := GetSessionCookie(r)
		if err != nil || token == "" {
			return nil
		}
		session, err := sm.Load(r.Context(), token)
		if err != nil {
			return nil
		}
		return session
	}
}

// LoginPath is where anonymous requests for session-only pages are sent
const LoginPath = "/login"

// RequireSession rejects anonymous requests and points them at the login form
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSessionFromContext(r) == nil {
			pkghttp.WriteErrorWithRedirect(w, http.StatusUnauthorized, "unauthorized", "Authentication required", LoginPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdministrator allows administrators and superusers only
func RequireAdministrator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r)
		if session == nil {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !session.CanManage() {
			pkghttp.WriteForbidden(w, "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCollaborator allows accounts holding the collaborator role only
func RequireCollaborator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r)
		if session == nil {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !session.IsCollaborator {
			pkghttp.WriteForbidden(w, "Collaborator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePasswordChanged blocks every route behind it while a forced password change is pending
func RequirePasswordChanged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r)
		if session != nil && session.MustChangePassword {
			pkghttp.WriteErrorWithRedirect(w, http.StatusForbidden, "password_change_required",
				"You must change your password before continuing", ChangePasswordPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSession returns a copy of ctx carrying session
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, session)
}

// GetSessionFromContext extracts the session from request context
func GetSessionFromContext(r *http.Request) *models.Session {
	session, ok := r.Context().Value(SessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
