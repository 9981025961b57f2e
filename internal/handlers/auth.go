package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/BradenHooton/cadmium/internal/services"
	pkgauth "github.com/BradenHooton/cadmium/pkg/auth"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgAccountDisabled    = "This account has been disabled"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	AttemptLogin(ctx context.Context, attempt services.LoginAttempt, current *models.Account) (*services.LoginResult, error)
	ChangePassword(ctx context.Context, accountID, currentSecret, newSecret, confirmSecret string) error
}

// SessionStore creates and ends sessions
type SessionStore interface {
	Create(ctx context.Context, account *models.Account, accountType models.AccountType) (*models.Session, string, error)
	Destroy(ctx context.Context, sid string) error
}

// AuthHandlerConfig holds the HTTP-level knobs of the login surface
type AuthHandlerConfig struct {
	Cookies  auth.CookieConfig
	IPConfig *pkghttp.IPConfig
	// RevealDisabled reports disabled accounts with their own message instead of
	// the generic invalid-credentials one
	RevealDisabled bool
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionStore
	failures services.LoginFailureObserver
	audit    services.AuditRecorder
	config   AuthHandlerConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. failures receives failed privileged
// logins and may be nil when the guard classifies responses itself.
func NewAuthHandler(
	service AuthServiceInterface,
	sessions SessionStore,
	failures services.LoginFailureObserver,
	audit services.AuditRecorder,
	config AuthHandlerConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		failures: failures,
		audit:    audit,
		config:   config,
		logger:   logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	AccountType string `json:"account_type"`
	Username    string `json:"username" validate:"max=150"`
	Password    string `json:"password" validate:"max=256"`
	Next        string `json:"next" validate:"max=2048"`
}

// LoginResponse tells the client where to go and how to sign state-changing requests
type LoginResponse struct {
	Destination        string `json:"destination"`
	AccountType        string `json:"account_type"`
	Username           string `json:"username"`
	MustChangePassword bool   `json:"must_change_password"`
	CSRFToken          string `json:"csrf_token"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// PasswordChangeStatus is returned by GET /change-password
type PasswordChangeStatus struct {
	Username           string   `json:"username"`
	MustChangePassword bool     `json:"must_change_password"`
	Policy             []string `json:"policy"`
}

var passwordPolicy = []string{
	"at least 8 characters",
	"at most 72 bytes",
	"not entirely numeric",
	"not a commonly used password",
	"not too similar to your username, name or email",
}

// Login handles the public staff login
//
// @Summary Staff login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, false)
}

// PrivilegedLogin handles the login form under the privileged prefix. Only
// management access is possible there and failures feed the brute-force guard.
func (h *AuthHandler) PrivilegedLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, true)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, privileged bool) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if privileged {
		req.AccountType = string(models.AccountTypeManagement)
	}

	ip := pkghttp.ExtractClientIP(r, h.config.IPConfig)
	attempt := services.LoginAttempt{
		AccountType: req.AccountType,
		Handle:      strings.TrimSpace(req.Username),
		Secret:      req.Password,
		Next:        req.Next,
		IPAddress:   ip,
		UserAgent:   r.UserAgent(),
	}

	session := auth.GetSessionFromContext(r)
	var current *models.Account
	if session != nil {
		current = session.Principal()
	}

	result, err := h.service.AttemptLogin(r.Context(), attempt, current)
	if err != nil {
		if privileged && h.failures != nil && services.CountsAsFailedLogin(err) {
			h.failures.LoginFailed(context.WithoutCancel(r.Context()), services.LoginFailure{
				IP:     ip,
				Path:   r.URL.Path,
				Handle: attempt.Handle,
				Reason: err,
			})
		}
		h.writeLoginError(w, err, privileged)
		return
	}

	if result.Rerouted {
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Destination:        result.Destination,
			AccountType:        string(session.AccountType),
			Username:           result.Account.Username,
			MustChangePassword: result.Account.MustChangePassword,
			CSRFToken:          session.CSRFToken,
		})
		return
	}

	// The previous principal was rejected on reload and must not outlive the new login
	if session != nil {
		if err := h.sessions.Destroy(r.Context(), session.ID); err != nil {
			h.logger.Error("failed to destroy stale session", slog.String("session_id", session.ID), slog.Any("error", err))
		}
	}

	created, token, err := h.sessions.Create(r.Context(), result.Account, result.AccountType)
	if err != nil {
		h.logger.Error("failed to create session", slog.String("account_id", result.Account.ID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	auth.SetSessionCookie(w, token, created.ExpiresAt, h.config.Cookies)

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Destination:        result.Destination,
		AccountType:        string(result.AccountType),
		Username:           result.Account.Username,
		MustChangePassword: result.Account.MustChangePassword,
		CSRFToken:          created.CSRFToken,
	})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error, privileged bool) {
	switch {
	case errors.Is(err, models.ErrMissingSelection):
		pkghttp.WriteError(w, http.StatusBadRequest, "missing_selection", "Select an account type")
	case errors.Is(err, models.ErrMissingCredentials):
		// Empty submissions on the privileged form count as failures and answer like one
		if privileged {
			pkghttp.WriteUnauthorized(w, "Username and password are required")
			return
		}
		pkghttp.WriteError(w, http.StatusBadRequest, "missing_credentials", "Username and password are required")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, msgInvalidCredentials)
	case errors.Is(err, models.ErrAccountDisabled):
		if h.config.RevealDisabled {
			pkghttp.WriteError(w, http.StatusUnauthorized, "account_disabled", msgAccountDisabled)
			return
		}
		pkghttp.WriteUnauthorized(w, msgInvalidCredentials)
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Logout ends the current session, if any
//
// @Summary Logout
// @Success 204
// @Router /logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := auth.GetSessionFromContext(r); session != nil {
		if err := h.sessions.Destroy(r.Context(), session.ID); err != nil {
			h.logger.Error("failed to destroy session", slog.String("session_id", session.ID), slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		h.audit.Record(r.Context(), services.AuditEntry{
			ActorID:        session.AccountID,
			Action:         models.AuditActionLogout,
			Module:         models.AuditModuleAuth,
			AffectedObject: session.Username,
			Description:    "logout",
			IPAddress:      pkghttp.ExtractClientIP(r, h.config.IPConfig),
		})
	}

	auth.ClearSessionCookie(w, h.config.Cookies)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePasswordStatus describes the pending password change for the session principal.
// Served behind auth.RequireSession.
func (h *AuthHandler) ChangePasswordStatus(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)

	pkghttp.WriteJSON(w, http.StatusOK, PasswordChangeStatus{
		Username:           session.Username,
		MustChangePassword: session.MustChangePassword,
		Policy:             passwordPolicy,
	})
}

// ChangePassword replaces the caller's password and ends the session
//
// @Summary Change own password
// @Accept json
// @Param request body ChangePasswordRequest true "Change password request"
// @Produce json
// @Success 200
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ChangePassword(r.Context(), session.AccountID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		var policyErr *pkgauth.PasswordValidationError
		switch {
		case errors.Is(err, models.ErrWrongCurrentPassword):
			pkghttp.WriteError(w, http.StatusBadRequest, "wrong_current_password", "Current password is incorrect")
		case errors.Is(err, models.ErrConfirmationMismatch):
			pkghttp.WriteError(w, http.StatusBadRequest, "confirmation_mismatch", "Password confirmation does not match")
		case errors.Is(err, models.ErrMustDiffer):
			pkghttp.WriteError(w, http.StatusBadRequest, "must_differ", "New password must differ from the current one")
		case errors.As(err, &policyErr):
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
				"Password does not meet the strength policy", strings.Join(policyErr.Errors, "; "))
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteError(w, http.StatusBadRequest, "weak_password", "Password does not meet the strength policy")
		case errors.Is(err, models.ErrNotFound):
			_ = h.sessions.Destroy(r.Context(), session.ID)
			auth.ClearSessionCookie(w, h.config.Cookies)
			pkghttp.WriteUnauthorized(w, "Authentication required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	if err := h.sessions.Destroy(r.Context(), session.ID); err != nil {
		h.logger.Error("failed to end session after password change", slog.String("session_id", session.ID), slog.Any("error", err))
	}
	auth.ClearSessionCookie(w, h.config.Cookies)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message":  "Password changed. Please log in again.",
		"redirect": auth.LoginPath,
	})
}
