package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/models"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AccountServiceInterface defines the account administration contract
type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, actorID string, input models.NewAccount) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, actorID, id string, changes models.AccountChanges) (*models.Account, error)
	DeactivateAccount(ctx context.Context, actorID, id string) error
}

// PasswordResetter resets another account's password to the default
type PasswordResetter interface {
	AdminResetPassword(ctx context.Context, actorID, targetID string) error
}

// AccountHandler handles staff account administration
type AccountHandler struct {
	service  AccountServiceInterface
	resetter PasswordResetter
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountServiceInterface, resetter PasswordResetter) *AccountHandler {
	return &AccountHandler{service: service, resetter: resetter}
}

// CreateAccountRequest represents the request body for creating a staff account
type CreateAccountRequest struct {
	FirstName       string `json:"first_name" validate:"required,min=2,max=40"`
	LastName        string `json:"last_name" validate:"required,min=2,max=40"`
	RUT             string `json:"rut" validate:"required,rut"`
	Email           string `json:"email" validate:"required,email,max=254"`
	IsAdministrator bool   `json:"is_administrator"`
	IsCollaborator  bool   `json:"is_collaborator"`
}

// UpdateAccountRequest represents the request body for editing an account; omitted fields are unchanged
type UpdateAccountRequest struct {
	FirstName       *string `json:"first_name" validate:"omitempty,min=2,max=40"`
	LastName        *string `json:"last_name" validate:"omitempty,min=2,max=40"`
	RUT             *string `json:"rut" validate:"omitempty,rut"`
	Email           *string `json:"email" validate:"omitempty,email,max=254"`
	IsAdministrator *bool   `json:"is_administrator"`
	IsCollaborator  *bool   `json:"is_collaborator"`
	Active          *bool   `json:"active"`
}

// AccountResponse represents an account in the HTTP response
type AccountResponse struct {
	ID                 string  `json:"id"`
	Username           string  `json:"username"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	RUT                string  `json:"rut"`
	Email              string  `json:"email"`
	IsAdministrator    bool    `json:"is_administrator"`
	IsCollaborator     bool    `json:"is_collaborator"`
	IsSuperuser        bool    `json:"is_superuser"`
	Active             bool    `json:"active"`
	MustChangePassword bool    `json:"must_change_password"`
	PasswordChangedAt  *string `json:"password_changed_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

// ListAccountsResponse represents a page of accounts
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

func accountToResponse(a *models.Account) *AccountResponse {
	resp := &AccountResponse{
		ID:                 a.ID,
		Username:           a.Username,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		RUT:                a.RUT,
		Email:              a.Email,
		IsAdministrator:    a.IsAdministrator,
		IsCollaborator:     a.IsCollaborator,
		IsSuperuser:        a.IsSuperuser,
		Active:             a.Active,
		MustChangePassword: a.MustChangePassword,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
	if a.PasswordChangedAt != nil {
		changed := a.PasswordChangedAt.Format(time.RFC3339)
		resp.PasswordChangedAt = &changed
	}
	return resp
}

// pagination reads limit and offset query parameters, ignoring out-of-range values
func pagination(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit, offset := defaultLimit, 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

// ListAccounts handles GET /panel/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 100)

	accounts, err := h.service.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := ListAccountsResponse{
		Accounts: make([]*AccountResponse, len(accounts)),
		Limit:    limit,
		Offset:   offset,
	}
	for i, a := range accounts {
		resp.Accounts[i] = accountToResponse(a)
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// CreateAccount handles POST /panel/accounts
//
// @Summary Create staff account
// @Accept json
// @Param request body CreateAccountRequest true "Create account request"
// @Produce json
// @Success 201 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /panel/accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.CreateAccount(r.Context(), session.AccountID, models.NewAccount{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		RUT:             req.RUT,
		Email:           req.Email,
		IsAdministrator: req.IsAdministrator,
		IsCollaborator:  req.IsCollaborator,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRoleRequired):
			pkghttp.WriteError(w, http.StatusBadRequest, "role_required", "Select at least one role")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid account data")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this RUT or email already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, accountToResponse(account))
}

// GetAccount handles GET /panel/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := ValidateVar(id, "required,uuid"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid account id")
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, accountToResponse(account))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// UpdateAccount handles PATCH /panel/accounts/{id}
//
// @Summary Edit staff account
// @Accept json
// @Param request body UpdateAccountRequest true "Update account request"
// @Produce json
// @Success 200 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /panel/accounts/{id} [patch]
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := ValidateVar(id, "required,uuid"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid account id")
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	req.FirstName = trimmed(req.FirstName)
	req.LastName = trimmed(req.LastName)
	req.Email = trimmed(req.Email)
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), session.AccountID, id, models.AccountChanges{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		RUT:             req.RUT,
		Email:           req.Email,
		IsAdministrator: req.IsAdministrator,
		IsCollaborator:  req.IsCollaborator,
		Active:          req.Active,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRoleRequired):
			pkghttp.WriteError(w, http.StatusBadRequest, "role_required", "Select at least one role")
		case errors.Is(err, models.ErrSelfDeactivation):
			pkghttp.WriteError(w, http.StatusBadRequest, "self_deactivation", "You cannot deactivate your own account")
		case errors.Is(err, models.ErrSelfDemotion):
			pkghttp.WriteError(w, http.StatusBadRequest, "self_demotion", "You cannot remove your own administrator role")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid account data")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this RUT or email already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, accountToResponse(account))
}

// ResetPassword handles POST /panel/accounts/{id}/reset-password
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := ValidateVar(id, "required,uuid"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid account id")
		return
	}

	if err := h.resetter.AdminResetPassword(r.Context(), session.AccountID, id); err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Administrator access required")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset. The account must choose a new password at next login.",
	})
}

// DeactivateAccount handles POST /panel/accounts/{id}/deactivate
func (h *AccountHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := ValidateVar(id, "required,uuid"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid account id")
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), session.AccountID, id); err != nil {
		switch {
		case errors.Is(err, models.ErrSelfDeactivation):
			pkghttp.WriteError(w, http.StatusBadRequest, "self_deactivation", "You cannot deactivate your own account")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
