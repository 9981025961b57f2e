package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/BradenHooton/cadmium/internal/services"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the dashboard service contract.
type AdminServiceInterface interface {
	GetDashboardStats(ctx context.Context) (*models.AccountStats, error)
	GetRecentActivity(ctx context.Context, limit int) (*services.DashboardActivityResponse, error)
}

// GuardAdministration exposes lockout state of the privileged path guard.
type GuardAdministration interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
	FailedAttempts(ctx context.Context, ip string) (int, error)
	Unblock(ctx context.Context, actorID, ip string) error
}

// AdminHandler handles management dashboard HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
	guard   GuardAdministration
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, guard GuardAdministration, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, guard: guard, logger: logger}
}

// DashboardResponse is the privileged landing page payload.
type DashboardResponse struct {
	Stats    *models.AccountStats                `json:"stats"`
	Activity *services.DashboardActivityResponse `json:"activity"`
}

// BlockedIPResponse describes the guard state of one client address.
type BlockedIPResponse struct {
	IP             string `json:"ip"`
	Blocked        bool   `json:"blocked"`
	FailedAttempts int    `json:"failed_attempts"`
}

// GetDashboardStats handles GET /panel
func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve dashboard stats")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// GetDashboard handles GET <prefix>
// Accepts optional query param ?limit=N (1–20, default 20) for the activity feeds.
func (h *AdminHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 20 {
			limit = n
		}
	}

	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve dashboard stats")
		return
	}

	activity, err := h.service.GetRecentActivity(r.Context(), limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve recent activity")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, DashboardResponse{Stats: stats, Activity: activity})
}

// GetBlockedIP handles GET <prefix>blocked-ips/{ip}
func (h *AdminHandler) GetBlockedIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if err := ValidateVar(ip, "required,ip"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid IP address")
		return
	}

	blocked, err := h.guard.IsBlocked(r.Context(), ip)
	if err != nil {
		h.logger.Error("failed to read guard state", slog.String("ip", ip), slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Guard state unavailable")
		return
	}

	attempts, err := h.guard.FailedAttempts(r.Context(), ip)
	if err != nil {
		h.logger.Error("failed to read failed attempts", slog.String("ip", ip), slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Guard state unavailable")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, BlockedIPResponse{IP: ip, Blocked: blocked, FailedAttempts: attempts})
}

// UnblockIP handles DELETE <prefix>blocked-ips/{ip}
func (h *AdminHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	ip := chi.URLParam(r, "ip")
	if err := ValidateVar(ip, "required,ip"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid IP address")
		return
	}

	if err := h.guard.Unblock(r.Context(), session.AccountID, ip); err != nil {
		h.logger.Error("failed to unblock address", slog.String("ip", ip), slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Guard state unavailable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
