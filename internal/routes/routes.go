package routes

import (
	"strings"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/handlers"
	"github.com/BradenHooton/cadmium/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Handlers bundles every HTTP handler the router serves
type Handlers struct {
	Auth            *handlers.AuthHandler
	Accounts        *handlers.AccountHandler
	Attendance      *handlers.AttendanceHandler
	AttendanceAdmin *handlers.AttendanceAdminHandler
	Inventory       *handlers.InventoryHandler
	Admin           *handlers.AdminHandler
	Audit           *handlers.AuditHandler
}

// Config holds routing options
type Config struct {
	AdminPrefix    string // normalised, e.g. "/admin-x/"
	LoginRateLimit middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes. Session loading, CSRF checks and
// the privileged path guard are expected to run as router-wide middleware.
func RegisterRoutes(router chi.Router, h Handlers, config Config) {
	// Public routes
	router.With(middleware.RateLimitByIP(config.LoginRateLimit)).Post("/login", h.Auth.Login)
	router.Post("/logout", h.Auth.Logout)
	router.With(auth.RequireSession).Get(auth.ChangePasswordPath, h.Auth.ChangePasswordStatus)
	router.With(auth.RequireSession).Post(auth.ChangePasswordPath, h.Auth.ChangePassword)

	// Management panel
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAdministrator)
		r.Use(auth.RequirePasswordChanged)

		r.Get("/panel", h.Admin.GetDashboardStats)
		r.Get("/panel/accounts", h.Accounts.ListAccounts)
		r.Post("/panel/accounts", h.Accounts.CreateAccount)
		r.Get("/panel/accounts/{id}", h.Accounts.GetAccount)
		r.Patch("/panel/accounts/{id}", h.Accounts.UpdateAccount)
		r.Post("/panel/accounts/{id}/reset-password", h.Accounts.ResetPassword)
		r.Post("/panel/accounts/{id}/deactivate", h.Accounts.DeactivateAccount)
		r.Get("/panel/attendance", h.AttendanceAdmin.List)
		r.Patch("/panel/attendance/{id}", h.AttendanceAdmin.Update)
		r.Delete("/panel/attendance/{id}", h.AttendanceAdmin.Delete)
		r.Get("/panel/inventory", h.Inventory.List)
		r.Get("/panel/audit", h.Audit.ListAuditLogs)
	})

	// Collaborator attendance
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireCollaborator)
		r.Use(auth.RequirePasswordChanged)

		r.Get("/attendance", h.Attendance.List)
		r.Post("/attendance", h.Attendance.Register)
	})

	// Privileged prefix
	router.Route(strings.TrimSuffix(config.AdminPrefix, "/"), func(r chi.Router) {
		r.Post("/login/", h.Auth.PrivilegedLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdministrator)
			r.Use(auth.RequirePasswordChanged)

			r.Get("/", h.Admin.GetDashboard)
			r.Get("/blocked-ips/{ip}", h.Admin.GetBlockedIP)
			r.Delete("/blocked-ips/{ip}", h.Admin.UnblockIP)
			r.Post("/accounts/{id}/reset-password", h.Accounts.ResetPassword)
		})
	})
}
