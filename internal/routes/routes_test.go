package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/cache"
	"github.com/BradenHooton/cadmium/internal/handlers"
	"github.com/BradenHooton/cadmium/internal/middleware"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/BradenHooton/cadmium/internal/services"
	pkglogger "github.com/BradenHooton/cadmium/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "/admin-x/"

func newTestRouter(session *models.Session) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session != nil {
				r = r.WithContext(auth.WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	})

	RegisterRoutes(router, Handlers{
		Auth: handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockSessionStore{}, nil,
			&services.MockAuditRecorder{}, handlers.AuthHandlerConfig{}, logger),
		Accounts:        handlers.NewAccountHandler(&handlers.MockAccountService{}, &handlers.MockPasswordResetter{}),
		Attendance:      handlers.NewAttendanceHandler(&handlers.MockAttendanceService{}),
		AttendanceAdmin: handlers.NewAttendanceAdminHandler(&handlers.MockAttendanceAdminService{}),
		Inventory:       handlers.NewInventoryHandler(&handlers.MockInventoryService{}),
		Admin:           handlers.NewAdminHandler(nil, &handlers.MockGuardAdministration{}, logger),
		Audit:           handlers.NewAuditHandler(nil),
	}, Config{
		AdminPrefix:    testPrefix,
		LoginRateLimit: middleware.DefaultLoginRateLimit(),
	})
	return router
}

func serve(h http.Handler, method, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec.Code
}

func TestRoutes_AccessControl(t *testing.T) {
	admin := &models.Session{ID: "s1", AccountID: "a1", IsAdministrator: true}
	collaborator := &models.Session{ID: "s2", AccountID: "c1", IsCollaborator: true}
	pending := &models.Session{ID: "s3", AccountID: "a2", IsAdministrator: true, MustChangePassword: true}

	tests := []struct {
		name    string
		session *models.Session
		method  string
		path    string
		want    int
	}{
		{"anonymous panel", nil, http.MethodGet, "/panel/accounts", http.StatusUnauthorized},
		{"collaborator panel", collaborator, http.MethodGet, "/panel/accounts", http.StatusForbidden},
		{"admin panel", admin, http.MethodGet, "/panel/accounts", http.StatusOK},
		{"pending change panel", pending, http.MethodGet, "/panel/accounts", http.StatusForbidden},
		{"admin attendance", admin, http.MethodGet, "/attendance", http.StatusForbidden},
		{"collaborator attendance", collaborator, http.MethodGet, "/attendance", http.StatusOK},
		{"admin attendance management", admin, http.MethodGet, "/panel/attendance", http.StatusOK},
		{"collaborator attendance management", collaborator, http.MethodGet, "/panel/attendance", http.StatusForbidden},
		{"collaborator deletes attendance", collaborator, http.MethodDelete, "/panel/attendance/33333333-3333-4333-8333-333333333333", http.StatusForbidden},
		{"admin deletes attendance", admin, http.MethodDelete, "/panel/attendance/33333333-3333-4333-8333-333333333333", http.StatusNoContent},
		{"anonymous account edit", nil, http.MethodPatch, "/panel/accounts/22222222-2222-4222-8222-222222222222", http.StatusUnauthorized},
		{"admin inventory", admin, http.MethodGet, "/panel/inventory", http.StatusOK},
		{"collaborator inventory", collaborator, http.MethodGet, "/panel/inventory", http.StatusForbidden},
		{"pending change may change password", pending, http.MethodGet, "/change-password", http.StatusOK},
		{"anonymous change password status", nil, http.MethodGet, "/change-password", http.StatusUnauthorized},
		{"anonymous change password", nil, http.MethodPost, "/change-password", http.StatusUnauthorized},
		{"anonymous privileged dashboard", nil, http.MethodGet, testPrefix, http.StatusUnauthorized},
		{"collaborator privileged blocked ips", collaborator, http.MethodGet, testPrefix + "blocked-ips/203.0.113.5", http.StatusForbidden},
		{"admin privileged blocked ips", admin, http.MethodGet, testPrefix + "blocked-ips/203.0.113.5", http.StatusOK},
		{"anonymous logout", nil, http.MethodPost, "/logout", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(newTestRouter(tt.session), tt.method, tt.path))
		})
	}
}

func TestRoutes_LoginEndpoints(t *testing.T) {
	router := newTestRouter(nil)

	// The mock service rejects every attempt; reaching it proves the route is wired
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/login"), "empty body")
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, testPrefix+"login/"), "empty body")
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodGet, "/login"))
}

// newGuardedRouter wires the real login, guard and store the way the server does
func newGuardedRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger := pkglogger.NewAuditLogger(logger)
	audit := &services.MockAuditRecorder{}

	owner := services.NewTestAdministrator("a1", "owner", "Tostado#Oscuro7")
	accounts := &services.MockAccountRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.Account, error) {
			if strings.EqualFold(username, owner.Username) {
				return owner, nil
			}
			return nil, models.ErrNotFound
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			if id == owner.ID {
				return owner, nil
			}
			return nil, models.ErrNotFound
		},
	}

	guard := services.NewAdminGuardService(cache.NewMemoryStore(), services.AdminGuardConfig{
		MaxLoginAttempts:  5,
		LockoutDuration:   time.Hour,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}, logger, auditLogger, audit)
	authService := services.NewAuthService(accounts, services.AuthConfig{}, &services.MockDelayer{}, audit, logger, auditLogger)

	router := chi.NewRouter()
	router.Use(middleware.AdminGuardMiddleware(guard, middleware.AdminGuardConfig{PathPrefix: testPrefix}, logger))
	RegisterRoutes(router, Handlers{
		Auth: handlers.NewAuthHandler(authService, &handlers.MockSessionStore{}, guard, audit,
			handlers.AuthHandlerConfig{}, logger),
		Accounts:        handlers.NewAccountHandler(&handlers.MockAccountService{}, &handlers.MockPasswordResetter{}),
		Attendance:      handlers.NewAttendanceHandler(&handlers.MockAttendanceService{}),
		AttendanceAdmin: handlers.NewAttendanceAdminHandler(&handlers.MockAttendanceAdminService{}),
		Inventory:       handlers.NewInventoryHandler(&handlers.MockInventoryService{}),
		Admin:           handlers.NewAdminHandler(nil, guard, logger),
		Audit:           handlers.NewAuditHandler(nil),
	}, Config{
		AdminPrefix:    testPrefix,
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: 1000},
	})
	return router
}

func privilegedLogin(router http.Handler, remoteAddr, username, password string) int {
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, testPrefix+"login/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes_PrivilegedLoginLockout(t *testing.T) {
	router := newGuardedRouter(t)
	attacker := "203.0.113.7:40000"

	for i := 1; i <= 5; i++ {
		require.Equal(t, http.StatusUnauthorized, privilegedLogin(router, attacker, "owner", "wrong-password"), "attempt %d", i)
	}

	assert.Equal(t, http.StatusForbidden, privilegedLogin(router, attacker, "owner", "wrong-password"))
	assert.Equal(t, http.StatusForbidden, privilegedLogin(router, attacker, "owner", "Tostado#Oscuro7"),
		"a locked-out address is refused even with valid credentials")

	assert.Equal(t, http.StatusOK, privilegedLogin(router, "198.51.100.4:40000", "owner", "Tostado#Oscuro7"),
		"other addresses are unaffected")
}
