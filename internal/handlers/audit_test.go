package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/cadmium/internal/handlers"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuditReader struct {
	ListFunc func(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

func (m *mockAuditReader) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	if m.ListFunc == nil {
		return []*models.AuditLog{}, nil
	}
	return m.ListFunc(ctx, filter)
}

func TestListAuditLogs_PassesFilters(t *testing.T) {
	actor := adminID
	ip := "203.0.113.5"
	var got models.AuditFilter
	reader := &mockAuditReader{
		ListFunc: func(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
			got = filter
			return []*models.AuditLog{{
				ID:             "log-1",
				ActorID:        &actor,
				Action:         models.AuditActionIPBlocked,
				Module:         models.AuditModuleAdminGuard,
				AffectedObject: ip,
				Description:    "address blocked",
				Details:        models.AuditMetadata{"attempts": float64(5)},
				IPAddress:      &ip,
				CreatedAt:      time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC),
			}}, nil
		},
	}
	h := handlers.NewAuditHandler(reader)

	w := httptest.NewRecorder()
	h.ListAuditLogs(w, httptest.NewRequest(http.MethodGet, "/panel/audit?module=admin_guard&action=ip_blocked&actor_id="+adminID+"&limit=10&offset=5", nil))

	var resp struct {
		Logs   []handlers.AuditLogResponse `json:"logs"`
		Limit  int                         `json:"limit"`
		Offset int                         `json:"offset"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)

	assert.Equal(t, models.AuditFilter{ActorID: adminID, Module: "admin_guard", Action: "ip_blocked", Limit: 10, Offset: 5}, got)
	assert.Equal(t, "1", w.Header().Get("X-Result-Count"))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "2025-02-14T10:00:00Z", resp.Logs[0].CreatedAt)
	assert.Equal(t, float64(5), resp.Logs[0].Details["attempts"])
}

func TestListAuditLogs_InvalidActor(t *testing.T) {
	h := handlers.NewAuditHandler(&mockAuditReader{})

	w := httptest.NewRecorder()
	h.ListAuditLogs(w, httptest.NewRequest(http.MethodGet, "/panel/audit?actor_id=robert%27%29%3B%20DROP", nil))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestListAuditLogs_ServiceError(t *testing.T) {
	h := handlers.NewAuditHandler(&mockAuditReader{
		ListFunc: func(context.Context, models.AuditFilter) ([]*models.AuditLog, error) {
			return nil, errors.New("boom")
		},
	})

	w := httptest.NewRecorder()
	h.ListAuditLogs(w, httptest.NewRequest(http.MethodGet, "/panel/audit", nil))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}
