package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/cadmium/internal/models"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
)

// AuditReader reads the audit trail
type AuditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	service AuditReader
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditReader) *AuditHandler {
	return &AuditHandler{service: service}
}

// AuditLogResponse represents an audit log entry in HTTP response
type AuditLogResponse struct {
	ID             string                 `json:"id"`
	ActorID        *string                `json:"actor_id,omitempty"`
	Action         string                 `json:"action"`
	Module         string                 `json:"module"`
	AffectedObject string                 `json:"affected_object,omitempty"`
	Description    string                 `json:"description"`
	Details        map[string]interface{} `json:"details,omitempty"`
	IPAddress      *string                `json:"ip_address,omitempty"`
	CreatedAt      string                 `json:"created_at"`
}

// ListAuditLogs handles GET /panel/audit
// Optional filters: actor_id, module, action, limit (1-500, default 50), offset.
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r, 50, 500)

	filter := models.AuditFilter{
		ActorID: q.Get("actor_id"),
		Module:  q.Get("module"),
		Action:  q.Get("action"),
		Limit:   limit,
		Offset:  offset,
	}
	if filter.ActorID != "" {
		if err := ValidateVar(filter.ActorID, "uuid"); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid actor id")
			return
		}
	}

	logs, err := h.service.List(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := make([]*AuditLogResponse, len(logs))
	for i, log := range logs {
		response[i] = auditLogToResponse(log)
	}

	w.Header().Set("X-Result-Count", strconv.Itoa(len(response)))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   response,
		"limit":  limit,
		"offset": offset,
	})
}

// auditLogToResponse converts an audit log model to a response DTO
func auditLogToResponse(log *models.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:             log.ID,
		ActorID:        log.ActorID,
		Action:         log.Action,
		Module:         log.Module,
		AffectedObject: log.AffectedObject,
		Description:    log.Description,
		Details:        log.Details,
		IPAddress:      log.IPAddress,
		CreatedAt:      log.CreatedAt.Format(time.RFC3339),
	}
}
