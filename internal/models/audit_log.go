package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionCreate         = "create"
	AuditActionUpdate         = "update"
	AuditActionDeactivate     = "deactivate"
	AuditActionDelete         = "delete"
	AuditActionPasswordReset  = "password_reset"
	AuditActionPasswordChange = "password_change"
	AuditActionLogin          = "login"
	AuditActionLoginFailed    = "login_failed"
	AuditActionLogout         = "logout"
	AuditActionIPBlocked      = "ip_blocked"
	AuditActionIPUnblocked    = "ip_unblocked"
	AuditActionAttendance     = "attendance"
)

// Audit modules
const (
	AuditModuleAccounts   = "accounts"
	AuditModuleAuth       = "auth"
	AuditModuleAdminGuard = "admin_guard"
	AuditModuleAttendance = "attendance"
)

// AuditLog is one append-only entry of the audit trail
type AuditLog struct {
	ID             string        `json:"id"`
	ActorID        *string       `json:"actor_id,omitempty"`
	Action         string        `json:"action"`
	Module         string        `json:"module"`
	AffectedObject string        `json:"affected_object,omitempty"`
	Description    string        `json:"description"`
	Details        AuditMetadata `json:"details"`
	IPAddress      *string       `json:"ip_address,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(am))
}

// AuditFilter narrows audit trail reads
type AuditFilter struct {
	ActorID string
	Module  string
	Action  string
	Limit   int
	Offset  int
}
