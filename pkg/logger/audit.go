package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AccountID     string
	Username      string
	AccountType   string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// GuardEvent is a decision or state transition of the privileged path guard
type GuardEvent struct {
	Transition string // allowed, blocked, rate_limited, unavailable, failure_recorded, ip_blocked, ip_unblocked
	IPAddress  string
	Path       string
	Principal  string
	Attempts   int
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

func timestampAttr() slog.Attr {
	return slog.String("timestamp", time.Now().UTC().Format(time.RFC3339))
}

func (al *AuditLogger) emit(level slog.Level, attrs []slog.Attr) {
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthAttempt logs login attempts against the role-routing state machine
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		timestampAttr(),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.Username != "" {
		attrs = append(attrs, slog.String("username", event.Username))
	}
	if event.AccountType != "" {
		attrs = append(attrs, slog.String("account_type", event.AccountType))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.emit(slog.LevelInfo, attrs)
	} else {
		al.emit(slog.LevelWarn, attrs)
	}
}

// LogPasswordChange logs password change events
func (al *AuditLogger) LogPasswordChange(accountID, ipAddress string, success bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "password"),
		slog.String("event_type", "password_change"),
		slog.Bool("success", success),
		slog.String("account_id", accountID),
		timestampAttr(),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	if success {
		al.emit(slog.LevelInfo, attrs)
	} else {
		al.emit(slog.LevelWarn, attrs)
	}
}

// LogAccountAction logs administrative account actions
func (al *AuditLogger) LogAccountAction(eventType, actorID, targetID string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("event_type", eventType),
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
		timestampAttr(),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.emit(slog.LevelInfo, attrs)
}

// LogGuardEvent logs privileged path guard transitions. Denials and lockouts are warnings.
func (al *AuditLogger) LogGuardEvent(event GuardEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "admin_guard"),
		slog.String("event_type", event.Transition),
		slog.String("ip_address", event.IPAddress),
		timestampAttr(),
	}

	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Principal != "" {
		attrs = append(attrs, slog.String("principal", event.Principal))
	}
	if event.Attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", event.Attempts))
	}

	switch event.Transition {
	case "allowed", "ip_unblocked":
		al.emit(slog.LevelInfo, attrs)
	case "unavailable":
		al.emit(slog.LevelError, attrs)
	default:
		al.emit(slog.LevelWarn, attrs)
	}
}
