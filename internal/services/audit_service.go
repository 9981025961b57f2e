package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/cadmium/internal/models"
)

const (
	defaultAuditListLimit = 50
	maxAuditListLimit     = 500
)

// AuditLogRepository defines the audit persistence the service needs
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// AuditEntry is one event to append to the audit trail
type AuditEntry struct {
	ActorID        string
	Action         string
	Module         string
	AffectedObject string
	Description    string
	Details        models.AuditMetadata
	IPAddress      string
}

// AuditRecorder is the write side of the audit trail. Recording never fails the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditService handles audit logging with dual-write pattern (slog + database)
type AuditService struct {
	repo   AuditLogRepository
	logger *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (e AuditEntry) auditLog() *models.AuditLog {
	return &models.AuditLog{
		ActorID:        optional(e.ActorID),
		Action:         e.Action,
		Module:         e.Module,
		AffectedObject: e.AffectedObject,
		Description:    e.Description,
		Details:        e.Details,
		IPAddress:      optional(e.IPAddress),
	}
}

// Record writes the entry to the structured log immediately and then persists it.
// Persistence failures are logged and otherwise ignored.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	s.logger.InfoContext(ctx, "audit event",
		slog.String("action", entry.Action),
		slog.String("module", entry.Module),
		slog.String("actor_id", entry.ActorID),
		slog.String("affected_object", entry.AffectedObject),
		slog.String("description", entry.Description),
		slog.Any("details", entry.Details),
	)

	if _, err := s.repo.Create(ctx, entry.auditLog()); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("action", entry.Action),
			slog.String("module", entry.Module),
			slog.Any("error", err),
		)
	}
}

// List returns the audit trail newest first
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditListLimit
	}
	if filter.Limit > maxAuditListLimit {
		filter.Limit = maxAuditListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", slog.Any("error", err))
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// Cleanup removes entries older than the retention period and reports how many were deleted
func (s *AuditService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	deleted, err := s.repo.Cleanup(ctx, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit logs: %w", err)
	}
	return deleted, nil
}
