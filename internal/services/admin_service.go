package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/cadmium/internal/models"
)

// AdminAccountRepository is the subset of account queries needed by AdminService.
type AdminAccountRepository interface {
	Stats(ctx context.Context) (*models.AccountStats, error)
}

// AdminAttendanceRepository is the subset of attendance queries needed by AdminService.
type AdminAttendanceRepository interface {
	CountForDate(ctx context.Context, date time.Time) (int, error)
}

// AdminAuditReader is the subset of audit queries needed by AdminService.
type AdminAuditReader interface {
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

// ActivityEntry is a single item in a recent-activity feed.
type ActivityEntry struct {
	Timestamp      string  `json:"timestamp"`
	ActorID        *string `json:"actor_id,omitempty"`
	Action         string  `json:"action"`
	AffectedObject string  `json:"affected_object,omitempty"`
	IPAddress      *string `json:"ip_address,omitempty"`
}

// DashboardActivityResponse contains recent event feeds.
type DashboardActivityResponse struct {
	RecentLogins []ActivityEntry `json:"recent_logins"`
	FailedLogins []ActivityEntry `json:"failed_logins"`
	BlockedIPs   []ActivityEntry `json:"blocked_ips"`
}

// AdminService aggregates data for the management dashboard.
type AdminService struct {
	accountRepo    AdminAccountRepository
	attendanceRepo AdminAttendanceRepository
	auditRepo      AdminAuditReader
	logger         *slog.Logger
	now            func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	accountRepo AdminAccountRepository,
	attendanceRepo AdminAttendanceRepository,
	auditRepo AdminAuditReader,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		accountRepo:    accountRepo,
		attendanceRepo: attendanceRepo,
		auditRepo:      auditRepo,
		logger:         logger,
		now:            time.Now,
	}
}

// GetDashboardStats returns account counts and today's attendance.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*models.AccountStats, error) {
	stats, err := s.accountRepo.Stats(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to count accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	today, err := s.attendanceRepo.CountForDate(ctx, models.WorkDate(s.now()))
	if err != nil {
		s.logger.Error("dashboard: failed to count attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	stats.AttendanceToday = today

	return stats, nil
}

// GetRecentActivity returns recent login and guard event feeds.
// limit is clamped to a maximum of 20.
func (s *AdminService) GetRecentActivity(ctx context.Context, limit int) (*DashboardActivityResponse, error) {
	if limit <= 0 || limit > 20 {
		limit = 20
	}

	feed := func(action string) ([]ActivityEntry, error) {
		logs, err := s.auditRepo.List(ctx, models.AuditFilter{Action: action, Limit: limit})
		if err != nil {
			s.logger.Error("dashboard: failed to fetch activity", slog.String("action", action), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		entries := make([]ActivityEntry, 0, len(logs))
		for _, l := range logs {
			entries = append(entries, ActivityEntry{
				Timestamp:      l.CreatedAt.UTC().Format(time.RFC3339),
				ActorID:        l.ActorID,
				Action:         l.Action,
				AffectedObject: l.AffectedObject,
				IPAddress:      l.IPAddress,
			})
		}
		return entries, nil
	}

	logins, err := feed(models.AuditActionLogin)
	if err != nil {
		return nil, err
	}
	failed, err := feed(models.AuditActionLoginFailed)
	if err != nil {
		return nil, err
	}
	blocked, err := feed(models.AuditActionIPBlocked)
	if err != nil {
		return nil, err
	}

	return &DashboardActivityResponse{
		RecentLogins: logins,
		FailedLogins: failed,
		BlockedIPs:   blocked,
	}, nil
}
