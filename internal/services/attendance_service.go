package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/cadmium/internal/models"
)

const (
	defaultAttendanceListLimit = 30
	maxAttendanceListLimit     = 365
)

// AttendanceRepository defines the attendance persistence the service needs
type AttendanceRepository interface {
	Create(ctx context.Context, a *models.Attendance) (*models.Attendance, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error)
	CountForDate(ctx context.Context, date time.Time) (int, error)
}

// AttendanceAdminRepository adds the management queries over every account's records
type AttendanceAdminRepository interface {
	AttendanceRepository
	GetByID(ctx context.Context, id string) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error)
	Update(ctx context.Context, a *models.Attendance) (*models.Attendance, error)
	Delete(ctx context.Context, id string) error
}

// AttendanceService registers collaborator shifts
type AttendanceService struct {
	repo     AttendanceAdminRepository
	accounts AccountRepository
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewAttendanceService creates a new AttendanceService
func NewAttendanceService(repo AttendanceAdminRepository, accounts AccountRepository, audit AuditRecorder, logger *slog.Logger) *AttendanceService {
	return &AttendanceService{
		repo:     repo,
		accounts: accounts,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Register records that the account works the given shift on date.
// A zero date means today in the shop's timezone. One record per account and day.
func (s *AttendanceService) Register(ctx context.Context, accountID string, shift models.Shift, date time.Time, notes string) (*models.Attendance, error) {
	hours, err := models.HoursFor(shift)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load account for attendance", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !account.Active || !account.IsCollaborator {
		return nil, models.ErrForbidden
	}

	if date.IsZero() {
		date = s.now()
	}
	day := models.WorkDate(date)
	checkIn, checkOut := hours.On(day)

	record, err := s.repo.Create(ctx, &models.Attendance{
		AccountID: accountID,
		Date:      day,
		Shift:     shift,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Status:    models.AttendanceStatusPresent,
		Notes:     notes,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: attendance already registered for %s", models.ErrConflict, day.Format(time.DateOnly))
		}
		s.logger.Error("failed to register attendance", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("attendance registered",
		slog.String("account_id", accountID),
		slog.String("shift", string(shift)),
		slog.String("date", day.Format(time.DateOnly)),
	)
	s.audit.Record(ctx, AuditEntry{
		ActorID:        accountID,
		Action:         models.AuditActionAttendance,
		Module:         models.AuditModuleAttendance,
		AffectedObject: account.Username,
		Description:    fmt.Sprintf("%s shift (%s) on %s", shift, hours, day.Format(time.DateOnly)),
		Details:        models.AuditMetadata{"attendance_id": record.ID, "shift": string(shift)},
	})

	return record, nil
}

// ListForAccount returns the account's most recent attendance records
func (s *AttendanceService) ListForAccount(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error) {
	if limit <= 0 {
		limit = defaultAttendanceListLimit
	}
	if limit > maxAttendanceListLimit {
		limit = maxAttendanceListLimit
	}

	records, err := s.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		s.logger.Error("failed to list attendance", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return records, nil
}

// ListAll returns records across all accounts for management, newest first
func (s *AttendanceService) ListAll(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAttendanceListLimit
	}
	if filter.Limit > maxAttendanceListLimit {
		filter.Limit = maxAttendanceListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list attendance", slog.String("account_id", filter.AccountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return records, nil
}

func (s *AttendanceService) getRecord(ctx context.Context, id string) (*models.Attendance, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get attendance", slog.String("attendance_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return record, nil
}

// UpdateAttendance lets management correct a record's shift, date or notes.
// Check-in and check-out are always recomputed from the shift table.
func (s *AttendanceService) UpdateAttendance(ctx context.Context, actorID, id string, changes models.AttendanceChanges) (*models.Attendance, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *record
	if changes.Shift != nil {
		next.Shift = *changes.Shift
	}
	if changes.Date != nil {
		next.Date = models.WorkDate(*changes.Date)
	}
	if changes.Notes != nil {
		next.Notes = *changes.Notes
	}

	hours, err := models.HoursFor(next.Shift)
	if err != nil {
		return nil, err
	}
	next.CheckIn, next.CheckOut = hours.On(next.Date)

	updated, err := s.repo.Update(ctx, &next)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			return nil, fmt.Errorf("%w: attendance already registered for %s", models.ErrConflict, next.Date.Format(time.DateOnly))
		case errors.Is(err, models.ErrNotFound):
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update attendance", slog.String("attendance_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("attendance updated",
		slog.String("attendance_id", id),
		slog.String("actor_id", actorID),
		slog.String("shift", string(updated.Shift)),
		slog.String("date", updated.Date.Format(time.DateOnly)),
	)
	s.audit.Record(ctx, AuditEntry{
		ActorID:        actorID,
		Action:         models.AuditActionUpdate,
		Module:         models.AuditModuleAttendance,
		AffectedObject: id,
		Description:    fmt.Sprintf("%s shift (%s) on %s", updated.Shift, hours, updated.Date.Format(time.DateOnly)),
		Details: models.AuditMetadata{
			"account_id":     record.AccountID,
			"previous_shift": string(record.Shift),
			"previous_date":  record.Date.Format(time.DateOnly),
		},
	})

	return updated, nil
}

// DeleteAttendance removes a record
func (s *AttendanceService) DeleteAttendance(ctx context.Context, actorID, id string) error {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete attendance", slog.String("attendance_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("attendance deleted", slog.String("attendance_id", id), slog.String("actor_id", actorID))
	s.audit.Record(ctx, AuditEntry{
		ActorID:        actorID,
		Action:         models.AuditActionDelete,
		Module:         models.AuditModuleAttendance,
		AffectedObject: id,
		Description:    fmt.Sprintf("%s shift on %s deleted", record.Shift, record.Date.Format(time.DateOnly)),
		Details:        models.AuditMetadata{"account_id": record.AccountID, "shift": string(record.Shift)},
	})
	return nil
}
