package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/cadmium/internal/database"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attendanceColumns = `id, account_id, work_date, shift, check_in, check_out, status, notes, created_at`

type AttendanceRepository struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{pool: db.Pool}
}

func scanAttendanceRow(row rowScanner) (*models.Attendance, error) {
	var a models.Attendance
	var shift string

	err := row.Scan(&a.ID, &a.AccountID, &a.Date, &shift, &a.CheckIn, &a.CheckOut, &a.Status, &a.Notes, &a.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	a.Shift = models.Shift(shift)

	return &a, nil
}

func scanAttendanceRows(rows pgx.Rows) ([]*models.Attendance, error) {
	defer rows.Close()

	records := make([]*models.Attendance, 0)
	for rows.Next() {
		a, err := scanAttendanceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}

	return records, nil
}

// Create inserts a record; a second record for the same account and date is ErrConflict
func (r *AttendanceRepository) Create(ctx context.Context, a *models.Attendance) (*models.Attendance, error) {
	a.ID = uuid.New().String()
	if a.Status == "" {
		a.Status = models.AttendanceStatusPresent
	}

	query := `
		INSERT INTO attendance (id, account_id, work_date, shift, check_in, check_out, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + attendanceColumns

	created, err := scanAttendanceRow(r.pool.QueryRow(ctx, query,
		a.ID, a.AccountID, a.Date, string(a.Shift), a.CheckIn, a.CheckOut, a.Status, a.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create attendance: %w", err)
	}

	return created, nil
}

func (r *AttendanceRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE account_id = $1 ORDER BY work_date DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}

	return scanAttendanceRows(rows)
}

func (r *AttendanceRepository) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE work_date = $1`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return count, nil
}

func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE id = $1`
	return scanAttendanceRow(r.pool.QueryRow(ctx, query, id))
}

// List returns records across all accounts, newest work date first, each carrying its owner's username
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		conds = append(conds, fmt.Sprintf("a.account_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("a.work_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("a.work_date <= $%d", len(args)))
	}

	query := `
		SELECT a.id, a.account_id, a.work_date, a.shift, a.check_in, a.check_out, a.status, a.notes,
			a.created_at, acc.username
		FROM attendance a
		JOIN accounts acc ON acc.id = a.account_id`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY a.work_date DESC, acc.username LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	records := make([]*models.Attendance, 0)
	for rows.Next() {
		var a models.Attendance
		var shift string
		err := rows.Scan(&a.ID, &a.AccountID, &a.Date, &shift, &a.CheckIn, &a.CheckOut, &a.Status, &a.Notes,
			&a.CreatedAt, &a.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		a.Shift = models.Shift(shift)
		records = append(records, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}

	return records, nil
}

// Update rewrites the shift, date and hours of a record; moving onto a date the account already has is ErrConflict
func (r *AttendanceRepository) Update(ctx context.Context, a *models.Attendance) (*models.Attendance, error) {
	query := `
		UPDATE attendance
		SET work_date = $2, shift = $3, check_in = $4, check_out = $5, notes = $6
		WHERE id = $1
		RETURNING ` + attendanceColumns

	updated, err := scanAttendanceRow(r.pool.QueryRow(ctx, query,
		a.ID, a.Date, string(a.Shift), a.CheckIn, a.CheckOut, a.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}

	return updated, nil
}

func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
