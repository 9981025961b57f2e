package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/cadmium/internal/database"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, username, password_hash, first_name, last_name, rut, email,
	is_administrator, is_collaborator, is_superuser, active, must_change_password,
	password_changed_at, created_at, updated_at`

type AccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	var rut, email *string
	var passwordChangedAt *time.Time

	err := scanner.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.FirstName, &a.LastName, &rut, &email,
		&a.IsAdministrator, &a.IsCollaborator, &a.IsSuperuser, &a.Active, &a.MustChangePassword,
		&passwordChangedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if rut != nil {
		a.RUT = *rut
	}
	if email != nil {
		a.Email = *email
	}
	a.PasswordChangedAt = passwordChangedAt

	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByUsername matches the login handle case-insensitively
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY last_name, first_name LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return scanAccountRows(rows)
}

// UsernamesWithPrefix returns every username that starts with prefix, used to pick a free suffix
func (r *AccountRepository) UsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT username FROM accounts WHERE username LIKE $1 || '%'`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query usernames: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	created, err := insertAccount(ctx, r.pool, a)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

// CreateWithAudit inserts the account and the audit entry built from the stored row in one transaction
func (r *AccountRepository) CreateWithAudit(ctx context.Context, a *models.Account, audit func(*models.Account) *models.AuditLog) (*models.Account, error) {
	var created *models.Account

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = insertAccount(ctx, tx, a)
		if err != nil {
			return err
		}
		_, err = insertAuditLog(ctx, tx, audit(created))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

func insertAccount(ctx context.Context, q rowQuerier, a *models.Account) (*models.Account, error) {
	a.ID = uuid.New().String()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Active = true

	query := `
		INSERT INTO accounts (id, username, password_hash, first_name, last_name, rut, email,
			is_administrator, is_collaborator, is_superuser, active, must_change_password,
			password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + accountColumns

	return scanAccountRow(q.QueryRow(ctx, query,
		a.ID, a.Username, a.PasswordHash, a.FirstName, a.LastName, nullable(a.RUT), nullable(a.Email),
		a.IsAdministrator, a.IsCollaborator, a.IsSuperuser, a.Active, a.MustChangePassword,
		a.PasswordChangedAt, a.CreatedAt, a.UpdatedAt,
	))
}

// Update stores the administrator-editable fields. Credentials and the username are untouched.
func (r *AccountRepository) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET first_name = $2, last_name = $3, rut = $4, email = $5,
			is_administrator = $6, is_collaborator = $7, active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	updated, err := scanAccountRow(r.pool.QueryRow(ctx, query,
		a.ID, a.FirstName, a.LastName, nullable(a.RUT), nullable(a.Email),
		a.IsAdministrator, a.IsCollaborator, a.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return updated, nil
}

// UpdatePassword stores a new hash and the forced-change flag in one statement
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, must_change_password = $3, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, passwordHash, mustChange)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE accounts SET active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Stats counts accounts by state and role
func (r *AccountRepository) Stats(ctx context.Context) (*models.AccountStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE active),
			COUNT(*) FILTER (WHERE active AND (is_administrator OR is_superuser)),
			COUNT(*) FILTER (WHERE active AND is_collaborator)
		FROM accounts
	`

	var s models.AccountStats
	err := r.pool.QueryRow(ctx, query).Scan(&s.TotalAccounts, &s.ActiveAccounts, &s.Administrators, &s.Collaborators)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	return &s, nil
}
