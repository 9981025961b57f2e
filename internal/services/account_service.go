package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/BradenHooton/cadmium/internal/models"
	pkgauth "github.com/BradenHooton/cadmium/pkg/auth"
	pkglogger "github.com/BradenHooton/cadmium/pkg/logger"
	"github.com/BradenHooton/cadmium/pkg/rut"
)

// AccountAdminRepository extends AccountRepository with the administration queries
type AccountAdminRepository interface {
	AccountRepository
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	UsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	CreateWithAudit(ctx context.Context, account *models.Account, audit func(*models.Account) *models.AuditLog) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) error
	Stats(ctx context.Context) (*models.AccountStats, error)
}

// AccountService handles staff account administration
type AccountService struct {
	repo            AccountAdminRepository
	defaultPassword string
	audit           AuditRecorder
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService
func NewAccountService(repo AccountAdminRepository, defaultPassword string, audit AuditRecorder, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	if defaultPassword == "" {
		defaultPassword = "popup"
	}
	return &AccountService{
		repo:            repo,
		defaultPassword: defaultPassword,
		audit:           audit,
		logger:          logger,
		auditLogger:     auditLogger,
	}
}

// UsernameBase is the lower-cased first initial followed by the surname without spaces
func UsernameBase(firstName, lastName string) string {
	first := []rune(strings.TrimSpace(firstName))
	var b strings.Builder
	if len(first) > 0 {
		b.WriteRune(first[0])
	}
	for _, r := range strings.TrimSpace(lastName) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// nextFreeUsername returns base when free, otherwise base1, base2, ...
func nextFreeUsername(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, name := range taken {
		used[strings.ToLower(name)] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

// CreateAccount registers a staff member with a generated username and the default password.
// The new account must change its password at first login.
func (s *AccountService) CreateAccount(ctx context.Context, actorID string, input models.NewAccount) (*models.Account, error) {
	if !input.IsAdministrator && !input.IsCollaborator {
		return nil, models.ErrRoleRequired
	}

	normalizedRUT, err := rut.Validate(input.RUT)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	base := UsernameBase(input.FirstName, input.LastName)
	if base == "" {
		return nil, fmt.Errorf("%w: first and last name are required", models.ErrBadRequest)
	}

	taken, err := s.repo.UsernamesWithPrefix(ctx, base)
	if err != nil {
		s.logger.Error("failed to look up usernames", slog.String("prefix", base), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	username := nextFreeUsername(base, taken)

	hash, err := pkgauth.HashPassword(s.defaultPassword)
	if err != nil {
		s.logger.Error("failed to hash default password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.repo.CreateWithAudit(ctx, &models.Account{
		Username:           username,
		PasswordHash:       hash,
		FirstName:          strings.TrimSpace(input.FirstName),
		LastName:           strings.TrimSpace(input.LastName),
		RUT:                normalizedRUT,
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		IsAdministrator:    input.IsAdministrator,
		IsCollaborator:     input.IsCollaborator,
		MustChangePassword: true,
	}, func(a *models.Account) *models.AuditLog {
		return AuditEntry{
			ActorID:        actorID,
			Action:         models.AuditActionCreate,
			Module:         models.AuditModuleAccounts,
			AffectedObject: a.Username,
			Description:    "account created for " + a.FullName(),
			Details: models.AuditMetadata{
				"account_id":       a.ID,
				"is_administrator": a.IsAdministrator,
				"is_collaborator":  a.IsCollaborator,
			},
		}.auditLog()
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("account already exists",
				slog.String("rut", pkglogger.MaskedRUT(normalizedRUT)),
				slog.String("email", pkglogger.SanitizedEmail(input.Email)),
			)
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account created",
		slog.String("account_id", created.ID),
		slog.String("username", created.Username),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)),
		slog.String("actor_id", actorID),
	)
	s.auditLogger.LogAccountAction("account_created", actorID, created.ID, map[string]string{"username": created.Username})

	return created, nil
}

// UpdateAccount applies an administrator's edits. The account must keep at least one role,
// and an actor can neither deactivate itself nor drop its own management role.
func (s *AccountService) UpdateAccount(ctx context.Context, actorID, id string, changes models.AccountChanges) (*models.Account, error) {
	current, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	if changes.FirstName != nil {
		next.FirstName = strings.TrimSpace(*changes.FirstName)
	}
	if changes.LastName != nil {
		next.LastName = strings.TrimSpace(*changes.LastName)
	}
	if next.FirstName == "" || next.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", models.ErrBadRequest)
	}
	if changes.RUT != nil {
		normalizedRUT, err := rut.Validate(*changes.RUT)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
		}
		next.RUT = normalizedRUT
	}
	if changes.Email != nil {
		next.Email = strings.ToLower(strings.TrimSpace(*changes.Email))
	}
	if changes.IsAdministrator != nil {
		next.IsAdministrator = *changes.IsAdministrator
	}
	if changes.IsCollaborator != nil {
		next.IsCollaborator = *changes.IsCollaborator
	}
	if changes.Active != nil {
		next.Active = *changes.Active
	}

	if !next.IsAdministrator && !next.IsCollaborator {
		return nil, models.ErrRoleRequired
	}
	if actorID == id {
		if !next.Active {
			return nil, models.ErrSelfDeactivation
		}
		if current.CanManage() && !next.CanManage() {
			return nil, models.ErrSelfDemotion
		}
	}

	changed := changedAccountFields(current, &next)
	if len(changed) == 0 {
		return current, nil
	}

	updated, err := s.repo.Update(ctx, &next)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			s.logger.Info("account update conflicts",
				slog.String("account_id", id),
				slog.String("rut", pkglogger.MaskedRUT(next.RUT)),
				slog.String("email", pkglogger.SanitizedEmail(next.Email)),
			)
			return nil, models.ErrConflict
		case errors.Is(err, models.ErrNotFound):
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account updated",
		slog.String("account_id", id),
		slog.String("actor_id", actorID),
		slog.Any("changed", changed),
	)
	s.auditLogger.LogAccountAction("account_updated", actorID, id, map[string]string{
		"username": updated.Username,
		"changed":  strings.Join(changed, ","),
	})
	s.audit.Record(ctx, AuditEntry{
		ActorID:        actorID,
		Action:         models.AuditActionUpdate,
		Module:         models.AuditModuleAccounts,
		AffectedObject: updated.Username,
		Description:    "account updated",
		Details:        models.AuditMetadata{"account_id": id, "changed": changed},
	})

	return updated, nil
}

// changedAccountFields names the editable fields that differ, in a stable order
func changedAccountFields(before, after *models.Account) []string {
	changed := make([]string, 0, 7)
	if before.FirstName != after.FirstName {
		changed = append(changed, "first_name")
	}
	if before.LastName != after.LastName {
		changed = append(changed, "last_name")
	}
	if before.RUT != after.RUT {
		changed = append(changed, "rut")
	}
	if before.Email != after.Email {
		changed = append(changed, "email")
	}
	if before.IsAdministrator != after.IsAdministrator {
		changed = append(changed, "is_administrator")
	}
	if before.IsCollaborator != after.IsCollaborator {
		changed = append(changed, "is_collaborator")
	}
	if before.Active != after.Active {
		changed = append(changed, "active")
	}
	return changed
}

// GetAccount retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found", slog.String("account_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}

// ListAccounts retrieves accounts with pagination
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return accounts, nil
}

// DeactivateAccount disables login for an account. Accounts are never hard-deleted.
func (s *AccountService) DeactivateAccount(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return models.ErrSelfDeactivation
	}

	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if !account.Active {
		return nil
	}

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to deactivate account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deactivated", slog.String("account_id", id), slog.String("actor_id", actorID))
	s.auditLogger.LogAccountAction("account_deactivated", actorID, id, map[string]string{"username": account.Username})
	s.audit.Record(ctx, AuditEntry{
		ActorID:        actorID,
		Action:         models.AuditActionDeactivate,
		Module:         models.AuditModuleAccounts,
		AffectedObject: account.Username,
		Description:    "account deactivated",
		Details:        models.AuditMetadata{"account_id": id},
	})
	return nil
}

// EnsureSuperuser creates the bootstrap superuser when no account holds the username yet.
// An existing account is left untouched.
func (s *AccountService) EnsureSuperuser(ctx context.Context, username, password string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return false, fmt.Errorf("%w: username and password are required", models.ErrBadRequest)
	}

	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("failed to look up bootstrap account: %w", err)
	}

	if err := pkgauth.ValidatePassword(password, username); err != nil {
		return false, fmt.Errorf("%w: %w", models.ErrWeakPassword, err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	created, err := s.repo.CreateWithAudit(ctx, &models.Account{
		Username:        username,
		PasswordHash:    hash,
		FirstName:       username,
		IsAdministrator: true,
		IsSuperuser:     true,
	}, func(a *models.Account) *models.AuditLog {
		return AuditEntry{
			Action:         models.AuditActionCreate,
			Module:         models.AuditModuleAccounts,
			AffectedObject: a.Username,
			Description:    "bootstrap superuser created",
			Details:        models.AuditMetadata{"account_id": a.ID},
		}.auditLog()
	})
	if err != nil {
		return false, fmt.Errorf("failed to create bootstrap account: %w", err)
	}

	s.logger.Info("bootstrap superuser created", slog.String("account_id", created.ID))
	return true, nil
}
