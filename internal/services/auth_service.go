package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/cadmium/internal/models"
	pkgauth "github.com/BradenHooton/cadmium/pkg/auth"
	pkglogger "github.com/BradenHooton/cadmium/pkg/logger"
)

// Post-login destinations
const (
	DestinationChangePassword = "/change-password"
	DestinationManagement     = "/panel"
	DestinationCollaborator   = "/attendance"
)

// AccountRepository defines the account persistence used by the auth and account services
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error
}

// Delayer pads failed logins to a uniform duration
type Delayer interface {
	WaitFrom(ctx context.Context, start time.Time, success bool)
}

type noDelay struct{}

func (noDelay) WaitFrom(context.Context, time.Time, bool) {}

// AuthConfig holds the login state machine policy
type AuthConfig struct {
	DefaultPassword string // assigned on creation and on administrator reset
}

// LoginAttempt is a submitted login form
type LoginAttempt struct {
	AccountType string
	Handle      string
	Secret      string
	Next        string // optional deep-link target
	IPAddress   string
	UserAgent   string
}

// LoginResult tells the caller who logged in, as what, and where to go
type LoginResult struct {
	Account     *models.Account
	AccountType models.AccountType
	Destination string
	// Rerouted is true when an existing session was re-routed without checking credentials
	Rerouted bool
}

// AuthService implements the login and role-routing state machine
type AuthService struct {
	repo        AccountRepository
	config      AuthConfig
	delay       Delayer
	audit       AuditRecorder
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	dummyHash   string
}

// NewAuthService creates a new AuthService. delay may be nil.
func NewAuthService(repo AccountRepository, config AuthConfig, delay Delayer, audit AuditRecorder, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	if delay == nil {
		delay = noDelay{}
	}
	if config.DefaultPassword == "" {
		config.DefaultPassword = "popup"
	}

	// Compared against when the handle is unknown so both paths cost one bcrypt verification
	dummyHash, err := pkgauth.HashPassword("cadmium-unknown-account")
	if err != nil {
		logger.Error("failed to prepare dummy password hash", slog.Any("error", err))
	}

	return &AuthService{
		repo:        repo,
		config:      config,
		delay:       delay,
		audit:       audit,
		logger:      logger,
		auditLogger: auditLogger,
		dummyHash:   dummyHash,
	}
}

// AttemptLogin runs the login state machine. current is the principal of an existing
// session, or nil for an anonymous request.
func (s *AuthService) AttemptLogin(ctx context.Context, attempt LoginAttempt, current *models.Account) (*LoginResult, error) {
	if current != nil {
		account, err := s.reloadPrincipal(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		// A principal that was deleted or disabled since login is handled as anonymous
		if account != nil {
			accountType := account.PrimaryType()
			if selected, ok := models.ParseAccountType(attempt.AccountType); ok && account.HasRoleFor(selected) {
				accountType = selected
			}
			return &LoginResult{
				Account:     account,
				AccountType: accountType,
				Destination: route(account, attempt.Next),
				Rerouted:    true,
			}, nil
		}
	}

	start := time.Now()

	account, accountType, err := s.authenticate(ctx, attempt)
	if err != nil {
		if !errors.Is(err, models.ErrInternalServer) {
			s.recordFailure(ctx, attempt, account, err)
			s.delay.WaitFrom(ctx, start, false)
		}
		return nil, err
	}

	s.logger.Info("account logged in",
		slog.String("account_id", account.ID),
		slog.String("account_type", string(accountType)),
	)
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:   "login",
		AccountID:   account.ID,
		Username:    account.Username,
		AccountType: string(accountType),
		IPAddress:   attempt.IPAddress,
		UserAgent:   attempt.UserAgent,
		Success:     true,
	})
	s.audit.Record(ctx, AuditEntry{
		ActorID:        account.ID,
		Action:         models.AuditActionLogin,
		Module:         models.AuditModuleAuth,
		AffectedObject: account.Username,
		Description:    "login as " + string(accountType),
		IPAddress:      attempt.IPAddress,
	})

	return &LoginResult{
		Account:     account,
		AccountType: accountType,
		Destination: route(account, attempt.Next),
	}, nil
}

// reloadPrincipal fetches the stored account behind a session principal. It returns
// nil without error when the account is gone, disabled or holds no staff role.
func (s *AuthService) reloadPrincipal(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("session principal no longer exists", slog.String("account_id", accountID))
			return nil, nil
		}
		s.logger.Error("failed to reload session principal", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !account.Active || (!account.CanManage() && !account.IsCollaborator) {
		s.logger.Warn("ignoring session of disabled account", slog.String("account_id", accountID))
		return nil, nil
	}
	return account, nil
}

// authenticate covers selection, credential and role checks. The account is
// returned alongside an error when it was found, for failure attribution.
func (s *AuthService) authenticate(ctx context.Context, attempt LoginAttempt) (*models.Account, models.AccountType, error) {
	accountType, ok := models.ParseAccountType(attempt.AccountType)
	if !ok {
		return nil, "", models.ErrMissingSelection
	}

	handle := strings.TrimSpace(attempt.Handle)
	if handle == "" || attempt.Secret == "" {
		return nil, accountType, models.ErrMissingCredentials
	}

	account, err := s.repo.GetByUsername(ctx, handle)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = pkgauth.ComparePassword(s.dummyHash, attempt.Secret)
			return nil, accountType, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load account for login", slog.Any("error", err))
		return nil, accountType, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, attempt.Secret); err != nil {
		return account, accountType, models.ErrInvalidCredentials
	}

	// Only reported once the secret is proven, so it never reveals a handle to a guesser
	if !account.Active {
		return account, accountType, models.ErrAccountDisabled
	}

	if !account.HasRoleFor(accountType) {
		return account, accountType, models.ErrInvalidCredentials
	}

	return account, accountType, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingSelection):
		return "missing_selection"
	case errors.Is(err, models.ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, models.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "invalid_credentials"
	}
}

func (s *AuthService) recordFailure(ctx context.Context, attempt LoginAttempt, account *models.Account, err error) {
	reason := failureReason(err)

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		AccountType:   attempt.AccountType,
		IPAddress:     attempt.IPAddress,
		UserAgent:     attempt.UserAgent,
		FailureReason: reason,
	}
	entry := AuditEntry{
		Action:      models.AuditActionLoginFailed,
		Module:      models.AuditModuleAuth,
		Description: "login rejected: " + reason,
		Details:     models.AuditMetadata{"reason": reason, "account_type": attempt.AccountType},
		IPAddress:   attempt.IPAddress,
	}
	if account != nil {
		event.AccountID = account.ID
		entry.AffectedObject = account.Username
	}

	s.logger.Info("login failed", slog.String("reason", reason))
	s.auditLogger.LogAuthAttempt(event)
	s.audit.Record(ctx, entry)
}

// route picks the post-login destination. A pending forced change beats any deep link.
func route(account *models.Account, next string) string {
	if account.MustChangePassword {
		return DestinationChangePassword
	}
	if IsSafeRedirect(next) {
		return next
	}
	if account.CanManage() {
		return DestinationManagement
	}
	return DestinationCollaborator
}

// IsSafeRedirect accepts only same-site absolute paths
func IsSafeRedirect(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return false
	}
	return !strings.ContainsAny(next, "\r\n")
}

// ChangePassword replaces the caller's own password. The caller must end the session afterwards.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentSecret, newSecret, confirmSecret string) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load account for password change", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, currentSecret); err != nil {
		s.auditLogger.LogPasswordChange(accountID, "", false)
		return models.ErrWrongCurrentPassword
	}
	if newSecret != confirmSecret {
		return models.ErrConfirmationMismatch
	}
	if newSecret == currentSecret {
		return models.ErrMustDiffer
	}
	if err := pkgauth.ValidatePassword(newSecret, account.Username, account.FirstName, account.LastName, account.Email); err != nil {
		return fmt.Errorf("%w: %w", models.ErrWeakPassword, err)
	}

	hash, err := pkgauth.HashPassword(newSecret)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, accountID, hash, false); err != nil {
		s.logger.Error("failed to store new password", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("account_id", accountID))
	s.auditLogger.LogPasswordChange(accountID, "", true)
	s.audit.Record(ctx, AuditEntry{
		ActorID:        accountID,
		Action:         models.AuditActionPasswordChange,
		Module:         models.AuditModuleAuth,
		AffectedObject: account.Username,
		Description:    "password changed by account owner",
	})
	return nil
}

// AdminResetPassword sets the target's password back to the default and forces a change at next login
func (s *AuthService) AdminResetPassword(ctx context.Context, actorID, targetID string) error {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrForbidden
		}
		s.logger.Error("failed to load reset actor", slog.String("actor_id", actorID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !actor.Active || !actor.CanManage() {
		s.logger.Warn("password reset denied", slog.String("actor_id", actorID), slog.String("target_id", targetID))
		return models.ErrForbidden
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load reset target", slog.String("target_id", targetID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	hash, err := pkgauth.HashPassword(s.config.DefaultPassword)
	if err != nil {
		s.logger.Error("failed to hash default password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, target.ID, hash, true); err != nil {
		s.logger.Error("failed to reset password", slog.String("target_id", targetID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset by administrator",
		slog.String("actor_id", actorID),
		slog.String("target_id", target.ID),
	)
	s.auditLogger.LogAccountAction("password_reset", actorID, target.ID, map[string]string{"username": target.Username})
	s.audit.Record(ctx, AuditEntry{
		ActorID:        actorID,
		Action:         models.AuditActionPasswordReset,
		Module:         models.AuditModuleAccounts,
		AffectedObject: target.Username,
		Description:    fmt.Sprintf("password of %s reset to default by %s", target.Username, actor.Username),
		Details:        models.AuditMetadata{"target_id": target.ID, "actor_id": actorID},
	})
	return nil
}
