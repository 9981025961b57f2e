package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/cadmium/internal/cache"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/google/uuid"
)

const sessionKeyPrefix = "session:"

// SessionConfig holds session lifetime policy
type SessionConfig struct {
	TTL                   time.Duration // absolute lifetime
	ManagementIdleTimeout time.Duration // zero disables the idle check
}

// AccountLookup resolves the stored account behind a session
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// SessionManager keeps session records in a cache.Store and names them with signed tokens
type SessionManager struct {
	store    cache.Store
	tokens   *TokenManager
	accounts AccountLookup
	config   SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionManager creates a new SessionManager. Loaded sessions are revalidated
// against accounts on every request.
func NewSessionManager(store cache.Store, tokens *TokenManager, accounts AccountLookup, config SessionConfig, logger *slog.Logger) *SessionManager {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &SessionManager{
		store:    store,
		tokens:   tokens,
		accounts: accounts,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a session for account acting as accountType and returns the record with its cookie token
func (m *SessionManager) Create(ctx context.Context, account *models.Account, accountType models.AccountType) (*models.Session, string, error) {
	csrfToken, err := GenerateCSRFToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate csrf token: %w", err)
	}

	now := m.now()
	session := &models.Session{
		ID:                 uuid.New().String(),
		AccountID:          account.ID,
		Username:           account.Username,
		AccountType:        accountType,
		IsAdministrator:    account.IsAdministrator,
		IsCollaborator:     account.IsCollaborator,
		IsSuperuser:        account.IsSuperuser,
		MustChangePassword: account.MustChangePassword,
		CSRFToken:          csrfToken,
		CreatedAt:          now,
		LastActivity:       now,
		ExpiresAt:          now.Add(m.config.TTL),
	}

	if err := m.save(ctx, session); err != nil {
		return nil, "", err
	}

	token, err := m.tokens.GenerateSessionToken(session.ID, account.ID, now, session.ExpiresAt)
	if err != nil {
		_ = m.store.Delete(ctx, sessionKeyPrefix+session.ID)
		return nil, "", err
	}

	return session, token, nil
}

// Load resolves a cookie token to its live session. A management session idle for
// longer than the idle timeout, or whose account was disabled or lost the role the
// session acts as, is destroyed and reported as ErrSessionExpired. Role flags and the
// pending password change are refreshed from the stored account.
func (m *SessionManager) Load(ctx context.Context, token string) (*models.Session, error) {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}

	raw, err := m.store.Get(ctx, sessionKeyPrefix+claims.SessionID)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, models.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		m.logger.Warn("discarding malformed session", slog.String("session_id", claims.SessionID), slog.Any("error", err))
		_ = m.store.Delete(ctx, sessionKeyPrefix+claims.SessionID)
		return nil, models.ErrSessionExpired
	}

	if session.AccountID != claims.Subject {
		return nil, models.ErrUnauthorized
	}

	now := m.now()
	if !now.Before(session.ExpiresAt) {
		_ = m.Destroy(ctx, session.ID)
		return nil, models.ErrSessionExpired
	}

	if m.idleExpired(&session, now) {
		m.logger.Info("management session idle timeout",
			slog.String("session_id", session.ID),
			slog.String("account_id", session.AccountID),
			slog.Duration("idle", now.Sub(session.LastActivity)),
		)
		if err := m.Destroy(ctx, session.ID); err != nil {
			m.logger.Error("failed to destroy idle session", slog.String("session_id", session.ID), slog.Any("error", err))
		}
		return nil, models.ErrSessionExpired
	}

	if err := m.revalidate(ctx, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (m *SessionManager) revalidate(ctx context.Context, session *models.Session) error {
	account, err := m.accounts.GetByID(ctx, session.AccountID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("load session account: %w", err)
	}

	if err != nil || !account.Active || !account.HasRoleFor(session.AccountType) {
		m.logger.Info("ending session of disabled account",
			slog.String("session_id", session.ID),
			slog.String("account_id", session.AccountID),
		)
		if err := m.Destroy(ctx, session.ID); err != nil {
			m.logger.Error("failed to destroy revoked session", slog.String("session_id", session.ID), slog.Any("error", err))
		}
		return models.ErrSessionExpired
	}

	session.Username = account.Username
	session.IsAdministrator = account.IsAdministrator
	session.IsCollaborator = account.IsCollaborator
	session.IsSuperuser = account.IsSuperuser
	session.MustChangePassword = account.MustChangePassword
	return nil
}

func (m *SessionManager) idleExpired(session *models.Session, now time.Time) bool {
	if m.config.ManagementIdleTimeout <= 0 || session.AccountType != models.AccountTypeManagement {
		return false
	}
	return now.Sub(session.LastActivity) > m.config.ManagementIdleTimeout
}

// Touch records activity on the session
func (m *SessionManager) Touch(ctx context.Context, session *models.Session) error {
	session.LastActivity = m.now()
	return m.save(ctx, session)
}

// Destroy removes the session record; the token becomes useless immediately
func (m *SessionManager) Destroy(ctx context.Context, sid string) error {
	if err := m.store.Delete(ctx, sessionKeyPrefix+sid); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func (m *SessionManager) save(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return models.ErrSessionExpired
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, sessionKeyPrefix+session.ID, raw, ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
