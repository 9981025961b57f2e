package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/cadmium/internal/cache"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "test-session-secret-32-characters"

// accountTable serves the stored copy of each account by id
type accountTable struct {
	accounts map[string]*models.Account
	err      error
}

func (t *accountTable) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if t.err != nil {
		return nil, t.err
	}
	a, ok := t.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func newTestSessionManager(t *testing.T) (*SessionManager, *time.Time) {
	sm, now, _ := newTestSessionManagerWithAccounts(t)
	return sm, now
}

func newTestSessionManagerWithAccounts(t *testing.T) (*SessionManager, *time.Time, *accountTable) {
	t.Helper()
	now := time.Now()
	table := &accountTable{accounts: map[string]*models.Account{
		"a1": testAdministrator(),
		"c1": testCollaborator(),
	}}
	sm := NewSessionManager(
		cache.NewMemoryStore(),
		NewTokenManager(testSessionSecret),
		table,
		SessionConfig{TTL: 24 * time.Hour, ManagementIdleTimeout: 10 * time.Minute},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	sm.now = func() time.Time { return now }
	return sm, &now, table
}

func testAdministrator() *models.Account {
	return &models.Account{ID: "a1", Username: "admin", IsAdministrator: true, Active: true}
}

func testCollaborator() *models.Account {
	return &models.Account{ID: "c1", Username: "barista", IsCollaborator: true, Active: true}
}

func TestSessionManager_CreateAndLoad(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	created, token, err := sm.Create(ctx, testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Len(t, created.CSRFToken, 64)

	loaded, err := sm.Load(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, "a1", loaded.AccountID)
	assert.Equal(t, models.AccountTypeManagement, loaded.AccountType)
	assert.True(t, loaded.CanManage())
	assert.Equal(t, created.CSRFToken, loaded.CSRFToken)
}

func TestSessionManager_Destroy(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	session, token, err := sm.Create(ctx, testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)

	require.NoError(t, sm.Destroy(ctx, session.ID))

	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestSessionManager_ManagementIdleTimeout(t *testing.T) {
	sm, now := newTestSessionManager(t)
	ctx := context.Background()

	_, token, err := sm.Create(ctx, testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)

	*now = now.Add(9 * time.Minute)
	session, err := sm.Load(ctx, token)
	require.NoError(t, err, "activity within the idle timeout keeps the session")
	require.NoError(t, sm.Touch(ctx, session))

	*now = now.Add(9 * time.Minute)
	session, err = sm.Load(ctx, token)
	require.NoError(t, err, "touching refreshes the idle clock")

	*now = now.Add(11 * time.Minute)
	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired)

	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired, "an idle session is destroyed, not just rejected")
}

func TestSessionManager_CollaboratorHasNoIdleTimeout(t *testing.T) {
	sm, now := newTestSessionManager(t)
	ctx := context.Background()

	_, token, err := sm.Create(ctx, testCollaborator(), models.AccountTypeCollaborator)
	require.NoError(t, err)

	*now = now.Add(3 * time.Hour)
	_, err = sm.Load(ctx, token)
	assert.NoError(t, err)
}

func TestSessionManager_DeactivatedAccountLosesSession(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	ctx := context.Background()

	_, token, err := sm.Create(ctx, testCollaborator(), models.AccountTypeCollaborator)
	require.NoError(t, err)

	table.accounts["c1"].Active = false

	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired)

	table.accounts["c1"].Active = true
	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired, "reactivation does not revive a destroyed session")
}

func TestSessionManager_DeletedAccountLosesSession(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	ctx := context.Background()

	_, token, err := sm.Create(ctx, testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)

	delete(table.accounts, "a1")

	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestSessionManager_RevokedRoleLosesSession(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	ctx := context.Background()

	_, token, err := sm.Create(ctx, testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)

	table.accounts["a1"].IsAdministrator = false
	table.accounts["a1"].IsCollaborator = true

	_, err = sm.Load(ctx, token)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestSessionManager_ResetForcesPasswordChange(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	ctx := context.Background()

	created, token, err := sm.Create(ctx, testCollaborator(), models.AccountTypeCollaborator)
	require.NoError(t, err)
	assert.False(t, created.MustChangePassword)

	// An administrator resets the password while the session is live
	table.accounts["c1"].MustChangePassword = true

	loaded, err := sm.Load(ctx, token)
	require.NoError(t, err)
	assert.True(t, loaded.MustChangePassword)
	assert.True(t, loaded.Principal().MustChangePassword)
}

func TestSessionManager_AccountStoreErrorKeepsSession(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	ctx := context.Background()

	_, token, err := sm.Create(ctx, testCollaborator(), models.AccountTypeCollaborator)
	require.NoError(t, err)

	table.err = errors.New("connection refused")
	_, err = sm.Load(ctx, token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrSessionExpired)

	table.err = nil
	_, err = sm.Load(ctx, token)
	assert.NoError(t, err, "a transient store error must not end the session")
}

func TestSessionManager_RejectsForeignTokens(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	session, _, err := sm.Create(ctx, testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other := NewTokenManager("another-secret-of-sufficient-size")
		token, err := other.GenerateSessionToken(session.ID, "a1", time.Now(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = sm.Load(ctx, token)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("subject mismatch", func(t *testing.T) {
		token, err := sm.tokens.GenerateSessionToken(session.ID, "someone-else", time.Now(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = sm.Load(ctx, token)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := sm.Load(ctx, "not-a-token")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestTokenManager_RejectsOtherTypes(t *testing.T) {
	tm := NewTokenManager(testSessionSecret)

	claims := &models.SessionClaims{
		Type:      "refresh",
		SessionID: "sid",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSecret))
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager(testSessionSecret)
	past := time.Now().Add(-2 * time.Hour)

	token, err := tm.GenerateSessionToken("sid", "a1", past, past.Add(time.Hour))
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidCSRFToken(t *testing.T) {
	session := &models.Session{CSRFToken: "abc123"}

	assert.True(t, ValidCSRFToken(session, "abc123"))
	assert.False(t, ValidCSRFToken(session, "abc124"))
	assert.False(t, ValidCSRFToken(session, ""))
	assert.False(t, ValidCSRFToken(&models.Session{}, ""))
	assert.False(t, ValidCSRFToken(nil, "abc123"))
}
