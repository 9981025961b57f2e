package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/cadmium/internal/cache"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore is a cache.Store whose every call fails
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (failingStore) Delete(context.Context, string) error { return errStoreDown }
func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (failingStore) Ping(context.Context) error { return errStoreDown }

var testGuardConfig = AdminGuardConfig{
	MaxLoginAttempts:  5,
	LockoutDuration:   900 * time.Second,
	RateLimitRequests: 60,
	RateLimitWindow:   60 * time.Second,
	StoreTimeout:      time.Second,
	FailClosed:        true,
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard(store cache.Store, config AdminGuardConfig) (*AdminGuardService, *MockAuditRecorder, *fakeClock) {
	audit := &MockAuditRecorder{}
	clock := &fakeClock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)}
	guard := NewAdminGuardService(store, config, discardLogger(), discardAuditLogger(), audit)
	guard.now = clock.Now
	return guard, audit, clock
}

func TestAdminGuard_AllowsFreshAddress(t *testing.T) {
	guard, _, _ := newTestGuard(cache.NewMemoryStore(), testGuardConfig)

	d := guard.Check(context.Background(), GuardRequest{IP: "203.0.113.7", Path: "/admin-x/"})

	assert.Equal(t, GuardAllowed, d)
	assert.NoError(t, d.Err())
}

func TestAdminGuard_BlocksAfterMaxFailures(t *testing.T) {
	store := cache.NewMemoryStore()
	guard, audit, _ := newTestGuard(store, testGuardConfig)
	ctx := context.Background()
	ip := "203.0.113.7"

	for i := 1; i < 5; i++ {
		guard.RecordFailedLogin(ctx, ip, "/admin-x/login/", "admin")
		blocked, err := guard.IsBlocked(ctx, ip)
		require.NoError(t, err)
		assert.False(t, blocked, "blocked after %d failures", i)

		attempts, err := guard.FailedAttempts(ctx, ip)
		require.NoError(t, err)
		assert.Equal(t, i, attempts)
	}

	guard.RecordFailedLogin(ctx, ip, "/admin-x/login/", "admin")

	blocked, err := guard.IsBlocked(ctx, ip)
	require.NoError(t, err)
	assert.True(t, blocked)

	attempts, err := guard.FailedAttempts(ctx, ip)
	require.NoError(t, err)
	assert.Equal(t, 0, attempts, "counter resets when the block is set")

	d := guard.Check(ctx, GuardRequest{IP: ip, Path: "/admin-x/"})
	assert.Equal(t, GuardBlocked, d)
	assert.ErrorIs(t, d.Err(), models.ErrBlocked)

	assert.Equal(t, []string{models.AuditActionIPBlocked}, audit.Actions())
}

func TestAdminGuard_BlockIsPerAddress(t *testing.T) {
	guard, _, _ := newTestGuard(cache.NewMemoryStore(), testGuardConfig)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		guard.RecordFailedLogin(ctx, "203.0.113.7", "/admin-x/login/", "")
	}

	assert.Equal(t, GuardBlocked, guard.Check(ctx, GuardRequest{IP: "203.0.113.7"}))
	assert.Equal(t, GuardAllowed, guard.Check(ctx, GuardRequest{IP: "198.51.100.1"}))
}

func TestAdminGuard_LoginFailedCountsOnlyCredentialOutcomes(t *testing.T) {
	guard, _, _ := newTestGuard(cache.NewMemoryStore(), testGuardConfig)
	ctx := context.Background()
	ip := "203.0.113.7"

	guard.LoginFailed(ctx, LoginFailure{IP: ip, Reason: models.ErrMissingSelection})
	guard.LoginFailed(ctx, LoginFailure{IP: ip, Reason: models.ErrInternalServer})
	attempts, err := guard.FailedAttempts(ctx, ip)
	require.NoError(t, err)
	assert.Equal(t, 0, attempts)

	guard.LoginFailed(ctx, LoginFailure{IP: ip, Reason: models.ErrInvalidCredentials})
	guard.LoginFailed(ctx, LoginFailure{IP: ip, Reason: models.ErrMissingCredentials})
	guard.LoginFailed(ctx, LoginFailure{IP: ip, Reason: models.ErrAccountDisabled})
	attempts, err = guard.FailedAttempts(ctx, ip)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestAdminGuard_RateLimitSameWindow(t *testing.T) {
	guard, _, _ := newTestGuard(cache.NewMemoryStore(), testGuardConfig)
	ctx := context.Background()
	req := GuardRequest{IP: "203.0.113.7", Path: "/admin-x/"}

	for i := 1; i <= 60; i++ {
		require.Equal(t, GuardAllowed, guard.Check(ctx, req), "request %d", i)
	}

	d := guard.Check(ctx, req)
	assert.Equal(t, GuardRateLimited, d)
	assert.ErrorIs(t, d.Err(), models.ErrRateLimited)
}

func TestAdminGuard_RateLimitSlidingWindow(t *testing.T) {
	guard, _, clock := newTestGuard(cache.NewMemoryStore(), testGuardConfig)
	ctx := context.Background()
	req := GuardRequest{IP: "203.0.113.7", Path: "/admin-x/"}

	// One request per second never holds more than 60 live entries
	for i := 1; i <= 120; i++ {
		require.Equal(t, GuardAllowed, guard.Check(ctx, req), "request %d", i)
		clock.Advance(time.Second)
	}
}

func TestAdminGuard_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	guard, _, clock := newTestGuard(cache.NewMemoryStore(), testGuardConfig)
	ctx := context.Background()
	req := GuardRequest{IP: "203.0.113.7"}

	for i := 0; i < 60; i++ {
		require.Equal(t, GuardAllowed, guard.Check(ctx, req))
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, GuardRateLimited, guard.Check(ctx, req))
		clock.Advance(5 * time.Second)
	}

	// 60s after the burst every stored entry has aged out
	clock.Advance(11 * time.Second)
	assert.Equal(t, GuardAllowed, guard.Check(ctx, req))
}

func TestAdminGuard_BlockedBeatsRateLimit(t *testing.T) {
	cfg := testGuardConfig
	cfg.RateLimitRequests = 1
	guard, _, _ := newTestGuard(cache.NewMemoryStore(), cfg)
	ctx := context.Background()
	req := GuardRequest{IP: "203.0.113.7"}

	require.Equal(t, GuardAllowed, guard.Check(ctx, req))
	for i := 0; i < 5; i++ {
		guard.RecordFailedLogin(ctx, req.IP, "", "")
	}

	assert.Equal(t, GuardBlocked, guard.Check(ctx, req))
}

func TestAdminGuard_StoreFailure(t *testing.T) {
	t.Run("fail closed", func(t *testing.T) {
		guard, _, _ := newTestGuard(failingStore{}, testGuardConfig)

		d := guard.Check(context.Background(), GuardRequest{IP: "203.0.113.7"})

		assert.Equal(t, GuardUnavailable, d)
		assert.ErrorIs(t, d.Err(), models.ErrGuardUnavailable)
	})

	t.Run("fail open", func(t *testing.T) {
		cfg := testGuardConfig
		cfg.FailClosed = false
		guard, _, _ := newTestGuard(failingStore{}, cfg)

		assert.Equal(t, GuardAllowed, guard.Check(context.Background(), GuardRequest{IP: "203.0.113.7"}))
	})

	t.Run("failure counting is swallowed", func(t *testing.T) {
		guard, audit, _ := newTestGuard(failingStore{}, testGuardConfig)

		assert.NotPanics(t, func() {
			guard.RecordFailedLogin(context.Background(), "203.0.113.7", "", "")
		})
		assert.Empty(t, audit.Entries())
	})
}

func TestAdminGuard_Unblock(t *testing.T) {
	guard, audit, _ := newTestGuard(cache.NewMemoryStore(), testGuardConfig)
	ctx := context.Background()
	ip := "203.0.113.7"

	for i := 0; i < 5; i++ {
		guard.RecordFailedLogin(ctx, ip, "", "")
	}
	require.Equal(t, GuardBlocked, guard.Check(ctx, GuardRequest{IP: ip}))

	require.NoError(t, guard.Unblock(ctx, "a1", ip))

	assert.Equal(t, GuardAllowed, guard.Check(ctx, GuardRequest{IP: ip}))
	assert.Equal(t, []string{models.AuditActionIPBlocked, models.AuditActionIPUnblocked}, audit.Actions())
	assert.Equal(t, "a1", audit.Entries()[1].ActorID)
}

func TestAdminGuard_MalformedWindowIsDiscarded(t *testing.T) {
	store := cache.NewMemoryStore()
	guard, _, _ := newTestGuard(store, testGuardConfig)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, rateWindowKeyPrefix+"203.0.113.7", []byte("not json"), time.Minute))

	assert.Equal(t, GuardAllowed, guard.Check(ctx, GuardRequest{IP: "203.0.113.7"}))
}

func TestGuardDecision_String(t *testing.T) {
	assert.Equal(t, "allowed", GuardAllowed.String())
	assert.Equal(t, "blocked", GuardBlocked.String())
	assert.Equal(t, "rate_limited", GuardRateLimited.String())
	assert.Equal(t, "unavailable", GuardUnavailable.String())
}
