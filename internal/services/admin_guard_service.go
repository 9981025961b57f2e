package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/cadmium/internal/cache"
	"github.com/BradenHooton/cadmium/internal/models"
	pkglogger "github.com/BradenHooton/cadmium/pkg/logger"
)

// Ephemeral key prefixes; the client IP is appended
const (
	loginAttemptsKeyPrefix = "admin_login_attempts:"
	blockedIPKeyPrefix     = "admin_blocked_ip:"
	rateWindowKeyPrefix    = "admin_rate_limit:"
)

// GuardDecision is the outcome of an inbound check on the privileged path
type GuardDecision int

const (
	GuardAllowed GuardDecision = iota
	GuardBlocked
	GuardRateLimited
	GuardUnavailable
)

func (d GuardDecision) String() string {
	switch d {
	case GuardAllowed:
		return "allowed"
	case GuardBlocked:
		return "blocked"
	case GuardRateLimited:
		return "rate_limited"
	case GuardUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Err maps a denial to its sentinel; Allowed maps to nil
func (d GuardDecision) Err() error {
	switch d {
	case GuardBlocked:
		return models.ErrBlocked
	case GuardRateLimited:
		return models.ErrRateLimited
	case GuardUnavailable:
		return models.ErrGuardUnavailable
	default:
		return nil
	}
}

// AdminGuardConfig holds the lockout and rate-limit policy
type AdminGuardConfig struct {
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	StoreTimeout      time.Duration
	FailClosed        bool // deny checks when the store cannot be read
}

// GuardRequest describes an inbound request to the privileged path
type GuardRequest struct {
	IP   string
	Path string
}

// LoginFailure is emitted by the login handler whenever a privileged login attempt fails
type LoginFailure struct {
	IP     string
	Path   string
	Handle string
	Reason error
}

// LoginFailureObserver subscribes to failed privileged login attempts
type LoginFailureObserver interface {
	LoginFailed(ctx context.Context, failure LoginFailure)
}

// CountsAsFailedLogin reports whether a login error should count toward a lockout.
// Selection mistakes and infrastructure errors do not.
func CountsAsFailedLogin(err error) bool {
	return errors.Is(err, models.ErrMissingCredentials) ||
		errors.Is(err, models.ErrInvalidCredentials) ||
		errors.Is(err, models.ErrAccountDisabled)
}

// AdminGuardService tracks per-IP lockouts and request rates for the privileged path.
// Counters live in an injected cache.Store so they are shared across instances
// when a shared backend is configured.
type AdminGuardService struct {
	store       cache.Store
	config      AdminGuardConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	audit       AuditRecorder
	now         func() time.Time
}

func NewAdminGuardService(store cache.Store, config AdminGuardConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, audit AuditRecorder) *AdminGuardService {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 3 * time.Second
	}
	return &AdminGuardService{
		store:       store,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		audit:       audit,
		now:         time.Now,
	}
}

func (s *AdminGuardService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

// Check decides whether a request to the privileged path may proceed.
// A blocked address is rejected before the rate window is touched, and a
// rejected request is not added to the window.
func (s *AdminGuardService) Check(ctx context.Context, req GuardRequest) GuardDecision {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	blocked, err := s.isBlocked(ctx, req.IP)
	if err != nil {
		return s.storeFailure(req, "blocked lookup", err)
	}
	if blocked {
		s.logDecision(req, GuardBlocked, 0)
		return GuardBlocked
	}

	now := s.now()
	window, err := s.loadWindow(ctx, req.IP)
	if err != nil {
		return s.storeFailure(req, "rate window lookup", err)
	}

	window = pruneWindow(window, now, s.config.RateLimitWindow)
	window = append(window, now.UnixNano())

	if len(window) > s.config.RateLimitRequests {
		s.logDecision(req, GuardRateLimited, len(window))
		return GuardRateLimited
	}

	if err := s.saveWindow(ctx, req.IP, window); err != nil {
		return s.storeFailure(req, "rate window update", err)
	}

	s.logger.Debug("privileged request allowed",
		slog.String("ip", req.IP),
		slog.String("path", req.Path),
		slog.Int("window_count", len(window)),
	)
	return GuardAllowed
}

func (s *AdminGuardService) storeFailure(req GuardRequest, op string, err error) GuardDecision {
	s.logger.Error("admin guard store unavailable",
		slog.String("operation", op),
		slog.String("ip", req.IP),
		slog.String("path", req.Path),
		slog.Bool("fail_closed", s.config.FailClosed),
		slog.Any("error", err),
	)
	if s.config.FailClosed {
		s.logDecision(req, GuardUnavailable, 0)
		return GuardUnavailable
	}
	return GuardAllowed
}

func (s *AdminGuardService) logDecision(req GuardRequest, d GuardDecision, count int) {
	s.auditLogger.LogGuardEvent(pkglogger.GuardEvent{
		Transition: d.String(),
		IPAddress:  req.IP,
		Path:       req.Path,
		Attempts:   count,
	})
}

// pruneWindow keeps the timestamps younger than window, preserving order
func pruneWindow(window []int64, now time.Time, width time.Duration) []int64 {
	kept := window[:0]
	for _, ts := range window {
		if now.Sub(time.Unix(0, ts)) < width {
			kept = append(kept, ts)
		}
	}
	return kept
}

func (s *AdminGuardService) loadWindow(ctx context.Context, ip string) ([]int64, error) {
	raw, err := s.store.Get(ctx, rateWindowKeyPrefix+ip)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var window []int64
	if err := json.Unmarshal(raw, &window); err != nil {
		s.logger.Warn("discarding malformed rate window", slog.String("ip", ip), slog.Any("error", err))
		return nil, nil
	}
	return window, nil
}

func (s *AdminGuardService) saveWindow(ctx context.Context, ip string, window []int64) error {
	raw, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("encode rate window: %w", err)
	}
	return s.store.Set(ctx, rateWindowKeyPrefix+ip, raw, s.config.RateLimitWindow)
}

func (s *AdminGuardService) isBlocked(ctx context.Context, ip string) (bool, error) {
	_, err := s.store.Get(ctx, blockedIPKeyPrefix+ip)
	if errors.Is(err, cache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoginFailed implements LoginFailureObserver
func (s *AdminGuardService) LoginFailed(ctx context.Context, failure LoginFailure) {
	if !CountsAsFailedLogin(failure.Reason) {
		return
	}
	s.RecordFailedLogin(ctx, failure.IP, failure.Path, failure.Handle)
}

// RecordFailedLogin counts a failed privileged login and blocks the address once
// the threshold is reached. Store errors are logged and swallowed.
func (s *AdminGuardService) RecordFailedLogin(ctx context.Context, ip, path, handle string) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	attempts, err := s.store.Increment(ctx, loginAttemptsKeyPrefix+ip, s.config.LockoutDuration)
	if err != nil {
		s.logger.Error("failed to record admin login failure",
			slog.String("ip", ip),
			slog.String("path", path),
			slog.Any("error", err),
		)
		return
	}

	s.auditLogger.LogGuardEvent(pkglogger.GuardEvent{
		Transition: "failure_recorded",
		IPAddress:  ip,
		Path:       path,
		Principal:  handle,
		Attempts:   int(attempts),
	})

	if attempts < int64(s.config.MaxLoginAttempts) {
		return
	}

	if err := s.store.Set(ctx, blockedIPKeyPrefix+ip, []byte("1"), s.config.LockoutDuration); err != nil {
		s.logger.Error("failed to block address", slog.String("ip", ip), slog.Any("error", err))
		return
	}
	if err := s.store.Delete(ctx, loginAttemptsKeyPrefix+ip); err != nil {
		s.logger.Error("failed to reset login attempt counter", slog.String("ip", ip), slog.Any("error", err))
	}

	s.auditLogger.LogGuardEvent(pkglogger.GuardEvent{
		Transition: "ip_blocked",
		IPAddress:  ip,
		Path:       path,
		Principal:  handle,
		Attempts:   int(attempts),
	})
	s.audit.Record(context.WithoutCancel(ctx), AuditEntry{
		Action:         models.AuditActionIPBlocked,
		Module:         models.AuditModuleAdminGuard,
		AffectedObject: ip,
		Description:    fmt.Sprintf("address blocked after %d failed admin logins", attempts),
		Details: models.AuditMetadata{
			"attempts":         attempts,
			"lockout_seconds":  int(s.config.LockoutDuration.Seconds()),
			"last_handle_used": handle,
		},
		IPAddress: ip,
	})
}

// IsBlocked reports whether ip is currently locked out
func (s *AdminGuardService) IsBlocked(ctx context.Context, ip string) (bool, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.isBlocked(ctx, ip)
}

// FailedAttempts returns the current consecutive failure count for ip
func (s *AdminGuardService) FailedAttempts(ctx context.Context, ip string) (int, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	raw, err := s.store.Get(ctx, loginAttemptsKeyPrefix+ip)
	if errors.Is(err, cache.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Unblock lifts a lockout early and clears the failure counter
func (s *AdminGuardService) Unblock(ctx context.Context, actorID, ip string) error {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.Delete(sctx, blockedIPKeyPrefix+ip); err != nil {
		return fmt.Errorf("unblock %s: %w", ip, err)
	}
	if err := s.store.Delete(sctx, loginAttemptsKeyPrefix+ip); err != nil {
		return fmt.Errorf("reset attempts for %s: %w", ip, err)
	}

	s.auditLogger.LogGuardEvent(pkglogger.GuardEvent{
		Transition: "ip_unblocked",
		IPAddress:  ip,
		Principal:  actorID,
	})
	s.audit.Record(ctx, AuditEntry{
		ActorID:        actorID,
		Action:         models.AuditActionIPUnblocked,
		Module:         models.AuditModuleAdminGuard,
		AffectedObject: ip,
		Description:    "address unblocked by administrator",
	})
	return nil
}
