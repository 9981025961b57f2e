package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/cadmium/internal/models"
	pkgauth "github.com/BradenHooton/cadmium/pkg/auth"
)

// MockAccountRepository implements AccountAdminRepository for testing
type MockAccountRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.Account, error)
	GetByUsernameFunc       func(ctx context.Context, username string) (*models.Account, error)
	UpdatePasswordFunc      func(ctx context.Context, id, passwordHash string, mustChange bool) error
	ListFunc                func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	UsernamesWithPrefixFunc func(ctx context.Context, prefix string) ([]string, error)
	CreateFunc              func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateFunc              func(ctx context.Context, account *models.Account) (*models.Account, error)
	SetActiveFunc           func(ctx context.Context, id string, active bool) error
	StatsFunc               func(ctx context.Context) (*models.AccountStats, error)

	// AuditLogs holds the entries written alongside successful creates
	AuditLogs []*models.AuditLog
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash, mustChange)
	}
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) UsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if m.UsernamesWithPrefixFunc != nil {
		return m.UsernamesWithPrefixFunc(ctx, prefix)
	}
	return nil, nil
}

// CreateWithAudit stores through CreateFunc and keeps the audit entry only when the create succeeds
func (m *MockAccountRepository) CreateWithAudit(ctx context.Context, account *models.Account, audit func(*models.Account) *models.AuditLog) (*models.Account, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	created, err := m.CreateFunc(ctx, account)
	if err != nil {
		return nil, err
	}
	m.AuditLogs = append(m.AuditLogs, audit(created))
	return created, nil
}

func (m *MockAccountRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, account)
	}
	return account, nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	return nil
}

func (m *MockAccountRepository) Stats(ctx context.Context) (*models.AccountStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &models.AccountStats{}, nil
}

// MockAttendanceRepository implements AttendanceAdminRepository for testing
type MockAttendanceRepository struct {
	CreateFunc        func(ctx context.Context, a *models.Attendance) (*models.Attendance, error)
	ListByAccountFunc func(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error)
	CountForDateFunc  func(ctx context.Context, date time.Time) (int, error)
	GetByIDFunc       func(ctx context.Context, id string) (*models.Attendance, error)
	ListFunc          func(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error)
	UpdateFunc        func(ctx context.Context, a *models.Attendance) (*models.Attendance, error)
	DeleteFunc        func(ctx context.Context, id string) error
}

func (m *MockAttendanceRepository) GetByID(ctx context.Context, id string) (*models.Attendance, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.Attendance{}, nil
}

func (m *MockAttendanceRepository) Update(ctx context.Context, a *models.Attendance) (*models.Attendance, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, a)
	}
	return a, nil
}

func (m *MockAttendanceRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockAttendanceRepository) Create(ctx context.Context, a *models.Attendance) (*models.Attendance, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, a)
	}
	a.ID = "attendance-1"
	return a, nil
}

func (m *MockAttendanceRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, limit)
	}
	return []*models.Attendance{}, nil
}

func (m *MockAttendanceRepository) CountForDate(ctx context.Context, date time.Time) (int, error) {
	if m.CountForDateFunc != nil {
		return m.CountForDateFunc(ctx, date)
	}
	return 0, nil
}

// MockInventoryRepository implements InventoryRepository for testing
type MockInventoryRepository struct {
	ListFunc func(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error)
}

func (m *MockInventoryRepository) List(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.InventoryItem{}, nil
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	CreateFunc  func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListFunc    func(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
	CleanupFunc func(ctx context.Context, olderThanDays int) (int64, error)
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return log, nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx, olderThanDays)
	}
	return 0, nil
}

// MockAuditRecorder collects recorded entries in memory
type MockAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *MockAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

// Entries returns a copy of everything recorded so far
func (m *MockAuditRecorder) Entries() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Actions returns the action of each recorded entry, in order
func (m *MockAuditRecorder) Actions() []string {
	entries := m.Entries()
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// MockDelayer counts timing delays instead of sleeping
type MockDelayer struct {
	mu        sync.Mutex
	Failures  int
	Successes int
}

func (m *MockDelayer) WaitFrom(ctx context.Context, start time.Time, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.Successes++
	} else {
		m.Failures++
	}
}

// NewTestAccount creates an active account whose password is the given secret
func NewTestAccount(id, username, secret string) *models.Account {
	hash, err := pkgauth.HashPassword(secret)
	if err != nil {
		panic(err)
	}
	now := time.Now()
	return &models.Account{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "Account",
		Email:        username + "@example.com",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestAdministrator creates an active administrator account
func NewTestAdministrator(id, username, secret string) *models.Account {
	a := NewTestAccount(id, username, secret)
	a.IsAdministrator = true
	return a
}

// NewTestCollaborator creates an active collaborator account
func NewTestCollaborator(id, username, secret string) *models.Account {
	a := NewTestAccount(id, username, secret)
	a.IsCollaborator = true
	return a
}
