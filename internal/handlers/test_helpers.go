package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/BradenHooton/cadmium/internal/services"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext attaches a session to the request the way LoadSession does
func WithSessionContext(req *http.Request, session *models.Session) *http.Request {
	return req.WithContext(auth.WithSession(req.Context(), session))
}

// TestManagementSession returns a session for an administrator
func TestManagementSession(accountID string) *models.Session {
	return &models.Session{
		ID:              "session-" + accountID,
		AccountID:       accountID,
		Username:        "admin",
		AccountType:     models.AccountTypeManagement,
		IsAdministrator: true,
		CSRFToken:       "csrf-" + accountID,
	}
}

// TestCollaboratorSession returns a session for a collaborator
func TestCollaboratorSession(accountID string) *models.Session {
	return &models.Session{
		ID:             "session-" + accountID,
		AccountID:      accountID,
		Username:       "barista",
		AccountType:    models.AccountTypeCollaborator,
		IsCollaborator: true,
		CSRFToken:      "csrf-" + accountID,
	}
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	AttemptLoginFunc   func(ctx context.Context, attempt services.LoginAttempt, current *models.Account) (*services.LoginResult, error)
	ChangePasswordFunc func(ctx context.Context, accountID, currentSecret, newSecret, confirmSecret string) error
}

func (m *MockAuthService) AttemptLogin(ctx context.Context, attempt services.LoginAttempt, current *models.Account) (*services.LoginResult, error) {
	if m.AttemptLoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.AttemptLoginFunc(ctx, attempt, current)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, accountID, currentSecret, newSecret, confirmSecret string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, accountID, currentSecret, newSecret, confirmSecret)
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	CreateFunc  func(ctx context.Context, account *models.Account, accountType models.AccountType) (*models.Session, string, error)
	DestroyFunc func(ctx context.Context, sid string) error

	mu        sync.Mutex
	destroyed []string
}

func (m *MockSessionStore) Create(ctx context.Context, account *models.Account, accountType models.AccountType) (*models.Session, string, error) {
	if m.CreateFunc == nil {
		return &models.Session{
			ID:          "new-session",
			AccountID:   account.ID,
			Username:    account.Username,
			AccountType: accountType,
			CSRFToken:   "fresh-csrf-token",
			ExpiresAt:   time.Now().Add(time.Hour),
		}, "signed-session-token", nil
	}
	return m.CreateFunc(ctx, account, accountType)
}

func (m *MockSessionStore) Destroy(ctx context.Context, sid string) error {
	m.mu.Lock()
	m.destroyed = append(m.destroyed, sid)
	m.mu.Unlock()
	if m.DestroyFunc == nil {
		return nil
	}
	return m.DestroyFunc(ctx, sid)
}

// Destroyed returns the IDs of destroyed sessions
func (m *MockSessionStore) Destroyed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.destroyed...)
}

// MockFailureObserver records failed privileged logins
type MockFailureObserver struct {
	mu       sync.Mutex
	Failures []services.LoginFailure
}

func (m *MockFailureObserver) LoginFailed(ctx context.Context, failure services.LoginFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, failure)
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	CreateAccountFunc     func(ctx context.Context, actorID string, input models.NewAccount) (*models.Account, error)
	GetAccountFunc        func(ctx context.Context, id string) (*models.Account, error)
	ListAccountsFunc      func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	UpdateAccountFunc     func(ctx context.Context, actorID, id string, changes models.AccountChanges) (*models.Account, error)
	DeactivateAccountFunc func(ctx context.Context, actorID, id string) error
}

func (m *MockAccountService) CreateAccount(ctx context.Context, actorID string, input models.NewAccount) (*models.Account, error) {
	if m.CreateAccountFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateAccountFunc(ctx, actorID, input)
}

func (m *MockAccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if m.GetAccountFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetAccountFunc(ctx, id)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListAccountsFunc == nil {
		return []*models.Account{}, nil
	}
	return m.ListAccountsFunc(ctx, limit, offset)
}

func (m *MockAccountService) UpdateAccount(ctx context.Context, actorID, id string, changes models.AccountChanges) (*models.Account, error) {
	if m.UpdateAccountFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateAccountFunc(ctx, actorID, id, changes)
}

func (m *MockAccountService) DeactivateAccount(ctx context.Context, actorID, id string) error {
	if m.DeactivateAccountFunc == nil {
		return nil
	}
	return m.DeactivateAccountFunc(ctx, actorID, id)
}

// MockPasswordResetter implements PasswordResetter for testing
type MockPasswordResetter struct {
	AdminResetPasswordFunc func(ctx context.Context, actorID, targetID string) error
}

func (m *MockPasswordResetter) AdminResetPassword(ctx context.Context, actorID, targetID string) error {
	if m.AdminResetPasswordFunc == nil {
		return nil
	}
	return m.AdminResetPasswordFunc(ctx, actorID, targetID)
}

// MockAttendanceService implements AttendanceServiceInterface for testing
type MockAttendanceService struct {
	RegisterFunc       func(ctx context.Context, accountID string, shift models.Shift, date time.Time, notes string) (*models.Attendance, error)
	ListForAccountFunc func(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error)
}

func (m *MockAttendanceService) Register(ctx context.Context, accountID string, shift models.Shift, date time.Time, notes string) (*models.Attendance, error) {
	if m.RegisterFunc == nil {
		return &models.Attendance{ID: "attendance-1", AccountID: accountID, Shift: shift}, nil
	}
	return m.RegisterFunc(ctx, accountID, shift, date, notes)
}

func (m *MockAttendanceService) ListForAccount(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error) {
	if m.ListForAccountFunc == nil {
		return []*models.Attendance{}, nil
	}
	return m.ListForAccountFunc(ctx, accountID, limit)
}

// MockAttendanceAdminService implements AttendanceAdminServiceInterface for testing
type MockAttendanceAdminService struct {
	ListAllFunc          func(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error)
	UpdateAttendanceFunc func(ctx context.Context, actorID, id string, changes models.AttendanceChanges) (*models.Attendance, error)
	DeleteAttendanceFunc func(ctx context.Context, actorID, id string) error
}

func (m *MockAttendanceAdminService) ListAll(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error) {
	if m.ListAllFunc == nil {
		return []*models.Attendance{}, nil
	}
	return m.ListAllFunc(ctx, filter)
}

func (m *MockAttendanceAdminService) UpdateAttendance(ctx context.Context, actorID, id string, changes models.AttendanceChanges) (*models.Attendance, error) {
	if m.UpdateAttendanceFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateAttendanceFunc(ctx, actorID, id, changes)
}

func (m *MockAttendanceAdminService) DeleteAttendance(ctx context.Context, actorID, id string) error {
	if m.DeleteAttendanceFunc == nil {
		return nil
	}
	return m.DeleteAttendanceFunc(ctx, actorID, id)
}

// MockInventoryService implements InventoryServiceInterface for testing
type MockInventoryService struct {
	ListFunc func(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error)
}

func (m *MockInventoryService) List(ctx context.Context, filter models.InventoryFilter) ([]*models.InventoryItem, error) {
	if m.ListFunc == nil {
		return []*models.InventoryItem{}, nil
	}
	return m.ListFunc(ctx, filter)
}

// MockGuardAdministration implements GuardAdministration for testing
type MockGuardAdministration struct {
	IsBlockedFunc      func(ctx context.Context, ip string) (bool, error)
	FailedAttemptsFunc func(ctx context.Context, ip string) (int, error)
	UnblockFunc        func(ctx context.Context, actorID, ip string) error
}

func (m *MockGuardAdministration) IsBlocked(ctx context.Context, ip string) (bool, error) {
	if m.IsBlockedFunc == nil {
		return false, nil
	}
	return m.IsBlockedFunc(ctx, ip)
}

func (m *MockGuardAdministration) FailedAttempts(ctx context.Context, ip string) (int, error) {
	if m.FailedAttemptsFunc == nil {
		return 0, nil
	}
	return m.FailedAttemptsFunc(ctx, ip)
}

func (m *MockGuardAdministration) Unblock(ctx context.Context, actorID, ip string) error {
	if m.UnblockFunc == nil {
		return nil
	}
	return m.UnblockFunc(ctx, actorID, ip)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
// This helper allows tests to set URL parameters that would normally be extracted
// by the Chi router from the URL path.
//
// Example usage:
//
//	req := httptest.NewRequest("GET", "/panel/accounts/abc", nil)
//	req = WithChiRouteContext(req, map[string]string{
//	    "id": "abc",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
