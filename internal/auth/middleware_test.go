package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/cadmium/internal/models"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithSession(session *models.Session) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/panel", nil)
	if session != nil {
		req = req.WithContext(WithSession(req.Context(), session))
	}
	return req
}

func TestLoadSession(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	created, token, err := sm.Create(context.Background(), testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)

	var seen *models.Session
	handler := LoadSession(sm, CookieConfig{}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionFromContext(r)
	}))

	t.Run("valid cookie", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/panel", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, seen)
		assert.Equal(t, created.ID, seen.ID)
	})

	t.Run("no cookie", func(t *testing.T) {
		seen = &models.Session{}
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panel", nil))
		assert.Nil(t, seen)
	})

	t.Run("invalid cookie is cleared", func(t *testing.T) {
		seen = &models.Session{}
		req := httptest.NewRequest(http.MethodGet, "/panel", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Nil(t, seen)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookieName, cookies[0].Name)
		assert.Less(t, cookies[0].MaxAge, 0)
	})

	t.Run("account store outage keeps the cookie", func(t *testing.T) {
		table.err = errors.New("connection refused")
		defer func() { table.err = nil }()

		seen = &models.Session{}
		req := httptest.NewRequest(http.MethodGet, "/panel", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Nil(t, seen)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("deactivated account continues anonymously", func(t *testing.T) {
		table.accounts["a1"].Active = false

		seen = &models.Session{}
		req := httptest.NewRequest(http.MethodGet, "/panel", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Nil(t, seen)
		require.Len(t, rec.Result().Cookies(), 1)
		assert.Less(t, rec.Result().Cookies()[0].MaxAge, 0)
	})
}

func TestSessionResolver(t *testing.T) {
	sm, _, table := newTestSessionManagerWithAccounts(t)
	created, token, err := sm.Create(context.Background(), testAdministrator(), models.AccountTypeManagement)
	require.NoError(t, err)
	resolve := SessionResolver(sm)

	withCookie := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/admin-x/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: value})
		return req
	}

	session := resolve(withCookie(token))
	require.NotNil(t, session)
	assert.Equal(t, created.ID, session.ID)

	assert.Nil(t, resolve(httptest.NewRequest(http.MethodGet, "/admin-x/", nil)))
	assert.Nil(t, resolve(withCookie("forged")))

	loaded := &models.Session{ID: "from-context"}
	req := httptest.NewRequest(http.MethodGet, "/admin-x/", nil)
	assert.Same(t, loaded, resolve(req.WithContext(WithSession(req.Context(), loaded))))

	table.err = errors.New("connection refused")
	assert.Nil(t, resolve(withCookie(token)))
}

func TestRequireSession(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireSession(okHandler()).ServeHTTP(rec, requestWithSession(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "/login", body.Redirect)

	rec = httptest.NewRecorder()
	RequireSession(okHandler()).ServeHTTP(rec, requestWithSession(&models.Session{ID: "s"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdministrator(t *testing.T) {
	tests := []struct {
		name    string
		session *models.Session
		want    int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"collaborator", &models.Session{IsCollaborator: true}, http.StatusForbidden},
		{"administrator", &models.Session{IsAdministrator: true}, http.StatusOK},
		{"superuser", &models.Session{IsSuperuser: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireAdministrator(okHandler()).ServeHTTP(rec, requestWithSession(tt.session))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireCollaborator(t *testing.T) {
	tests := []struct {
		name    string
		session *models.Session
		want    int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"administrator only", &models.Session{IsAdministrator: true}, http.StatusForbidden},
		{"collaborator", &models.Session{IsCollaborator: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireCollaborator(okHandler()).ServeHTTP(rec, requestWithSession(tt.session))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequirePasswordChanged(t *testing.T) {
	rec := httptest.NewRecorder()
	RequirePasswordChanged(okHandler()).ServeHTTP(rec, requestWithSession(&models.Session{MustChangePassword: true}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ChangePasswordPath, body.Redirect)
	assert.Equal(t, "password_change_required", body.Error)

	rec = httptest.NewRecorder()
	RequirePasswordChanged(okHandler()).ServeHTTP(rec, requestWithSession(&models.Session{}))
	assert.Equal(t, http.StatusOK, rec.Code)
}
