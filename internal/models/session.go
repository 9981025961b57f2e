package models

import "time"

// Session is the server-side record behind a session cookie
type Session struct {
	ID                 string      `json:"id"`
	AccountID          string      `json:"account_id"`
	Username           string      `json:"username"`
	AccountType        AccountType `json:"account_type"`
	IsAdministrator    bool        `json:"is_administrator"`
	IsCollaborator     bool        `json:"is_collaborator"`
	IsSuperuser        bool        `json:"is_superuser"`
	MustChangePassword bool        `json:"must_change_password"`
	CSRFToken          string      `json:"csrf_token"`
	CreatedAt          time.Time   `json:"created_at"`
	LastActivity       time.Time   `json:"last_activity"`
	ExpiresAt          time.Time   `json:"expires_at"`
}

// CanManage mirrors Account.CanManage for the session principal
func (s *Session) CanManage() bool {
	return s.IsAdministrator || s.IsSuperuser
}

// Principal rebuilds the account view of a session revalidated on load. The login
// state machine reloads it from the account store before re-routing.
func (s *Session) Principal() *Account {
	return &Account{
		ID:                 s.AccountID,
		Username:           s.Username,
		IsAdministrator:    s.IsAdministrator,
		IsCollaborator:     s.IsCollaborator,
		IsSuperuser:        s.IsSuperuser,
		Active:             true,
		MustChangePassword: s.MustChangePassword,
	}
}
