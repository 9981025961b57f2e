package models

import (
	"strings"
	"time"
)

// AccountType is the role a principal claims at login time
type AccountType string

const (
	AccountTypeManagement   AccountType = "management"
	AccountTypeCollaborator AccountType = "collaborator"
)

// ParseAccountType returns the account type for a submitted selection.
// The second return value is false for empty or unknown selections.
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(strings.ToLower(strings.TrimSpace(s))) {
	case AccountTypeManagement:
		return AccountTypeManagement, true
	case AccountTypeCollaborator:
		return AccountTypeCollaborator, true
	default:
		return "", false
	}
}

type Account struct {
	ID                 string
	Username           string
	PasswordHash       string
	FirstName          string
	LastName           string
	RUT                string // normalised, e.g. "12345678-K"
	Email              string
	IsAdministrator    bool
	IsCollaborator     bool
	IsSuperuser        bool
	Active             bool
	MustChangePassword bool
	PasswordChangedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CanManage reports whether the account may operate as management.
// Superusers are allowed even without the administrator flag.
func (a *Account) CanManage() bool {
	return a.IsAdministrator || a.IsSuperuser
}

// HasRoleFor reports whether the account's role flags back the given selection
func (a *Account) HasRoleFor(t AccountType) bool {
	switch t {
	case AccountTypeManagement:
		return a.CanManage()
	case AccountTypeCollaborator:
		return a.IsCollaborator
	default:
		return false
	}
}

// PrimaryType is the type used for sessions created without an explicit selection
func (a *Account) PrimaryType() AccountType {
	if a.CanManage() {
		return AccountTypeManagement
	}
	return AccountTypeCollaborator
}

func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// NewAccount carries the administrator-supplied fields for a new staff account
type NewAccount struct {
	FirstName       string
	LastName        string
	RUT             string
	Email           string
	IsAdministrator bool
	IsCollaborator  bool
}

// AccountChanges lists the administrator-editable fields of an account.
// Nil fields are left unchanged; the username never changes.
type AccountChanges struct {
	FirstName       *string
	LastName        *string
	RUT             *string
	Email           *string
	IsAdministrator *bool
	IsCollaborator  *bool
	Active          *bool
}

// AccountStats holds the management dashboard counters
type AccountStats struct {
	TotalAccounts   int `json:"total_accounts"`
	ActiveAccounts  int `json:"active_accounts"`
	Administrators  int `json:"administrators"`
	Collaborators   int `json:"collaborators"`
	AttendanceToday int `json:"attendance_today"`
}
