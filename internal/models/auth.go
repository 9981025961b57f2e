package models

import "github.com/golang-jwt/jwt/v5"

// SessionTokenType is the only token type this service issues
const SessionTokenType = "session"

// SessionClaims are carried by the signed session cookie. The session record
// itself lives server-side; the token only names it.
type SessionClaims struct {
	Type      string `json:"type"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
