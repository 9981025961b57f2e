package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/BradenHooton/cadmium/internal/models"
)

// CSRFHeader is the request header that must echo the session's CSRF token
const CSRFHeader = "X-CSRF-Token"

// GenerateCSRFToken returns 32 random bytes, hex encoded
func GenerateCSRFToken() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}

// ValidCSRFToken reports whether token matches the one issued with the session
func ValidCSRFToken(session *models.Session, token string) bool {
	if session == nil || session.CSRFToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(session.CSRFToken), []byte(token)) == 1
}
