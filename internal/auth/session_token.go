package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/cadmium/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// TokenManager signs and verifies session cookie tokens
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// GenerateSessionToken creates a token naming the session sid of accountID
func (tm *TokenManager) GenerateSessionToken(sid, accountID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &models.SessionClaims{
		Type:      models.SessionTokenType,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.SessionTokenType {
		return nil, fmt.Errorf("invalid token: unexpected type %q", claims.Type)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: missing session or subject")
	}

	return claims, nil
}
