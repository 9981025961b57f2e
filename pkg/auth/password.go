package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is a variable so tests can lower it to bcrypt.MinCost
var BcryptCost = 12

const (
	MinPasswordLen = 8

	// MaxPasswordBytes is bcrypt's input limit; multi-byte characters count per byte
	MaxPasswordBytes = 72

	// MaxSimilarity is the ratio at or above which a password counts as derived from a user attribute
	MaxSimilarity = 0.7
)

// PasswordValidationError lists every policy rule a candidate password broke
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password does not meet the strength policy: " + strings.Join(e.Errors, "; ")
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"123456789":    true,
	"qwerty":       true,
	"qwerty123":    true,
	"qwertyuiop":   true,
	"abc123":       true,
	"abcd1234":     true,
	"password1":    true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"admin123":     true,
	"letmein":      true,
	"welcome":      true,
	"welcome1":     true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"trustno1":     true,
	"iloveyou":     true,
	"baseball":     true,
	"superman":     true,
	"1q2w3e4r":     true,
	"contrasena":   true,
	"contraseña":   true,
	"12345678910":  true,
	"cafecafe":     true,
	"popup":        true,
	"popup123":     true,
}

var attributeSeparator = regexp.MustCompile(`[\W_]+`)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword applies the account password policy: length bounds, not entirely
// numeric, not a common password and not too similar to any of the given user
// attributes (username, names, email).
func ValidatePassword(password string, attributes ...string) error {
	errors := make([]string, 0)

	length := utf8.RuneCountInString(password)
	if length < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordBytes {
		errors = append(errors, fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}

	if isNumeric(password) {
		errors = append(errors, "cannot be entirely numeric")
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common")
	}

	if tooSimilar(password, attributes) {
		errors = append(errors, "is too similar to your personal information")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// tooSimilar compares the password with each attribute and each word-part of it
func tooSimilar(password string, attributes []string) bool {
	pw := []rune(strings.ToLower(password))
	for _, attr := range attributes {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		parts := append([]string{attr}, attributeSeparator.Split(attr, -1)...)
		for _, part := range parts {
			if part == "" {
				continue
			}
			if SimilarityRatio(pw, []rune(part)) >= MaxSimilarity {
				return true
			}
		}
	}
	return false
}

// SimilarityRatio returns 2*M/T where M is the number of characters matched by
// recursively taking the longest common block and T is the total length of both inputs.
func SimilarityRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(a, b)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	i, j, k := longestCommonBlock(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+k:], b[j+k:])
}

func longestCommonBlock(a, b []rune) (int, int, int) {
	bestI, bestJ, bestK := 0, 0, 0
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestK {
					bestI, bestJ, bestK = i-curr[j], j-curr[j], curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return bestI, bestJ, bestK
}
