// Package rut validates Chilean RUT national identifiers.
package rut

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidFormat     = errors.New("rut must look like 12345678-K")
	ErrInvalidCheckDigit = errors.New("rut check digit does not match")
)

var formatRe = regexp.MustCompile(`^\d{7,8}-[0-9K]$`)

// Normalize trims, uppercases and strips the thousands dots ("12.345.678-k" -> "12345678-K")
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, ".", "")
}

// ValidateFormat checks the normalised shape only
func ValidateFormat(s string) error {
	if !formatRe.MatchString(Normalize(s)) {
		return ErrInvalidFormat
	}
	return nil
}

// CheckDigit computes the modulo-11 verifier for a RUT body
func CheckDigit(body string) (string, error) {
	if body == "" {
		return "", ErrInvalidFormat
	}
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		d, err := strconv.Atoi(string(body[i]))
		if err != nil {
			return "", ErrInvalidFormat
		}
		sum += d * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return "0", nil
	case 10:
		return "K", nil
	default:
		return strconv.Itoa(r), nil
	}
}

// Validate normalises s, checks its format and its check digit, and returns the normalised form
func Validate(s string) (string, error) {
	n := Normalize(s)
	if err := ValidateFormat(n); err != nil {
		return "", err
	}
	body, dv, _ := strings.Cut(n, "-")
	want, err := CheckDigit(body)
	if err != nil {
		return "", err
	}
	if dv != want {
		return "", ErrInvalidCheckDigit
	}
	return n, nil
}
