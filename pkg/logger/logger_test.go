package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "j*****@*******.cl", SanitizedEmail("jperez@cadmium.cl"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestMaskedRUT(t *testing.T) {
	assert.Equal(t, "*****678-5", MaskedRUT("12345678-5"))
	assert.Equal(t, "[invalid-rut]", MaskedRUT("123"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("next=/panel&password=x"))
	assert.True(t, SanitizeQueryString("RUT=12345678-5"))
	assert.False(t, SanitizeQueryString("limit=20&offset=40"))
}

func TestRedactedAttr(t *testing.T) {
	assert.Equal(t, "[REDACTED]", RedactedAttr("ip", "1.2.3.4", "production").Value.String())
	assert.Equal(t, "1.2.3.4", RedactedAttr("ip", "1.2.3.4", "development").Value.String())
}

func TestLogGuardEvent_Levels(t *testing.T) {
	tests := []struct {
		transition string
		level      string
	}{
		{"allowed", "INFO"},
		{"blocked", "WARN"},
		{"ip_blocked", "WARN"},
		{"unavailable", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.transition, func(t *testing.T) {
			var buf bytes.Buffer
			al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

			al.LogGuardEvent(GuardEvent{Transition: tt.transition, IPAddress: "203.0.113.9", Path: "/admin-x/", Attempts: 5})

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "admin_guard", entry["audit_type"])
			assert.Equal(t, "203.0.113.9", entry["ip_address"])
			assert.Equal(t, float64(5), entry["attempts"])
		})
	}
}

func TestLogAuthAttempt_FailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(AuditEvent{EventType: "login", Username: "jperez", Success: false, FailureReason: "invalid_credentials"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "invalid_credentials", entry["failure_reason"])
}
