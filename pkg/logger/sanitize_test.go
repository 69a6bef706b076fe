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
	assert.Equal(t, "a****@*******.com", SanitizedEmail("alice@example.com"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("not-an-email"))
}

func TestMaskedPhone(t *testing.T) {
	assert.Equal(t, "******4567", MaskedPhone("5551234567"))
	assert.Equal(t, "***", MaskedPhone("123"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("email=a@b.com"))
	assert.True(t, SanitizeQueryString("Token=abc"))
	assert.False(t, SanitizeQueryString("limit=20"))
}

func TestAuditLogger_MasksEmail(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(AuditEvent{
		EventType: "login_failed",
		Email:     "alice@example.com",
		IPAddress: "1.2.3.4",
		Success:   false,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "a****@*******.com", line["email"])
	assert.Equal(t, "1.2.3.4", line["ip_address"])
}

func TestAuditLogger_EscalatedThreatIsError(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogThreat(AuditEvent{EventType: "scanner_user_agent", IPAddress: "6.6.6.6"}, true)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, true, line["escalated"])
}
