package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("IMAP_HOST", "imap.example.com")
	t.Setenv("IMAP_PORT", "993")
	t.Setenv("IMAP_SECURE", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_SECURE", "false")
	t.Setenv("EMAIL_USERNAME", "me@example.com")
	t.Setenv("EMAIL_PASSWORD", "secret")
}

func TestLoadConfig(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProtocolIMAP, cfg.Protocol)
	assert.Equal(t, ServerConfig{Host: "imap.example.com", Port: 993, Secure: true}, cfg.Receive)
	assert.Equal(t, ServerConfig{Host: "smtp.example.com", Port: 587, Secure: false}, cfg.SMTP)
	assert.Equal(t, "smtp.example.com:587", cfg.SMTP.Address())
	assert.Equal(t, "INBOX", cfg.InboxMailbox)
	assert.Equal(t, 7*24*time.Hour, cfg.ReplyWindow())
}

func TestLoadConfigPOP3(t *testing.T) {
	setRequired(t)
	t.Setenv("RECEIVE_PROTOCOL", "POP3")
	t.Setenv("POP3_HOST", "pop.example.com")
	t.Setenv("POP3_PORT", "995")
	t.Setenv("POP3_SECURE", "yes")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ProtocolPOP3, cfg.Protocol)
	assert.Equal(t, "pop.example.com", cfg.Receive.Host)
	assert.True(t, cfg.Receive.Secure)
}

func TestLoadConfigFailsFast(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing host", "IMAP_HOST", "", "IMAP_HOST is required"},
		{"bad port", "SMTP_PORT", "smtp", "SMTP_PORT must be a number"},
		{"bad boolean", "IMAP_SECURE", "maybe", "IMAP_SECURE"},
		{"missing password", "EMAIL_PASSWORD", "", "EMAIL_PASSWORD is required"},
		{"bad protocol", "RECEIVE_PROTOCOL", "jmap", "RECEIVE_PROTOCOL"},
		{"bad duration", "DIAL_TIMEOUT", "soon", "DIAL_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePortRange(t *testing.T) {
	setRequired(t)
	t.Setenv("IMAP_PORT", "70000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
