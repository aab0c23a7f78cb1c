package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("BERBO_DATABASE_DSN", "postgres://env")
	t.Setenv("BERBO_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("BERBO_VERIFY_KEYS", "old=s1,older=s2")
	t.Setenv("BERBO_SMTP_PORT", "2525")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "postgres://env", c.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, map[string]string{"old": "s1", "older": "s2"}, c.VerifyKeys)
	assert.Equal(t, 2525, c.SMTPPort)
	assert.Equal(t, 25*time.Minute, c.RefreshTokenValidityDuration, "unset variables keep defaults")
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("BERBO_SMTP_PORT", "not-a-number")

	var c Config
	c.LoadDefaults()
	require.Panics(t, func() { parseEnv(&c) })
}
